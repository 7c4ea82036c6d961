package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/stratplan/companion/internal/model"
	"github.com/stratplan/companion/internal/transcription"
)

// Bridge commands understood by the browser.
const (
	CommandStartTranscription = "startTranscription"
	CommandStopTranscription  = "stopTranscription"
	CommandRequestScreenAudio = "requestScreenAudio"
)

const stopTimeout = 10 * time.Second

// Bridge forwards SDK commands to the browser that hosts the conferencing
// call. It implements transcription.Controller.
type Bridge struct {
	client *Client
}

// NewBridge wraps a connected client.
func NewBridge(client *Client) *Bridge {
	return &Bridge{client: client}
}

func (b *Bridge) StartTranscription(_ context.Context, cfg transcription.StartConfig) error {
	return b.command(CommandStartTranscription, cfg.Map())
}

func (b *Bridge) StopTranscription(context.Context) error {
	return b.command(CommandStopTranscription, nil)
}

func (b *Bridge) RequestScreenAudio(context.Context) error {
	return b.command(CommandRequestScreenAudio, nil)
}

func (b *Bridge) command(name string, cfg map[string]string) error {
	data, err := json.Marshal(model.WSCommandMessage{
		Type:    model.WSMessageTypeCommand,
		Command: name,
		Config:  cfg,
	})
	if err != nil {
		return err
	}
	return b.client.Send(data)
}

// HandleBridge serves the browser side of a transcription session. The
// browser forwards every SDK event as JSON; the session is started on
// connect and stopped when the browser disconnects.
func (h *Hub) HandleBridge(c *websocket.Conn, sess *transcription.Session, cfg transcription.StartConfig) {
	client := newClient(TranscriptionTopic(sess.ID()), c)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess.Attach(NewBridge(client))

	// The command is buffered until the writer starts.
	if err := sess.Start(ctx, cfg); err != nil {
		h.log.Warn("Failed to start transcription", "session_id", sess.ID(), "error", err)
	}

	h.serve(client, func(_ *Client, data []byte) {
		var ev transcription.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			h.log.Debug("Dropping malformed bridge event", "session_id", sess.ID(), "error", err)
			return
		}
		sess.Handle(ctx, ev)
	})

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	sess.Detach()
	sess.Stop(stopCtx)
}
