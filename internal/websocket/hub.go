package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/stratplan/companion/internal/model"
)

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
)

// ErrClientGone is returned when writing to a closed or saturated client.
var ErrClientGone = errors.New("websocket client gone")

// PlanningTopic is the topic of a planning's view updates for its owner.
func PlanningTopic(userID, planningID string) string {
	return "planning:" + userID + ":" + planningID
}

// TranscriptionTopic is the topic of a transcription session's view updates.
func TranscriptionTopic(sessionID string) string {
	return "transcription:" + sessionID
}

// Client represents a WebSocket client
type Client struct {
	Topic string
	Conn  *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(topic string, conn *websocket.Conn) *Client {
	return &Client{
		Topic: topic,
		Conn:  conn,
		send:  make(chan []byte, sendBuffer),
	}
}

// Send queues a message without blocking.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientGone
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrClientGone
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub maintains active WebSocket connections
type Hub struct {
	// Clients grouped by topic
	clients map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to topic subscribers
	broadcast chan *BroadcastMessage

	// done is closed when Run returns
	done chan struct{}

	log *slog.Logger
	mu  sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	Topic   string
	Message []byte
}

// NewHub creates a new Hub
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, sendBuffer),
		done:       make(chan struct{}),
		log:        log.With("component", "hub"),
	}
}

// Run starts the hub's main loop. It returns when ctx is done, closing every
// client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for topic, clients := range h.clients {
				for client := range clients {
					client.close()
				}
				delete(h.clients, topic)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.Topic] == nil {
				h.clients[client.Topic] = make(map[*Client]bool)
			}
			h.clients[client.Topic][client] = true
			h.mu.Unlock()
			h.log.Debug("Client registered", "topic", client.Topic)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.Topic]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					client.close()
					if len(clients) == 0 {
						delete(h.clients, client.Topic)
					}
				}
			}
			h.mu.Unlock()
			h.log.Debug("Client unregistered", "topic", client.Topic)

		case msg := <-h.broadcast:
			h.mu.Lock()
			if clients, ok := h.clients[msg.Topic]; ok {
				for client := range clients {
					if err := client.Send(msg.Message); err != nil {
						client.close()
						delete(clients, client)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.Topic)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
}

// Subscribers returns the number of clients on a topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[topic])
}

// BroadcastPlanning sends a planning view to the owner's subscribers
func (h *Hub) BroadcastPlanning(userID string, view model.PlanningViewResponse) {
	h.publish(PlanningTopic(userID, view.PlanningID), model.WSPlanningMessage{
		Type: model.WSMessageTypePlanning,
		View: view,
	})
}

// BroadcastTranscription sends a transcription view to its subscribers
func (h *Hub) BroadcastTranscription(view model.TranscriptionView) {
	h.publish(TranscriptionTopic(view.SessionID), model.WSTranscriptionMessage{
		Type: model.WSMessageTypeTranscription,
		View: view,
	})
}

// BroadcastComplete sends a completion message to the job's subscribers and
// to the session that produced it
func (h *Hub) BroadcastComplete(jobID, sessionID string, result interface{}) {
	msg := model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	}
	h.publish(jobID, msg)
	if sessionID != "" {
		h.publish(TranscriptionTopic(sessionID), msg)
	}
}

// BroadcastError sends an error message to all job subscribers
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.publish(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

func (h *Hub) publish(topic string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("Failed to marshal message", "topic", topic, "error", err)
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{Topic: topic, Message: data}:
	case <-h.done:
	}
}

// HandleConnection serves a subscriber until it disconnects. Messages other
// than ping are passed to onMessage, which may be nil.
func (h *Hub) HandleConnection(c *websocket.Conn, topic string, onMessage func(client *Client, data []byte)) {
	h.serve(newClient(topic, c), onMessage)
}

func (h *Hub) serve(client *Client, onMessage func(client *Client, data []byte)) {
	c := client.Conn

	h.Register(client)
	defer h.Unregister(client)

	// Writer goroutine
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("WebSocket error", "topic", client.Topic, "error", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			_ = client.Send(pong)
			continue
		}

		if onMessage != nil {
			onMessage(client, message)
		}
	}
}
