package transcription

import (
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// EventType is the conferencing SDK event name.
type EventType string

const (
	EventTranscriptionMessage EventType = "transcription-message"
	EventAppMessage           EventType = "app-message"
	EventTranscriptionStarted EventType = "transcription-started"
	EventTranscriptionStopped EventType = "transcription-stopped"
	EventTranscriptionError   EventType = "transcription-error"
	EventTrackStarted         EventType = "track-started"
	EventTrackStopped         EventType = "track-stopped"
	EventNetworkQuality       EventType = "network-quality-change"
)

// appMessageTranscription is the data.type that marks an app-message as a
// transcription relay.
const appMessageTranscription = "transcription"

// Track type tags reported by the SDK for local tracks.
const (
	TrackCamAudio    = "cam-audio"
	TrackCamVideo    = "cam-video"
	TrackScreenAudio = "screen-audio"
	TrackScreenVideo = "screen-video"
)

// Event is one SDK event as forwarded by the browser bridge. Only the fields
// relevant to its Type are set.
type Event struct {
	Type EventType `json:"type" yaml:"type"`

	// transcription-message
	Text          string       `json:"text,omitempty" yaml:"text,omitempty"`
	IsFinal       *bool        `json:"is_final,omitempty" yaml:"is_final,omitempty"`
	Timestamp     *time.Time   `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	ParticipantID string       `json:"participantId,omitempty" yaml:"participantId,omitempty"`
	Speaker       string       `json:"speaker,omitempty" yaml:"speaker,omitempty"`
	TrackType     string       `json:"trackType,omitempty" yaml:"trackType,omitempty"`
	RawResponse   *RawResponse `json:"rawResponse,omitempty" yaml:"rawResponse,omitempty"`

	// app-message
	FromID string   `json:"fromId,omitempty" yaml:"fromId,omitempty"`
	Data   *AppData `json:"data,omitempty" yaml:"data,omitempty"`

	// track-started, track-stopped
	Track *Track `json:"track,omitempty" yaml:"track,omitempty"`

	// transcription-error
	ErrorMsg string `json:"errorMsg,omitempty" yaml:"errorMsg,omitempty"`

	// network-quality-change
	Quality string `json:"quality,omitempty" yaml:"quality,omitempty"`
}

// RawResponse is the subset of the speech vendor's raw payload we read.
type RawResponse struct {
	IsFinal    *bool    `json:"is_final,omitempty" yaml:"is_final,omitempty"`
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Speaker    *int     `json:"speaker,omitempty" yaml:"speaker,omitempty"`
}

// AppData is the payload of an app-message relaying a transcription.
type AppData struct {
	Type       string     `json:"type" yaml:"type"`
	Text       string     `json:"text,omitempty" yaml:"text,omitempty"`
	IsFinal    *bool      `json:"is_final,omitempty" yaml:"is_final,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Speaker    string     `json:"speaker,omitempty" yaml:"speaker,omitempty"`
	TrackType  string     `json:"trackType,omitempty" yaml:"trackType,omitempty"`
	Confidence *float64   `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// Track describes a media track in a track-started or track-stopped event.
type Track struct {
	Type  string `json:"type" yaml:"type"`
	Local bool   `json:"local" yaml:"local"`
	State string `json:"state,omitempty" yaml:"state,omitempty"`
}

// Sendable reports whether the track is live on the local side.
func (t Track) Sendable() bool {
	return t.State == "" || t.State == "sendable" || t.State == "playable"
}

// Message is a speech-to-text event normalized from either delivery
// channel.
type Message struct {
	Text       string
	Final      bool
	Timestamp  fn.Option[time.Time]
	TrackType  fn.Option[string]
	SpeakerID  fn.Option[string]
	Confidence fn.Option[float64]
	Channel    EventType
}

// Normalize converts a transcription-message or a transcription app-message
// into a Message. It reports false for every other event. Finality defaults
// to final when neither the event nor the raw response carries it.
func Normalize(ev Event) (Message, bool) {
	switch ev.Type {
	case EventTranscriptionMessage:
		msg := Message{
			Text:      strings.TrimSpace(ev.Text),
			Final:     true,
			Timestamp: optionalTime(ev.Timestamp),
			TrackType: optionalString(ev.TrackType),
			Channel:   ev.Type,
		}

		speaker := ev.Speaker
		if speaker == "" {
			speaker = ev.ParticipantID
		}
		msg.SpeakerID = optionalString(speaker)

		if ev.RawResponse != nil {
			if ev.RawResponse.IsFinal != nil {
				msg.Final = *ev.RawResponse.IsFinal
			}
			if ev.RawResponse.Confidence != nil {
				msg.Confidence = fn.Some(*ev.RawResponse.Confidence)
			}
		}
		if ev.IsFinal != nil {
			msg.Final = *ev.IsFinal
		}
		return msg, true

	case EventAppMessage:
		d := ev.Data
		if d == nil || d.Type != appMessageTranscription {
			return Message{}, false
		}

		msg := Message{
			Text:      strings.TrimSpace(d.Text),
			Final:     true,
			Timestamp: optionalTime(d.Timestamp),
			TrackType: optionalString(d.TrackType),
			SpeakerID: optionalString(d.Speaker),
			Channel:   ev.Type,
		}
		if d.IsFinal != nil {
			msg.Final = *d.IsFinal
		}
		if d.Confidence != nil {
			msg.Confidence = fn.Some(*d.Confidence)
		}
		return msg, true
	}

	return Message{}, false
}

func optionalString(s string) fn.Option[string] {
	s = strings.TrimSpace(s)
	if s == "" {
		return fn.None[string]()
	}
	return fn.Some(s)
}

func optionalTime(t *time.Time) fn.Option[time.Time] {
	if t == nil || t.IsZero() {
		return fn.None[time.Time]()
	}
	return fn.Some(*t)
}
