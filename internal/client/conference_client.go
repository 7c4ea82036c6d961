package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stratplan/companion/internal/config"
)

// RoomProvisioner creates hosted conferencing rooms for capture sessions.
type RoomProvisioner interface {
	CreateRoom(ctx context.Context, req *CreateRoomRequest) (*Room, error)
	CreateMeetingToken(ctx context.Context, req *MeetingTokenRequest) (string, error)
}

// CreateRoomRequest represents the request for creating a room
type CreateRoomRequest struct {
	Name       string         `json:"name"`
	Privacy    string         `json:"privacy"`
	Properties RoomProperties `json:"properties"`
}

// RoomProperties are the room settings used for transcription sessions
type RoomProperties struct {
	Exp                 int64 `json:"exp"`
	EjectAtRoomExp      bool  `json:"eject_at_room_exp"`
	EnableTranscription bool  `json:"enable_transcription_storage"`
	EnableScreenshare   bool  `json:"enable_screenshare"`
	StartVideoOff       bool  `json:"start_video_off"`
}

// Room represents a provisioned room
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"-"`
}

// MeetingTokenRequest represents the request for a meeting token
type MeetingTokenRequest struct {
	Properties MeetingTokenProperties `json:"properties"`
}

// MeetingTokenProperties scope a token to one room and user
type MeetingTokenProperties struct {
	RoomName string `json:"room_name"`
	UserID   string `json:"user_id,omitempty"`
	IsOwner  bool   `json:"is_owner"`
	Exp      int64  `json:"exp"`
}

type meetingTokenResponse struct {
	Token string `json:"token"`
}

// ConferenceClient talks to the hosted audio/video provider's REST API.
type ConferenceClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	domain     string
	log        *slog.Logger
}

// NewConferenceClient creates a new conferencing client
func NewConferenceClient(cfg *config.ConferenceConfig, log *slog.Logger) *ConferenceClient {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ConferenceClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		domain:  cfg.Domain,
		log:     log.With("component", "conference"),
	}
}

// CreateRoom provisions a private room. Without an API key a deterministic
// mock room is returned for development.
func (c *ConferenceClient) CreateRoom(ctx context.Context, req *CreateRoomRequest) (*Room, error) {
	if !c.IsConfigured() {
		return c.mockRoom(req), nil
	}

	var room Room
	if err := c.post(ctx, "/rooms", req, &room); err != nil {
		return nil, err
	}
	room.ExpiresAt = time.Unix(req.Properties.Exp, 0)
	return &room, nil
}

// CreateMeetingToken issues a token granting access to a room.
func (c *ConferenceClient) CreateMeetingToken(ctx context.Context, req *MeetingTokenRequest) (string, error) {
	if !c.IsConfigured() {
		return "mock-token-" + req.Properties.RoomName, nil
	}

	var result meetingTokenResponse
	if err := c.post(ctx, "/meeting-tokens", req, &result); err != nil {
		return "", err
	}
	if result.Token == "" {
		return "", fmt.Errorf("conference API returned an empty token")
	}
	return result.Token, nil
}

func (c *ConferenceClient) mockRoom(req *CreateRoomRequest) *Room {
	domain := c.domain
	if domain == "" {
		domain = "localhost"
	}
	return &Room{
		ID:        "mock-" + req.Name,
		Name:      req.Name,
		URL:       fmt.Sprintf("https://%s.daily.co/%s", domain, req.Name),
		ExpiresAt: time.Unix(req.Properties.Exp, 0),
	}
}

// post sends a POST request with JSON body and parses the response
func (c *ConferenceClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("Conference API error", "endpoint", endpoint, "status", resp.StatusCode)
		return fmt.Errorf("conference API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *ConferenceClient) IsConfigured() bool {
	return c.apiKey != "" && c.baseURL != ""
}
