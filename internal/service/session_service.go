package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stratplan/companion/internal/client"
	"github.com/stratplan/companion/internal/model"
	"github.com/stratplan/companion/internal/transcription"
)

// ErrSessionForbidden is returned when a user touches another user's session.
var ErrSessionForbidden = errors.New("session belongs to another user")

// SessionService provisions transcription sessions: a hosted room for the
// browser and a live Session fed by the websocket bridge.
type SessionService struct {
	rooms    client.RoomProvisioner
	manager  *transcription.Manager
	language string
	roomTTL  time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	configs map[string]transcription.StartConfig
}

func NewSessionService(rooms client.RoomProvisioner, manager *transcription.Manager,
	language string, roomTTL time.Duration, log *slog.Logger) *SessionService {

	if log == nil {
		log = slog.Default()
	}
	if roomTTL <= 0 {
		roomTTL = 2 * time.Hour
	}
	return &SessionService{
		rooms:    rooms,
		manager:  manager,
		language: language,
		roomTTL:  roomTTL,
		log:      log.With("component", "sessions"),
		configs:  make(map[string]transcription.StartConfig),
	}
}

// Create provisions a room and token and registers the session.
func (s *SessionService) Create(ctx context.Context, userID string, req *model.CreateSessionRequest) (*model.CreateSessionResponse, error) {
	sessionID := uuid.New().String()
	expiresAt := time.Now().Add(s.roomTTL)

	room, err := s.rooms.CreateRoom(ctx, &client.CreateRoomRequest{
		Name:    sessionID,
		Privacy: "private",
		Properties: client.RoomProperties{
			Exp:                 expiresAt.Unix(),
			EjectAtRoomExp:      true,
			EnableTranscription: true,
			EnableScreenshare:   true,
			StartVideoOff:       true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	token, err := s.rooms.CreateMeetingToken(ctx, &client.MeetingTokenRequest{
		Properties: client.MeetingTokenProperties{
			RoomName: room.Name,
			UserID:   userID,
			IsOwner:  true,
			Exp:      expiresAt.Unix(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create meeting token: %w", err)
	}

	if _, err := s.manager.Create(sessionID, userID, req.PlanningID); err != nil {
		return nil, err
	}

	lang := req.Language
	if lang == "" {
		lang = s.language
	}
	s.mu.Lock()
	s.configs[sessionID] = transcription.DefaultStartConfig(lang)
	s.mu.Unlock()

	return &model.CreateSessionResponse{
		SessionID: sessionID,
		RoomURL:   room.URL,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Session returns a session owned by userID.
func (s *SessionService) Session(userID, sessionID string) (*transcription.Session, error) {
	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID() != userID {
		return nil, ErrSessionForbidden
	}
	return sess, nil
}

// StartConfig returns the transcription configuration chosen at creation.
func (s *SessionService) StartConfig(sessionID string) transcription.StartConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg, ok := s.configs[sessionID]; ok {
		return cfg
	}
	return transcription.DefaultStartConfig(s.language)
}

// Get returns the current view of a session.
func (s *SessionService) Get(userID, sessionID string) (model.TranscriptionView, error) {
	sess, err := s.Session(userID, sessionID)
	if err != nil {
		return model.TranscriptionView{}, err
	}
	return sess.View(), nil
}

// Clear empties the visible transcript of a session.
func (s *SessionService) Clear(userID, sessionID string) (model.TranscriptionView, error) {
	sess, err := s.Session(userID, sessionID)
	if err != nil {
		return model.TranscriptionView{}, err
	}
	return sess.ClearHistory(), nil
}

// Delete stops the session, which queues its analysis, and forgets it.
func (s *SessionService) Delete(ctx context.Context, userID, sessionID string) (model.TranscriptionView, error) {
	if _, err := s.Session(userID, sessionID); err != nil {
		return model.TranscriptionView{}, err
	}

	s.mu.Lock()
	delete(s.configs, sessionID)
	s.mu.Unlock()

	v, err := s.manager.Remove(ctx, sessionID)
	if err != nil {
		return model.TranscriptionView{}, err
	}
	s.log.Info("Transcription session deleted", "session_id", sessionID,
		"blocks", len(v.Blocks), "analysis_job_id", v.AnalysisJobID)
	return v, nil
}
