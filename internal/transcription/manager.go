package transcription

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/stratplan/companion/internal/eventlog"
	"github.com/stratplan/companion/internal/model"
)

var (
	// ErrSessionExists is returned when creating a session with a taken id.
	ErrSessionExists = errors.New("transcription session already exists")

	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("transcription session not found")
)

// ManagerConfig holds the settings shared by every session.
type ManagerConfig struct {
	DedupWindow   time.Duration
	TrackFallback time.Duration
	Analysis      AnalysisSink
	Events        eventlog.Recorder
	Log           *slog.Logger

	// Listener receives every view change of every session.
	Listener func(model.TranscriptionView)
}

// Manager owns the live transcription sessions.
type Manager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session.
func (m *Manager) Create(id, userID, planningID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		return nil, ErrSessionExists
	}

	s := NewSession(Options{
		ID:            id,
		UserID:        userID,
		PlanningID:    planningID,
		DedupWindow:   m.cfg.DedupWindow,
		TrackFallback: m.cfg.TrackFallback,
		Analysis:      m.cfg.Analysis,
		Events:        m.cfg.Events,
		Log:           m.cfg.Log,
		Listener:      m.cfg.Listener,
	})
	m.sessions[id] = s

	m.cfg.Log.Info("Transcription session created", "session_id", id,
		"user_id", userID)
	return s, nil
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove stops and drops a session. The final view is returned.
func (m *Manager) Remove(ctx context.Context,
	id string) (model.TranscriptionView, error) {

	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return model.TranscriptionView{}, ErrSessionNotFound
	}

	v := s.Stop(ctx)
	s.Detach()
	return v, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// StopAll stops every session. Used on shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop(ctx)
		s.Detach()
	}
}
