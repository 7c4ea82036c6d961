package model

import "time"

// AudioSource identifies the physical source of a transcribed utterance.
type AudioSource string

const (
	AudioSourceMicrophone AudioSource = "microphone"
	AudioSourceScreen     AudioSource = "screen"
	AudioSourceRemote     AudioSource = "remote"
)

// SessionStatus is the lifecycle state of a transcription session.
type SessionStatus string

const (
	SessionStatusIdle         SessionStatus = "idle"
	SessionStatusStarting     SessionStatus = "starting"
	SessionStatusListening    SessionStatus = "listening"
	SessionStatusReconnecting SessionStatus = "reconnecting"
	SessionStatusStopped      SessionStatus = "stopped"
	SessionStatusError        SessionStatus = "error"
)

// TranscriptBlock is a run of same-source final segments.
type TranscriptBlock struct {
	ID        string      `json:"id"`
	Source    AudioSource `json:"source"`
	Color     string      `json:"color"`
	StartedAt time.Time   `json:"startedAt"`
	Text      string      `json:"text"`
}

// TranscriptionStats are the session counters.
type TranscriptionStats struct {
	Received   int `json:"received"`
	Duplicates int `json:"duplicates"`
	Finals     int `json:"finals"`
	Interims   int `json:"interims"`
}

// TranscriptionView is the reconciled state pushed to the UI.
type TranscriptionView struct {
	SessionID      string             `json:"sessionId"`
	Status         SessionStatus      `json:"status"`
	Blocks         []TranscriptBlock  `json:"blocks"`
	Interim        string             `json:"interim,omitempty"`
	InterimSource  AudioSource        `json:"interimSource,omitempty"`
	ScreenCaptured bool               `json:"screenCaptured"`
	NetworkQuality string             `json:"networkQuality,omitempty"`
	Stats          TranscriptionStats `json:"stats"`
	Error          string             `json:"error,omitempty"`
	AnalysisJobID  string             `json:"analysisJobId,omitempty"`
}

// CreateSessionRequest starts a new transcription session.
type CreateSessionRequest struct {
	PlanningID string `json:"planningId" validate:"omitempty,max=128"`
	Language   string `json:"language" validate:"omitempty,oneof=pt en es"`
}

// CreateSessionResponse carries the hosted room credentials for the browser.
type CreateSessionResponse struct {
	SessionID string    `json:"sessionId"`
	RoomURL   string    `json:"roomUrl"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TutorialFlagResponse reports whether a tutorial has been seen.
type TutorialFlagResponse struct {
	Key  string `json:"key"`
	Seen bool   `json:"seen"`
}

// SetTutorialRequest records whether a tutorial has been seen.
type SetTutorialRequest struct {
	Seen bool `json:"seen"`
}
