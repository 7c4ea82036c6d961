package model

import (
	"encoding/json"
	"time"
)

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job represents a background job in the system
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"` // "analysis"
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"currentStep,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	RetryCount  int             `json:"retryCount"`
}

// Job types
const (
	JobTypeAnalysis = "analysis"
)

// AnalysisJobPayload contains the data for a transcript analysis job
type AnalysisJobPayload struct {
	SessionID string             `json:"sessionId"`
	UserID    string             `json:"userId,omitempty"`
	Blocks    []TranscriptBlock  `json:"blocks"`
	Stats     TranscriptionStats `json:"stats"`
	EndedAt   time.Time          `json:"endedAt"`
}

// AnalysisStatusResponse represents the status of an analysis job
type AnalysisStatusResponse struct {
	JobID       string     `json:"jobId"`
	SessionID   string     `json:"sessionId,omitempty"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// AnalysisResultResponse represents the result of a completed analysis
type AnalysisResultResponse struct {
	SessionID  string    `json:"sessionId"`
	Summary    string    `json:"summary"`
	Insights   []string  `json:"insights"`
	ArchiveURL string    `json:"archiveUrl,omitempty"`
	WordCount  int       `json:"wordCount"`
	CreatedAt  time.Time `json:"createdAt"`
}
