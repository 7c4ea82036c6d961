package model

import (
	"encoding/json"
	"strings"
	"time"
)

// PlanningStatus is the backend's status enum for a planning record.
type PlanningStatus string

const (
	PlanningStatusAwaitingApproval PlanningStatus = "awaiting-approval"
	PlanningStatusPending          PlanningStatus = "pending"
	PlanningStatusGenerating       PlanningStatus = "generating"
	PlanningStatusProcessing       PlanningStatus = "processing"
	PlanningStatusCompleted        PlanningStatus = "completed"
	PlanningStatusError            PlanningStatus = "error"
)

// Normalize lowercases the status and folds underscores and spaces into
// hyphens, so "AWAITING_APPROVAL" and "awaiting-approval" compare equal.
func (s PlanningStatus) Normalize() PlanningStatus {
	v := strings.ToLower(strings.TrimSpace(string(s)))
	v = strings.NewReplacer("_", "-", " ", "-").Replace(v)
	return PlanningStatus(v)
}

// InProgress reports whether the backend is still generating.
func (s PlanningStatus) InProgress() bool {
	switch s.Normalize() {
	case PlanningStatusGenerating, PlanningStatusProcessing, PlanningStatusPending:
		return true
	}
	return false
}

// Planning is the backend record returned by GET /api/plannings/{id}. Scope
// and SpecificObjectives hold JSON payloads, usually encoded as strings.
type Planning struct {
	ID                 string          `json:"id"`
	Status             PlanningStatus  `json:"status"`
	Scope              json.RawMessage `json:"scope,omitempty"`
	SpecificObjectives json.RawMessage `json:"specificObjectives,omitempty"`
	UpdatedAt          *time.Time      `json:"updatedAt,omitempty"`
}

// Task is one refined task object. The companion never interprets task
// fields; they are passed through to the UI and back to the backend as-is.
type Task = json.RawMessage

// ApproveTasksRequest is the body of POST /api/plannings/:id/approve and of
// the upstream approve-tasks call. An empty selection is rejected locally.
type ApproveTasksRequest struct {
	ApprovedTasks []Task `json:"approvedTasks"`
}

// ApproveTasksResponse acknowledges an accepted approval.
type ApproveTasksResponse struct {
	PlanningID string `json:"planningId"`
	TabState   string `json:"tabState"`
	Polling    bool   `json:"polling"`
}

// TrackPlanningRequest registers a planning with the tracker.
type TrackPlanningRequest struct {
	HasApprovableTasks bool `json:"hasApprovableTasks"`
}

// SetViewingRequest tells the tracker whether the refined tab is on screen.
type SetViewingRequest struct {
	Viewing bool `json:"viewing"`
}

// PlanningError is the error detail attached to a planning view.
type PlanningError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// PlanningViewResponse is the derived state of one planning.
type PlanningViewResponse struct {
	PlanningID string         `json:"planningId"`
	TabState   string         `json:"tabState"`
	Tasks      []Task         `json:"tasks,omitempty"`
	Error      *PlanningError `json:"error,omitempty"`
	Polling    bool           `json:"polling"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}
