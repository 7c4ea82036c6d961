package model

// WebSocket message types
const (
	WSMessageTypePlanning      = "planning"
	WSMessageTypeTranscription = "transcription"
	WSMessageTypeComplete      = "complete"
	WSMessageTypeError         = "error"
	WSMessageTypeCommand       = "command"
	WSMessageTypePing          = "ping"
	WSMessageTypePong          = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSPlanningMessage carries a planning view update
type WSPlanningMessage struct {
	Type string               `json:"type"`
	View PlanningViewResponse `json:"view"`
}

// WSTranscriptionMessage carries a transcription view update
type WSTranscriptionMessage struct {
	Type string            `json:"type"`
	View TranscriptionView `json:"view"`
}

// WSCompleteMessage represents job completion
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	JobID  string      `json:"jobId"`
	Result interface{} `json:"result"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId,omitempty"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WSCommandMessage instructs the browser bridge to call the conferencing SDK
type WSCommandMessage struct {
	Type    string            `json:"type"`
	Command string            `json:"command"`
	Config  map[string]string `json:"config,omitempty"`
}
