package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage represents a progress update
type WSProgressMessage struct {
	Type         string      `json:"type"`
	JobID        string      `json:"jobId"`
	Status       JobStatus   `json:"status"`
	Stage        ExportStage `json:"stage"`
	Percent      int         `json:"percent"`
	Message      string      `json:"message,omitempty"`
	CurrentFrame int         `json:"currentFrame,omitempty"`
	TotalFrames  int         `json:"totalFrames,omitempty"`
}

// WSCompleteMessage represents job completion
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	JobID  string      `json:"jobId"`
	Result interface{} `json:"result"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string   `json:"type"`
	JobID string   `json:"jobId"`
	Error JobError `json:"error"`
}
