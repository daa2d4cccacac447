package domain

import "time"

// Processing states reported while an upload works through the pipeline.
const (
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// ProcessingStatus is the transient status of one upload, keyed by the
// upload id the client received when it submitted the pack.
type ProcessingStatus struct {
	UploadID    string    `json:"upload_id"`
	State       string    `json:"state"`
	SessionID   string    `json:"session_id,omitempty"`
	Message     string    `json:"message,omitempty"`
	FailedFiles []string  `json:"failed_files,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
