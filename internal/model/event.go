package model

// ProgressEvent is an ephemeral notification about one video's processing.
// It is never persisted; the Video record keeps the durable progress.
type ProgressEvent struct {
	VideoID           string          `json:"video_id"`
	TenantID          string          `json:"tenant_id"`
	Status            ProcessingState `json:"status"`
	Progress          int             `json:"progress"`
	Stage             string          `json:"stage"`
	Disposition       Disposition     `json:"disposition,omitempty"`
	DispositionReason string          `json:"disposition_reason,omitempty"`
	Error             string          `json:"error,omitempty"`
}
