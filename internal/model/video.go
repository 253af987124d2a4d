package model

import "time"

// ProcessingState is the pipeline stage marker of a Video.
type ProcessingState string

const (
	StatePending    ProcessingState = "pending"
	StateProcessing ProcessingState = "processing"
	StateCompleted  ProcessingState = "completed"
	StateFailed     ProcessingState = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s ProcessingState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Valid reports whether s is one of the known states.
func (s ProcessingState) Valid() bool {
	switch s {
	case StatePending, StateProcessing, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Disposition is the outcome of content screening, independent of ProcessingState.
type Disposition string

const (
	DispositionPending Disposition = "pending"
	DispositionSafe    Disposition = "safe"
	DispositionFlagged Disposition = "flagged"
)

// Valid reports whether d is one of the known dispositions.
func (d Disposition) Valid() bool {
	switch d {
	case DispositionPending, DispositionSafe, DispositionFlagged:
		return true
	}
	return false
}

// Video is an uploaded media object and its processing record.
// Duration, Width and Height are nil until the metadata stage has run.
// ProcessedAt is non-nil exactly when State is StateCompleted.
type Video struct {
	ID                string          `json:"id"`
	TenantID          string          `json:"tenant_id"`
	UploadedBy        string          `json:"uploaded_by"`
	OriginalName      string          `json:"original_name"`
	Filename          string          `json:"filename"`
	StoragePath       string          `json:"storage_path"`
	Size              int64           `json:"size"`
	ContentType       string          `json:"content_type"`
	State             ProcessingState `json:"processing_state"`
	Progress          int             `json:"processing_progress"`
	FailureReason     *string         `json:"failure_reason,omitempty"`
	Duration          *float64        `json:"duration,omitempty"`
	Width             *int            `json:"width,omitempty"`
	Height            *int            `json:"height,omitempty"`
	Disposition       Disposition     `json:"disposition"`
	DispositionReason *string         `json:"disposition_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
}

// VideoUpdate is a partial update applied atomically by identifier.
// Nil fields are left untouched.
type VideoUpdate struct {
	State             *ProcessingState
	Progress          *int
	FailureReason     *string
	Duration          *float64
	Width             *int
	Height            *int
	Disposition       *Disposition
	DispositionReason *string
	ProcessedAt       *time.Time
}

// Empty reports whether the update would change nothing.
func (u VideoUpdate) Empty() bool {
	return u.State == nil && u.Progress == nil && u.FailureReason == nil &&
		u.Duration == nil && u.Width == nil && u.Height == nil &&
		u.Disposition == nil && u.DispositionReason == nil && u.ProcessedAt == nil
}

// VideoFilter narrows a video listing. Empty fields match everything.
type VideoFilter struct {
	TenantID    string
	State       ProcessingState
	Disposition Disposition
}
