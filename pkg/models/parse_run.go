package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus tracks one ingestion attempt.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ParseRun is an append-only audit record of one ingestion attempt against
// a tracked source. Long-running runs are mutated only through the explicit
// update path.
type ParseRun struct {
	ID         uuid.UUID  `json:"id"`
	ProjectID  int64      `json:"project_id"`
	TargetKind SourceKind `json:"target_kind"`
	TargetID   int64      `json:"target_id"`
	Status     RunStatus  `json:"status"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Found      int        `json:"found"`
	Added      int        `json:"added"`
	Errors     int        `json:"errors"`
}
