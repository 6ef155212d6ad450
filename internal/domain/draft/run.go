// Package draft describes indictment drafting runs as they are recorded
// for later review.
package draft

import (
	"context"
	"time"
)

// Status is the terminal or current state of a drafting run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	// StatusDegraded marks a run that finished after at least one stage
	// exhausted its retry budget.
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// Run is one drafting request and its outcome.
type Run struct {
	ID              string             `json:"id"`
	QueryID         *int64             `json:"query_id,omitempty"`
	Status          Status             `json:"status"`
	SearchType      string             `json:"search_type"`
	TopK            int                `json:"top_k"`
	ReferenceCaseID *int64             `json:"reference_case_id,omitempty"`
	CaseType        string             `json:"case_type,omitempty"`
	LawNumbers      []string           `json:"law_numbers"`
	Totals          map[string]float64 `json:"totals"`
	DegradedStages  []string           `json:"degraded_stages"`
	ArchiveKey      string             `json:"archive_key,omitempty"`
	Error           string             `json:"error,omitempty"`
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      *time.Time         `json:"finished_at,omitempty"`
}

// Duration is zero until the run finishes.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Finish stamps the terminal status.
func (r *Run) Finish(status Status, at time.Time, err error) {
	r.Status = status
	r.FinishedAt = &at
	if err != nil {
		r.Error = err.Error()
	}
}

// RunRepository records drafting runs.
type RunRepository interface {
	Create(ctx context.Context, run *Run) error
	// Update persists the mutable outcome fields of an existing run.
	Update(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	ListRecent(ctx context.Context, limit int) ([]*Run, error)
}
