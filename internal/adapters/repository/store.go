// Package repository stores evaluation results and worker progressions.
package repository

import (
	"context"
	"time"

	"github.com/okian/trialeval/internal/domain/badge"
	"github.com/okian/trialeval/internal/domain/model"
)

// Status is the lifecycle state of a submission.
type Status string

// Submission states.
const (
	StatusQueued    Status = "queued"
	StatusEvaluated Status = "evaluated"
	StatusFailed    Status = "failed"
)

// Record is a stored submission and, once evaluated, its result.
type Record struct {
	SubmissionID string                 `json:"submission_id"`
	WorkerID     string                 `json:"worker_id"`
	TaskID       string                 `json:"task_id"`
	Status       Status                 `json:"status"`
	Result       model.EvaluationResult `json:"result"`
	Badge        badge.Badge            `json:"badge"`
	Upgraded     bool                   `json:"badge_upgraded"`
	Error        string                 `json:"error,omitempty"`
	SubmittedAt  time.Time              `json:"submitted_at"`
	EvaluatedAt  time.Time              `json:"evaluated_at,omitempty"`
}

// Store provides read/write access to results and progressions.
type Store interface {
	// SaveResult inserts or replaces the record for rec.SubmissionID.
	SaveResult(ctx context.Context, rec Record) error
	// GetResult returns ErrNotFound if the submission is unknown.
	GetResult(ctx context.Context, submissionID string) (Record, error)

	// GetProgression returns ErrNotFound if the worker has no progression yet.
	GetProgression(ctx context.Context, workerID string) (model.Progression, error)
	// SaveProgression inserts or replaces the progression for p.WorkerID.
	SaveProgression(ctx context.Context, p model.Progression) error

	// Count returns the number of stored submission records.
	Count(ctx context.Context) int
	// Workers returns the number of workers with a progression.
	Workers(ctx context.Context) int

	Close() error
}
