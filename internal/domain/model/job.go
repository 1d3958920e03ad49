package model

import "time"

// Job is an evaluation request travelling through the async pipeline.
type Job struct {
	SubmissionID string     // unique id for idempotency
	WorkerID     string     // worker who produced the submission
	TaskID       string     // catalog id of the trial task
	Submission   Submission // typed worker input
	MinutesSpent float64    // elapsed time reported by the client
	SubmittedAt  time.Time
}
