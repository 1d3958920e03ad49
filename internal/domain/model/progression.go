package model

import (
	"time"

	"github.com/okian/trialeval/internal/domain/badge"
)

// Progression is a worker's cumulative trial-task record.
type Progression struct {
	WorkerID         string      `json:"worker_id"`
	Completed        int         `json:"trial_tasks_completed"`
	Passed           int         `json:"trial_tasks_passed"`
	CurrentBadge     badge.Badge `json:"current_badge"`
	PassedCategories []Category  `json:"passed_categories"`
	BestOverall      int         `json:"best_overall_score"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// HasPassed reports whether c is already among the passed categories.
func (p Progression) HasPassed(c Category) bool {
	for _, pc := range p.PassedCategories {
		if pc == c {
			return true
		}
	}
	return false
}
