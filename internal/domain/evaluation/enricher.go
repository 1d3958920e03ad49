package evaluation

import (
	"context"

	"github.com/okian/trialeval/internal/domain/model"
)

// Enricher adds advisory notes to a finished result, for example from an
// external text-analysis service. It cannot change scores.
type Enricher interface {
	Enrich(ctx context.Context, task model.TrialTask, sub model.Submission, result model.EvaluationResult) ([]string, error)
}

// EnricherFunc adapts a function to the Enricher interface.
type EnricherFunc func(ctx context.Context, task model.TrialTask, sub model.Submission, result model.EvaluationResult) ([]string, error)

// Enrich calls f.
func (f EnricherFunc) Enrich(ctx context.Context, task model.TrialTask, sub model.Submission, result model.EvaluationResult) ([]string, error) {
	return f(ctx, task, sub, result)
}
