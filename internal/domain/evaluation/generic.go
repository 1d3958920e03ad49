package evaluation

import (
	"fmt"

	"github.com/okian/trialeval/internal/domain/model"
	"github.com/okian/trialeval/internal/domain/scoring"
)

// Generic fallback constants.
const (
	genericAccuracy        = 80
	genericQuality         = 75
	genericEmptyAccuracy   = 20
	genericEmptyQuality    = 10
	genericBaselineMinutes = 30
	genericMaxMinutes      = 60
)

// GenericEvaluator is the fallback for categories without a dedicated
// evaluator: any filled field earns moderate-to-high scores.
type GenericEvaluator struct{}

// Evaluate implements CategoryEvaluator.
func (GenericEvaluator) Evaluate(_ model.TrialTask, sub model.Submission, minutes float64) Scores {
	filled := 0
	if sub != nil {
		filled = sub.FilledFields()
	}
	out := Scores{
		Metrics: map[string]float64{
			"fields_filled": float64(filled),
		},
	}
	if filled == 0 {
		out.Accuracy = genericEmptyAccuracy
		out.Quality = genericEmptyQuality
		out.Feedback = "The submission was empty."
		out.Improvements = []string{"Complete the task fields before submitting"}
		return out
	}
	out.Accuracy = genericAccuracy
	out.Quality = genericQuality
	out.Speed = scoring.Speed(minutes, genericBaselineMinutes, genericMaxMinutes)
	out.Feedback = fmt.Sprintf("Submitted %d field(s).", filled)
	out.Strengths = []string{"Completed the task"}
	return out
}
