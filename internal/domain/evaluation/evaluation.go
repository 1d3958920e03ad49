// Package evaluation scores trial-task submissions. Category evaluators
// turn a typed submission into accuracy, speed and quality sub-scores; the
// Engine aggregates them, decides pass/fail and assigns a performance tier.
package evaluation

import (
	"math"

	"github.com/okian/trialeval/internal/domain/model"
)

// Default aggregation constants.
const (
	DefaultAccuracyWeight    = 0.4
	DefaultSpeedWeight       = 0.3
	DefaultQualityWeight     = 0.3
	DefaultPassOverall       = 75
	DefaultAccuracyThreshold = 85
)

// Scores is what a category evaluator reports for one submission.
type Scores struct {
	Accuracy     float64
	Speed        float64
	Quality      float64
	Feedback     string
	Strengths    []string
	Improvements []string
	Metrics      map[string]float64
}

// CategoryEvaluator scores submissions of one task category.
type CategoryEvaluator interface {
	Evaluate(task model.TrialTask, sub model.Submission, minutes float64) Scores
}

// Weights controls aggregation and the pass decision.
type Weights struct {
	Accuracy float64 `koanf:"accuracy"`
	Speed    float64 `koanf:"speed"`
	Quality  float64 `koanf:"quality"`
	// PassOverall is the minimum overall score required to pass.
	PassOverall float64 `koanf:"pass_overall"`
	// DefaultAccuracyThreshold applies to tasks without their own threshold.
	DefaultAccuracyThreshold float64 `koanf:"default_accuracy_threshold"`
}

// DefaultWeights returns the platform aggregation constants.
func DefaultWeights() Weights {
	return Weights{
		Accuracy:                 DefaultAccuracyWeight,
		Speed:                    DefaultSpeedWeight,
		Quality:                  DefaultQualityWeight,
		PassOverall:              DefaultPassOverall,
		DefaultAccuracyThreshold: DefaultAccuracyThreshold,
	}
}

// Normalized returns w with dimension weights scaled to sum to 1. Invalid
// weights fall back to the defaults, and out-of-range thresholds are reset.
func (w Weights) Normalized() Weights {
	def := DefaultWeights()
	sum := w.Accuracy + w.Speed + w.Quality
	if !validWeight(w.Accuracy) || !validWeight(w.Speed) || !validWeight(w.Quality) || sum <= 0 {
		w.Accuracy, w.Speed, w.Quality = def.Accuracy, def.Speed, def.Quality
		sum = 1
	}
	w.Accuracy /= sum
	w.Speed /= sum
	w.Quality /= sum
	if !validPercent(w.PassOverall) {
		w.PassOverall = def.PassOverall
	}
	if !validPercent(w.DefaultAccuracyThreshold) {
		w.DefaultAccuracyThreshold = def.DefaultAccuracyThreshold
	}
	return w
}

// ThresholdFor returns the accuracy threshold that applies to task.
func (w Weights) ThresholdFor(task model.TrialTask) float64 {
	if validPercent(task.AccuracyThreshold) {
		return task.AccuracyThreshold
	}
	return w.DefaultAccuracyThreshold
}

func validWeight(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func validPercent(v float64) bool {
	return !math.IsNaN(v) && v > 0 && v <= 100
}
