package evaluation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/okian/trialeval/internal/domain/model"
	"github.com/okian/trialeval/internal/domain/scoring"
	"github.com/okian/trialeval/pkg/logger"
	"github.com/okian/trialeval/pkg/metrics"
)

// Engine dispatches submissions to category evaluators and aggregates
// their sub-scores into an EvaluationResult. It holds no mutable state
// after construction and is safe for concurrent use.
type Engine struct {
	weights    Weights
	evaluators map[model.Category]CategoryEvaluator
	fallback   CategoryEvaluator
	enricher   Enricher
	logger     logger.Logger
}

// NewEngine creates an engine with the built-in evaluators and default weights.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		weights: DefaultWeights(),
		evaluators: map[model.Category]CategoryEvaluator{
			model.CategoryDataEntry:    DataEntryEvaluator{},
			model.CategoryContent:      ContentEvaluator{},
			model.CategoryOrganization: OrganizationEvaluator{},
		},
		fallback: GenericEvaluator{},
		logger:   logger.NewNop(),
	}

	// Apply all options
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Weights returns the normalized weights in use.
func (e *Engine) Weights() Weights { return e.weights }

// Evaluate scores sub against task. It never panics and never returns an
// error: malformed input degrades the scores, and internal failures yield
// a safe poor result with explanatory feedback.
func (e *Engine) Evaluate(ctx context.Context, task model.TrialTask, sub model.Submission, minutes float64) (result model.EvaluationResult) {
	threshold := e.weights.ThresholdFor(task)
	category := string(task.Category)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrInternalScoring, r)
			e.logger.Error(ctx, "evaluation failed; returning fail-soft result",
				logger.String("task_id", task.ID),
				logger.String("category", category),
				logger.Error(err),
			)
			metrics.RecordEvaluationFailure(category)
			result = failSoft(task.Category, threshold, err)
		}
	}()

	ev, sub, notes := e.dispatch(ctx, task, sub)
	scores := ev.Evaluate(task, sub, minutes)

	result = e.aggregate(task.Category, threshold, scores)
	result.Detailed.Notes = append(result.Detailed.Notes, notes...)

	if e.enricher != nil {
		extra, err := e.enricher.Enrich(ctx, task, sub, result)
		if err != nil {
			e.logger.Warn(ctx, "feedback enrichment failed", logger.String("task_id", task.ID), logger.Error(err))
		} else {
			result.Detailed.Notes = append(result.Detailed.Notes, extra...)
		}
	}

	metrics.RecordEvaluation(category, outcome(result.Passed))
	metrics.RecordEvaluationScore(category, float64(result.OverallScore))
	e.logger.Debug(ctx, "submission evaluated",
		logger.String("task_id", task.ID),
		logger.String("category", category),
		logger.Int("overall", result.OverallScore),
		logger.Bool("passed", result.Passed),
	)
	return result
}

// dispatch picks the evaluator for task and the submission it scores.
// A submission shaped for another category is replaced by the task's
// empty submission, so it scores as if nothing was attempted.
func (e *Engine) dispatch(ctx context.Context, task model.TrialTask, sub model.Submission) (CategoryEvaluator, model.Submission, []string) {
	ev, ok := e.evaluators[task.Category]
	if !ok {
		if sub == nil {
			sub = model.EmptySubmission(task.Category)
		}
		return e.fallback, sub, nil
	}
	if sub != nil && sub.Category() == task.Category {
		return ev, sub, nil
	}

	got := "none"
	if sub != nil {
		got = string(sub.Category())
	}
	e.logger.Warn(ctx, "submission shape does not match task category",
		logger.String("task_id", task.ID),
		logger.String("want", string(task.Category)),
		logger.String("got", got),
	)
	note := fmt.Sprintf("%v: expected %s, got %s", ErrSubmissionMismatch, task.Category, got)
	return ev, model.EmptySubmission(task.Category), []string{note}
}

// aggregate applies the weights, pass rule and tier mapping.
func (e *Engine) aggregate(category model.Category, threshold float64, s Scores) model.EvaluationResult {
	accuracy := roundScore(s.Accuracy)
	speed := roundScore(s.Speed)
	quality := roundScore(s.Quality)
	overall := roundScore(float64(accuracy)*e.weights.Accuracy +
		float64(speed)*e.weights.Speed +
		float64(quality)*e.weights.Quality)

	passed := float64(accuracy) >= threshold && float64(overall) >= e.weights.PassOverall
	tier := model.TierFor(overall)

	return model.EvaluationResult{
		Category:      category,
		AccuracyScore: accuracy,
		SpeedScore:    speed,
		QualityScore:  quality,
		OverallScore:  overall,
		Passed:        passed,
		Tier:          tier,
		Feedback:      e.composeFeedback(tier, passed, accuracy, overall, threshold, s.Feedback),
		Detailed: model.DetailedFeedback{
			Accuracy:     accuracy,
			Speed:        speed,
			Quality:      quality,
			Threshold:    threshold,
			Strengths:    s.Strengths,
			Improvements: s.Improvements,
		},
		Metrics: s.Metrics,
	}
}

func failSoft(category model.Category, threshold float64, err error) model.EvaluationResult {
	return model.EvaluationResult{
		Category: category,
		Passed:   false,
		Tier:     model.TierPoor,
		Feedback: "We could not score this submission automatically. It has been recorded with a zero score; please retry or contact support.",
		Detailed: model.DetailedFeedback{
			Threshold: threshold,
			Notes:     []string{err.Error()},
		},
		Metrics: map[string]float64{},
	}
}

var tierHeadlines = map[model.Tier]string{
	model.TierExcellent:        "Excellent work!",
	model.TierGood:             "Good job.",
	model.TierSatisfactory:     "Satisfactory result.",
	model.TierNeedsImprovement: "Needs improvement.",
	model.TierPoor:             "This attempt needs significant improvement.",
}

func (e *Engine) composeFeedback(tier model.Tier, passed bool, accuracy, overall int, threshold float64, detail string) string {
	var b strings.Builder
	b.WriteString(tierHeadlines[tier])
	switch {
	case passed:
		b.WriteString(" You passed this trial task.")
	case float64(accuracy) < threshold:
		fmt.Fprintf(&b, " Not passed yet: accuracy %d%% against a required %.0f%%.", accuracy, threshold)
	default:
		fmt.Fprintf(&b, " Not passed yet: overall score %d against a required %.0f.", overall, e.weights.PassOverall)
	}
	if detail != "" {
		b.WriteString(" ")
		b.WriteString(detail)
	}
	return b.String()
}

func roundScore(v float64) int {
	return int(math.Round(scoring.Clamp(v)))
}

func outcome(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
