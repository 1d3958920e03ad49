package evaluation

import (
	"github.com/okian/trialeval/internal/domain/model"
	"github.com/okian/trialeval/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithWeights sets the aggregation weights and pass thresholds.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.weights = w.Normalized()
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEvaluator registers or replaces the evaluator for a category.
func WithEvaluator(c model.Category, ev CategoryEvaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.evaluators[c] = ev
		}
	}
}

// WithEnricher attaches an optional feedback enricher.
func WithEnricher(en Enricher) Option {
	return func(e *Engine) {
		e.enricher = en
	}
}
