// Package model contains domain models passed between layers.
package model

import "strings"

// Category identifies the kind of work a trial task asks for.
type Category string

// Known task categories. Any other value is routed to the generic evaluator.
const (
	CategoryDataEntry    Category = "DATA_ENTRY"
	CategoryContent      Category = "CONTENT"
	CategoryOrganization Category = "ORGANIZATION"
)

// ParseCategory normalizes free-form input such as "data entry" or
// "data-entry" into a Category. Unrecognized values are kept upper-cased.
func ParseCategory(s string) Category {
	c := strings.ToUpper(strings.TrimSpace(s))
	c = strings.NewReplacer(" ", "_", "-", "_").Replace(c)
	return Category(c)
}

// Known reports whether c has a dedicated evaluator.
func (c Category) Known() bool {
	switch c {
	case CategoryDataEntry, CategoryContent, CategoryOrganization:
		return true
	}
	return false
}

// TrialTask is a catalog entry a worker completes to earn a badge.
type TrialTask struct {
	ID                string     `json:"id" yaml:"id"`
	Title             string     `json:"title" yaml:"title"`
	Category          Category   `json:"category" yaml:"category"`
	PayAmount         float64    `json:"pay_amount" yaml:"pay_amount"`
	TimeLimitMinutes  int        `json:"time_limit_minutes" yaml:"time_limit_minutes"`
	Difficulty        string     `json:"difficulty" yaml:"difficulty"`
	AccuracyThreshold float64    `json:"accuracy_threshold" yaml:"accuracy_threshold"` // percent; 0 uses the configured default
	Instructions      string     `json:"instructions" yaml:"instructions"`
	Active            bool       `json:"active" yaml:"active"`
	Sample            TaskSample `json:"sample" yaml:"sample"`
}

// TaskSample is the category-specific payload shown to the worker.
type TaskSample struct {
	// TargetWords is the expected length of a content submission.
	TargetWords int `json:"target_words,omitempty" yaml:"target_words,omitempty"`
	// Topic is the content brief.
	Topic string `json:"topic,omitempty" yaml:"topic,omitempty"`
	// Records is raw source material for data entry tasks.
	Records []DataRecord `json:"records,omitempty" yaml:"records,omitempty"`
	// Contacts is the messy contact list for organization tasks.
	Contacts []Contact `json:"contacts,omitempty" yaml:"contacts,omitempty"`
}
