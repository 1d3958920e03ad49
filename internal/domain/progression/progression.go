// Package progression maps cumulative trial results to a badge.
package progression

import (
	"fmt"
	"math"

	"github.com/okian/trialeval/internal/domain/badge"
	"github.com/okian/trialeval/internal/domain/model"
)

// Platform rate bounds (INR per hour).
const (
	MinHourlyRate = 100
	MaxHourlyRate = 1000
)

// Experience levels reported alongside the badge.
const (
	LevelBeginner     = "beginner"
	LevelEntry        = "entry"
	LevelIntermediate = "intermediate"
	LevelExperienced  = "experienced"
	LevelExpert       = "expert"
)

// threshold is the minimum record a worker needs for a badge.
type threshold struct {
	badge     badge.Badge
	passed    int
	completed int
}

// thresholds are ordered from the highest badge down.
var thresholds = []threshold{ //nolint:gochecknoglobals // fixed platform constants
	{badge: badge.Platinum, passed: 20, completed: 25},
	{badge: badge.Gold, passed: 10, completed: 12},
	{badge: badge.Silver, passed: 5, completed: 6},
	{badge: badge.Bronze, passed: 2, completed: 3},
}

// Counters is the cumulative record the assigner works from.
type Counters struct {
	Completed        int
	Passed           int
	Current          badge.Badge
	PassedCategories []model.Category
}

// Assignment is the outcome of a badge decision.
type Assignment struct {
	Badge               badge.Badge      `json:"badge"`
	Upgraded            bool             `json:"upgraded"`
	Reason              string           `json:"badge_reason"`
	ExperienceLevel     string           `json:"experience_level"`
	EstimatedHourlyRate int              `json:"estimated_hourly_rate"`
	Skills              []string         `json:"skills"`
	RecommendedTasks    []model.Category `json:"recommended_tasks"`
}

// CountersOf extracts the counters stored in a progression.
func CountersOf(p model.Progression) Counters {
	return Counters{
		Completed:        p.Completed,
		Passed:           p.Passed,
		Current:          p.CurrentBadge,
		PassedCategories: p.PassedCategories,
	}
}

func (c Counters) normalized() Counters {
	if c.Completed < 0 {
		c.Completed = 0
	}
	if c.Passed < 0 {
		c.Passed = 0
	}
	if c.Passed > c.Completed {
		c.Passed = c.Completed
	}
	if !c.Current.Valid() {
		c.Current = badge.None
	}
	return c
}

// Earned returns the badge the counters alone qualify for.
func Earned(completed, passed int) badge.Badge {
	for _, t := range thresholds {
		if passed >= t.passed && completed >= t.completed {
			return t.badge
		}
	}
	return badge.None
}

// Assign decides the badge for counters after latest was evaluated.
// The latest result only shapes the rate and skills; the badge depends on
// the counters, and is never lower than counters.Current.
func Assign(counters Counters, latest model.EvaluationResult) Assignment {
	c := counters.normalized()
	earned := Earned(c.Completed, c.Passed)
	final := badge.Max(earned, c.Current)

	return Assignment{
		Badge:               final,
		Upgraded:            final.Rank() > c.Current.Rank(),
		Reason:              reason(c, earned, final, latest),
		ExperienceLevel:     ExperienceLevel(final),
		EstimatedHourlyRate: HourlyRate(final, latest.OverallScore),
		Skills:              skills(c.PassedCategories, latest),
		RecommendedTasks:    recommend(c.PassedCategories, latest),
	}
}

// Apply records result against state and returns the new state with its
// badge assignment. UpdatedAt is left to the caller.
func Apply(state model.Progression, result model.EvaluationResult) (model.Progression, Assignment) {
	c := CountersOf(state).normalized()
	c.Completed++
	if result.Passed {
		c.Passed++
	}

	a := Assign(c, result)

	next := state
	next.Completed = c.Completed
	next.Passed = c.Passed
	next.CurrentBadge = a.Badge
	next.PassedCategories = append([]model.Category(nil), c.PassedCategories...)
	if result.Passed && result.Category != "" && !next.HasPassed(result.Category) {
		next.PassedCategories = append(next.PassedCategories, result.Category)
	}
	if result.OverallScore > next.BestOverall {
		next.BestOverall = result.OverallScore
	}
	return next, a
}

// ExperienceLevel names the experience level that goes with b.
func ExperienceLevel(b badge.Badge) string {
	switch b {
	case badge.Bronze:
		return LevelEntry
	case badge.Silver:
		return LevelIntermediate
	case badge.Gold:
		return LevelExperienced
	case badge.Platinum:
		return LevelExpert
	default:
		return LevelBeginner
	}
}

// HourlyRate interpolates inside the badge's rate band by overall score.
func HourlyRate(b badge.Badge, overall int) int {
	band := b.RateBand()
	score := math.Max(0, math.Min(100, float64(overall)))
	rate := band.Min + (band.Max-band.Min)*score/100
	return int(math.Round(math.Max(MinHourlyRate, math.Min(MaxHourlyRate, rate))))
}

func reason(c Counters, earned, final badge.Badge, latest model.EvaluationResult) string {
	record := fmt.Sprintf("passed %d of %d trial tasks", c.Passed, c.Completed)
	switch {
	case final == badge.None:
		next := thresholds[len(thresholds)-1]
		return fmt.Sprintf("No badge yet: %s; %s needs %d passed of %d completed",
			record, next.badge, next.passed, next.completed)
	case earned.Rank() < final.Rank():
		return fmt.Sprintf("Kept %s: %s; earned badges are not revoked", final, record)
	default:
		return fmt.Sprintf("Earned %s: %s with %d%% accuracy on the latest task",
			final, record, latest.AccuracyScore)
	}
}

// categorySkills lists the skills a passed category demonstrates.
var categorySkills = map[model.Category][]string{ //nolint:gochecknoglobals // fixed lookup
	model.CategoryDataEntry:    {"Data Entry", "Attention to Detail"},
	model.CategoryContent:      {"Content Writing", "Copywriting"},
	model.CategoryOrganization: {"Data Organization", "Contact Management"},
}

func skillsFor(c model.Category) []string {
	if s, ok := categorySkills[c]; ok {
		return s
	}
	return []string{string(c)}
}

func skills(passed []model.Category, latest model.EvaluationResult) []string {
	cats := passedWithLatest(passed, latest)
	seen := make(map[string]struct{})
	out := make([]string, 0, len(cats)*2)
	for _, c := range cats {
		for _, s := range skillsFor(c) {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// recommend lists the known categories, unpassed ones first.
func recommend(passed []model.Category, latest model.EvaluationResult) []model.Category {
	done := make(map[model.Category]bool)
	for _, c := range passedWithLatest(passed, latest) {
		done[c] = true
	}
	known := []model.Category{model.CategoryDataEntry, model.CategoryContent, model.CategoryOrganization}
	out := make([]model.Category, 0, len(known))
	for _, c := range known {
		if !done[c] {
			out = append(out, c)
		}
	}
	for _, c := range known {
		if done[c] {
			out = append(out, c)
		}
	}
	return out
}

func passedWithLatest(passed []model.Category, latest model.EvaluationResult) []model.Category {
	out := make([]model.Category, 0, len(passed)+1)
	seen := make(map[model.Category]bool, len(passed)+1)
	for _, c := range passed {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if latest.Passed && latest.Category != "" && !seen[latest.Category] {
		out = append(out, latest.Category)
	}
	return out
}
