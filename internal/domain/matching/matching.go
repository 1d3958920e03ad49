// Package matching scores how well a worker fits a task.
package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/trialeval/internal/domain/badge"
	"github.com/okian/trialeval/internal/domain/model"
)

// Component weights of the match score.
const (
	exactBadgeWeight     = 50
	qualifiedBadgeWeight = 30
	skillsWeight         = 35
	noSkillsScore        = 17
	categoryWeight       = 5
	ratingWeight         = 5
	experienceWeight     = 5

	maxRating         = 5.0
	experienceCeiling = 20
	highRating        = 4.0
)

// WorkerSummary is the worker data matching needs.
type WorkerSummary struct {
	ID                  string           `json:"id"`
	Badge               badge.Badge      `json:"badge"`
	Skills              []string         `json:"skills"`
	PreferredCategories []model.Category `json:"preferred_categories"`
	Rating              float64          `json:"rating"`
	CompletedTasks      int              `json:"completed_tasks"`
}

// TaskSummary is the task data matching needs.
type TaskSummary struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Category       model.Category `json:"category"`
	RequiredBadge  badge.Badge    `json:"required_badge"`
	RequiredSkills []string       `json:"required_skills"`
}

// Match is a scored worker/task pair.
type Match struct {
	TaskID   string   `json:"task_id"`
	Score    int      `json:"score"`
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

// IsEligible reports whether a worker badge may see a task requiring required.
func IsEligible(workerBadge, requiredBadge badge.Badge) bool {
	return badge.IsEligible(workerBadge, requiredBadge)
}

// Score computes the 0..100 compatibility of worker with task.
func Score(worker WorkerSummary, task TaskSummary) Match {
	m := Match{TaskID: task.ID, Eligible: IsEligible(worker.Badge, task.RequiredBadge)}
	var total float64

	switch {
	case !m.Eligible:
		m.Reasons = append(m.Reasons, fmt.Sprintf("Requires %s badge, worker has %s", task.RequiredBadge, worker.Badge))
	case worker.Badge == task.RequiredBadge:
		total += exactBadgeWeight
		m.Reasons = append(m.Reasons, fmt.Sprintf("Perfect badge match: %s level", worker.Badge))
	default:
		total += qualifiedBadgeWeight
		m.Reasons = append(m.Reasons, fmt.Sprintf("Qualified badge: %s meets %s", worker.Badge, task.RequiredBadge))
	}

	if len(task.RequiredSkills) == 0 {
		total += noSkillsScore
	} else if matched := MatchingSkills(worker.Skills, task.RequiredSkills); len(matched) > 0 {
		total += skillsWeight * float64(len(matched)) / float64(len(task.RequiredSkills))
		m.Reasons = append(m.Reasons, "Matching skills: "+strings.Join(matched, ", "))
	}

	for _, c := range worker.PreferredCategories {
		if c == task.Category {
			total += categoryWeight
			m.Reasons = append(m.Reasons, fmt.Sprintf("Preferred category: %s", task.Category))
			break
		}
	}

	rating := clamp(worker.Rating, 0, maxRating)
	total += rating / maxRating * ratingWeight
	if rating >= highRating {
		m.Reasons = append(m.Reasons, fmt.Sprintf("High rating: %.1f/5", rating))
	}

	if worker.CompletedTasks > 0 {
		done := math.Min(float64(worker.CompletedTasks), experienceCeiling)
		total += done / experienceCeiling * experienceWeight
		m.Reasons = append(m.Reasons, fmt.Sprintf("Experience: %d completed tasks", worker.CompletedTasks))
	}

	m.Score = int(math.Round(clamp(total, 0, 100)))
	return m
}

// MatchingSkills returns the required skills that some worker skill
// covers, compared case-insensitively by substring in either direction.
func MatchingSkills(workerSkills, required []string) []string {
	var out []string
	for _, req := range required {
		r := strings.ToLower(strings.TrimSpace(req))
		if r == "" {
			continue
		}
		for _, ws := range workerSkills {
			w := strings.ToLower(strings.TrimSpace(ws))
			if w != "" && (strings.Contains(w, r) || strings.Contains(r, w)) {
				out = append(out, strings.TrimSpace(req))
				break
			}
		}
	}
	return out
}

// FilterEligible returns the tasks a worker holding b may see, in input order.
func FilterEligible(b badge.Badge, tasks []TaskSummary) []TaskSummary {
	out := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		if IsEligible(b, t.RequiredBadge) {
			out = append(out, t)
		}
	}
	return out
}

// Rank scores the eligible tasks for worker, best first. Ties are broken
// by task id.
func Rank(worker WorkerSummary, tasks []TaskSummary) []Match {
	return ScoreAll(worker, FilterEligible(worker.Badge, tasks))
}

// ScoreAll scores every task for worker, eligible or not, best first.
// Ties are broken by task id.
func ScoreAll(worker WorkerSummary, tasks []TaskSummary) []Match {
	out := make([]Match, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, Score(worker, t))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
