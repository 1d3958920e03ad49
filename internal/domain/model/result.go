package model

// Tier buckets an overall score into a performance band.
type Tier string

// Performance tiers from best to worst.
const (
	TierExcellent        Tier = "excellent"
	TierGood             Tier = "good"
	TierSatisfactory     Tier = "satisfactory"
	TierNeedsImprovement Tier = "needs_improvement"
	TierPoor             Tier = "poor"
)

// Tier thresholds on the overall score.
const (
	excellentFloor        = 90
	goodFloor             = 80
	satisfactoryFloor     = 70
	needsImprovementFloor = 60
)

// TierFor maps an overall score to its tier.
func TierFor(overall int) Tier {
	switch {
	case overall >= excellentFloor:
		return TierExcellent
	case overall >= goodFloor:
		return TierGood
	case overall >= satisfactoryFloor:
		return TierSatisfactory
	case overall >= needsImprovementFloor:
		return TierNeedsImprovement
	default:
		return TierPoor
	}
}

// EvaluationResult is the outcome of scoring one submission.
// All scores are in [0,100].
type EvaluationResult struct {
	Category      Category           `json:"category"`
	AccuracyScore int                `json:"accuracy_score"`
	SpeedScore    int                `json:"speed_score"`
	QualityScore  int                `json:"quality_score"`
	OverallScore  int                `json:"overall_score"`
	Passed        bool               `json:"passed"`
	Tier          Tier               `json:"performance_tier"`
	Feedback      string             `json:"feedback"`
	Detailed      DetailedFeedback   `json:"detailed_feedback"`
	Metrics       map[string]float64 `json:"performance_metrics"`
}

// DetailedFeedback breaks the result down per dimension.
type DetailedFeedback struct {
	Accuracy     int      `json:"accuracy"`
	Speed        int      `json:"speed"`
	Quality      int      `json:"quality"`
	Threshold    float64  `json:"accuracy_threshold"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	Notes        []string `json:"notes,omitempty"`
}
