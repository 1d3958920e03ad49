package evaluation

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/trialeval/internal/domain/model"
	"github.com/okian/trialeval/internal/domain/scoring"
)

// Contact organization constants.
const (
	organizationSlots             = 5
	organizationFieldsPerContact  = 4
	organizationFullCreditContact = 4
	organizationFormattedPoints   = 5
	organizationFilledPoints      = 3
	organizationBonusPerField     = 2
	organizationBonusCap          = 20
	organizationBaselineMinutes   = 15
	organizationMaxMinutes        = 40
	organizationMinNameLength     = 2
)

// OrganizationEvaluator scores ORGANIZATION submissions on field
// completeness and format conventions.
type OrganizationEvaluator struct{}

type fieldTally struct {
	filled    int
	formatted int
}

// Evaluate implements CategoryEvaluator.
func (OrganizationEvaluator) Evaluate(_ model.TrialTask, sub model.Submission, minutes float64) Scores {
	org, _ := sub.(model.OrganizationSubmission)
	minutes = scoring.NormalizeMinutes(minutes)

	tallies := map[string]*fieldTally{
		"name": {}, "phone": {}, "email": {}, "company": {},
	}
	var attempted, filled, formatted, points int
	for i, c := range org.Contacts {
		if i >= organizationSlots {
			break
		}
		if c.Empty() {
			continue
		}
		attempted++
		checks := []struct {
			field string
			value string
			ok    func(string) bool
		}{
			{"name", c.Name, wellFormedName},
			{"phone", c.Phone, scoring.ValidPhone},
			{"email", c.Email, scoring.ValidEmail},
			{"company", c.Company, scoring.IsCapitalized},
		}
		for _, chk := range checks {
			if isBlank(chk.value) {
				continue
			}
			filled++
			tallies[chk.field].filled++
			if chk.ok(chk.value) {
				formatted++
				tallies[chk.field].formatted++
				points += organizationFormattedPoints
			} else {
				points += organizationFilledPoints
			}
		}
	}

	bonus := 0
	if filled >= 2 {
		bonus = min(organizationBonusCap, organizationBonusPerField*filled)
	}
	theoreticalMax := float64(organizationFullCreditContact * organizationFieldsPerContact * organizationFormattedPoints)
	accuracy := scoring.Clamp(scoring.Ratio(float64(points), theoreticalMax)*scoring.MaxScore + float64(bonus))

	quality := scoring.Clamp(scoring.Ratio(float64(formatted), float64(filled)) * scoring.MaxScore)
	speed := 0.0
	if attempted > 0 {
		speed = scoring.Speed(minutes, organizationBaselineMinutes, organizationMaxMinutes)
	}

	out := Scores{
		Accuracy: accuracy,
		Speed:    speed,
		Quality:  quality,
		Metrics: map[string]float64{
			"contacts_expected":   organizationSlots,
			"contacts_attempted":  float64(attempted),
			"completion_rate":     scoring.Ratio(float64(attempted), organizationSlots),
			"field_completeness":  math.Round(scoring.Ratio(float64(filled), organizationSlots*organizationFieldsPerContact)*1000) / 1000,
			"format_correctness":  math.Round(scoring.Ratio(float64(formatted), float64(filled))*1000) / 1000,
			"effort_bonus":        float64(bonus),
			"contacts_per_minute": math.Round(float64(attempted)/minutes*100) / 100,
		},
	}

	if attempted == 0 {
		out.Feedback = "No contacts were organized."
		out.Improvements = append(out.Improvements, "Fill in name, phone, email and company for each contact")
		return out
	}

	out.Feedback = fmt.Sprintf("Organized %d of %d contacts; %d of %d filled fields follow the format conventions.",
		attempted, organizationSlots, formatted, filled)
	for _, field := range []string{"name", "phone", "email", "company"} {
		t := tallies[field]
		switch {
		case t.filled == 0:
			out.Improvements = append(out.Improvements, fmt.Sprintf("Add the %s for each contact", field))
		case t.formatted == t.filled:
			out.Strengths = append(out.Strengths, fmt.Sprintf("Consistent %s formatting", field))
		default:
			out.Improvements = append(out.Improvements,
				fmt.Sprintf("Fix %s formatting (%d of %d correct)", field, t.formatted, t.filled))
		}
	}
	return out
}

func wellFormedName(v string) bool {
	return len([]rune(v)) >= organizationMinNameLength && !scoring.IsNumeric(v) && scoring.IsCapitalized(v)
}

func isBlank(v string) bool { return strings.TrimSpace(v) == "" }
