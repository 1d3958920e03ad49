package evaluation

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/trialeval/internal/domain/model"
	"github.com/okian/trialeval/internal/domain/scoring"
)

// Data entry constants.
const (
	dataEntrySlots             = 8
	dataEntryFullCreditRecords = 4 // half the slots complete earns full base credit
	dataEntryFieldsPerRecord   = 4
	dataEntryBonusPerRecord    = 5
	dataEntryBonusCap          = 25
	dataEntryQualityWeight     = 80
	dataEntryOrganizedBonus    = 20
	dataEntryOrganizedMin      = 3
	dataEntryBaselineMinutes   = 20
	dataEntryMaxMinutes        = 45
)

// DataEntryEvaluator scores DATA_ENTRY submissions record by record.
type DataEntryEvaluator struct{}

// Evaluate implements CategoryEvaluator.
func (DataEntryEvaluator) Evaluate(_ model.TrialTask, sub model.Submission, minutes float64) Scores {
	de, _ := sub.(model.DataEntrySubmission)
	minutes = scoring.NormalizeMinutes(minutes)

	var (
		attempted    int
		points       int
		qualityHits  int
		complete     int
		fieldsScored int
		weakFields   = map[string]int{}
	)
	for i, r := range de.Records {
		if i >= dataEntrySlots {
			break
		}
		// Gaps are tolerated; real data has missing rows.
		if r.Empty() {
			continue
		}
		attempted++
		fields := []struct {
			name  string
			score scoring.FieldScore
		}{
			{"name", scoring.Name(r.Name)},
			{"phone", scoring.Phone(r.Phone)},
			{"email", scoring.Email(r.Email)},
			{"city", scoring.City(r.City)},
		}
		recordComplete := true
		for _, f := range fields {
			points += f.score.Points
			fieldsScored++
			if f.score.Quality {
				qualityHits++
			} else {
				recordComplete = false
				weakFields[f.name]++
			}
		}
		if recordComplete {
			complete++
		}
	}

	bonus := 0
	if attempted >= 2 {
		bonus = min(dataEntryBonusCap, dataEntryBonusPerRecord*attempted)
	}
	theoreticalMax := float64(dataEntryFullCreditRecords * dataEntryFieldsPerRecord * scoring.FieldMax)
	base := scoring.Ratio(float64(points), theoreticalMax) * scoring.MaxScore
	accuracy := scoring.Clamp(base + float64(bonus))

	hitRate := scoring.Ratio(float64(qualityHits), float64(fieldsScored))
	quality := 0.0
	speed := 0.0
	if attempted > 0 {
		organized := 0.0
		if attempted >= dataEntryOrganizedMin {
			organized = dataEntryOrganizedBonus
		}
		quality = scoring.Clamp(hitRate*dataEntryQualityWeight + organized)
		speed = scoring.Speed(minutes, dataEntryBaselineMinutes, dataEntryMaxMinutes)
	}

	out := Scores{
		Accuracy: accuracy,
		Speed:    speed,
		Quality:  quality,
		Metrics: map[string]float64{
			"records_expected":   dataEntrySlots,
			"records_attempted":  float64(attempted),
			"records_complete":   float64(complete),
			"completion_rate":    scoring.Ratio(float64(attempted), dataEntrySlots),
			"accuracy_points":    float64(points),
			"quality_hit_rate":   math.Round(hitRate*1000) / 1000,
			"effort_bonus":       float64(bonus),
			"records_per_minute": math.Round(float64(attempted)/minutes*100) / 100,
		},
	}

	switch {
	case attempted == 0:
		out.Feedback = "No records were entered. Fill in at least a few records to be scored."
		out.Improvements = append(out.Improvements, "Enter the name, phone, email and city for each record")
		return out
	case complete == attempted:
		out.Feedback = fmt.Sprintf("Entered %d of %d records with every field correctly formatted.", attempted, dataEntrySlots)
	default:
		out.Feedback = fmt.Sprintf("Entered %d of %d records; %d were complete and correctly formatted.", attempted, dataEntrySlots, complete)
	}
	if complete > 0 {
		out.Strengths = append(out.Strengths, fmt.Sprintf("%d fully valid record(s)", complete))
	}
	if attempted >= dataEntryOrganizedMin {
		out.Strengths = append(out.Strengths, "Worked through multiple records consistently")
	}
	for _, field := range []string{"name", "phone", "email", "city"} {
		if n := weakFields[field]; n > 0 {
			out.Improvements = append(out.Improvements, fmt.Sprintf("Check %s formatting (%d record(s))", field, n))
		}
	}
	if attempted < dataEntryFullCreditRecords {
		out.Improvements = append(out.Improvements,
			fmt.Sprintf("Attempt at least %d records for full accuracy credit", dataEntryFullCreditRecords))
	}
	if len(out.Improvements) > 0 {
		out.Feedback += " Focus on: " + strings.ToLower(out.Improvements[0]) + "."
	}
	return out
}
