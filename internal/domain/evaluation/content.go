package evaluation

import (
	"fmt"
	"math"

	"github.com/okian/trialeval/internal/domain/model"
	"github.com/okian/trialeval/internal/domain/scoring"
)

// Content writing constants.
const (
	contentDefaultTargetWords = 150

	contentTierFull    = 70
	contentTierMostly  = 60
	contentTierHalf    = 45
	contentTierMinimum = 30

	contentMostlyRatio = 0.7
	contentHalfRatio   = 0.5

	contentKeywordPoints   = 3
	contentKeywordCap      = 15
	contentStructureBonus  = 10
	contentDiversityBonus  = 5
	contentDiversityRatio  = 0.6
	contentMinSentenceLen  = 6
	contentMaxSentenceLen  = 25
	contentQualityUnique   = 60
	contentQualityLayout   = 25
	contentQualityKeywords = 15

	contentBaselineMinutes = 25
	contentMaxMinutes      = 60
)

// ContentEvaluator scores CONTENT submissions on length, vocabulary and structure.
type ContentEvaluator struct{}

// Evaluate implements CategoryEvaluator.
func (ContentEvaluator) Evaluate(task model.TrialTask, sub model.Submission, minutes float64) Scores {
	cs, _ := sub.(model.ContentSubmission)
	minutes = scoring.NormalizeMinutes(minutes)

	target := task.Sample.TargetWords
	if target <= 0 {
		target = contentDefaultTargetWords
	}

	words := scoring.Words(cs.Text)
	wc := len(words)
	sentences := scoring.SentenceCount(cs.Text)
	if wc > 0 && sentences == 0 {
		sentences = 1
	}
	unique := scoring.UniqueRatio(words)
	hits := scoring.KeywordHits(words)
	avgSentence := scoring.Ratio(float64(wc), float64(sentences))

	lengthScore := contentTierMinimum
	switch ratio := float64(wc) / float64(target); {
	case ratio >= 1:
		lengthScore = contentTierFull
	case ratio >= contentMostlyRatio:
		lengthScore = contentTierMostly
	case ratio >= contentHalfRatio:
		lengthScore = contentTierHalf
	}

	keywordBonus := min(contentKeywordCap, contentKeywordPoints*hits)
	structured := wc > 0 && avgSentence >= contentMinSentenceLen && avgSentence <= contentMaxSentenceLen
	diverse := unique > contentDiversityRatio

	accuracy := float64(lengthScore + keywordBonus)
	if structured {
		accuracy += contentStructureBonus
	}
	if diverse {
		accuracy += contentDiversityBonus
	}

	quality := 0.0
	speed := 0.0
	if wc > 0 {
		quality = unique * contentQualityUnique
		if structured {
			quality += contentQualityLayout
		}
		if hits > 0 {
			quality += contentQualityKeywords
		}
		speed = scoring.Speed(minutes, contentBaselineMinutes, contentMaxMinutes)
	}

	out := Scores{
		Accuracy: scoring.Clamp(accuracy),
		Speed:    speed,
		Quality:  scoring.Clamp(quality),
		Metrics: map[string]float64{
			"word_count":          float64(wc),
			"target_words":        float64(target),
			"sentence_count":      float64(sentences),
			"avg_sentence_length": math.Round(avgSentence*10) / 10,
			"unique_word_ratio":   math.Round(unique*1000) / 1000,
			"keyword_hits":        float64(hits),
			"keyword_density":     math.Round(scoring.Ratio(float64(hits), float64(wc))*1000) / 1000,
			"words_per_minute":    math.Round(float64(wc)/minutes*10) / 10,
		},
	}

	if wc == 0 {
		out.Feedback = "No content was submitted."
		out.Improvements = append(out.Improvements, fmt.Sprintf("Write around %d words on the brief", target))
		return out
	}

	out.Feedback = fmt.Sprintf("Wrote %d of the %d expected words across %d sentence(s).", wc, target, sentences)
	if lengthScore == contentTierFull {
		out.Strengths = append(out.Strengths, "Met the expected length")
	} else {
		out.Improvements = append(out.Improvements, fmt.Sprintf("Expand the piece towards %d words", target))
	}
	if hits > 0 {
		out.Strengths = append(out.Strengths, fmt.Sprintf("Used %d relevant keyword(s)", hits))
	} else {
		out.Improvements = append(out.Improvements, "Mention the product, its features and customer value")
	}
	if structured {
		out.Strengths = append(out.Strengths, "Readable sentence lengths")
	} else {
		out.Improvements = append(out.Improvements,
			fmt.Sprintf("Keep sentences between %d and %d words", contentMinSentenceLen, contentMaxSentenceLen))
	}
	if diverse {
		out.Strengths = append(out.Strengths, "Varied vocabulary")
	} else {
		out.Improvements = append(out.Improvements, "Avoid repeating the same words")
	}
	return out
}
