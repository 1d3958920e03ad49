// Package scoring provides the pure field-level scoring primitives shared
// by the category evaluators. Malformed input lowers a score; nothing here
// returns an error or panics.
package scoring

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Point values awarded per field.
const (
	FieldMax = 25

	namePartial    = 10
	phonePartial   = 15
	phoneMinimal   = 5
	emailPartial   = 15
	emailMinimal   = 5
	cityPartial    = 10
	minNameLength  = 2
	minCityLength  = 3
	minPhoneDigits = 10
	maxPhoneDigits = 12
	partialDigits  = 7
	minimalDigits  = 3
)

// Score bounds shared by all evaluators.
const (
	MinScore   = 0
	MaxScore   = 100
	SpeedFloor = 50
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\s\-()]{8,16}[0-9]$`)
	nonDigit     = regexp.MustCompile(`\D`)
	sentenceSep  = regexp.MustCompile(`[.!?]+`)
	wordTrim     = regexp.MustCompile(`^[^\p{L}\p{N}]+|[^\p{L}\p{N}]+$`)
)

// Keywords is the domain vocabulary rewarded in content submissions.
var Keywords = []string{
	"product", "feature", "quality", "customer", "service",
	"benefit", "design", "value", "price", "experience",
}

// FieldScore is the outcome of scoring a single field.
type FieldScore struct {
	Points  int
	Max     int
	Quality bool // true when the field earned full credit
}

// Attempted reports whether the field earned any points.
func (f FieldScore) Attempted() bool { return f.Points > 0 }

func full() FieldScore { return FieldScore{Points: FieldMax, Max: FieldMax, Quality: true} }

func partial(p int) FieldScore { return FieldScore{Points: p, Max: FieldMax} }

// Name scores a person's name.
func Name(v string) FieldScore {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return partial(0)
	case len([]rune(v)) >= minNameLength && !IsNumeric(v):
		return full()
	default:
		return partial(namePartial)
	}
}

// Phone scores a phone number by its digit count.
func Phone(v string) FieldScore {
	digits := Digits(v)
	switch {
	case len(digits) >= minPhoneDigits && len(digits) <= maxPhoneDigits:
		return full()
	case len(digits) >= partialDigits:
		return partial(phonePartial)
	case len(digits) >= minimalDigits:
		return partial(phoneMinimal)
	default:
		return partial(0)
	}
}

// Email scores an email address.
func Email(v string) FieldScore {
	v = strings.TrimSpace(v)
	hasAt := strings.Contains(v, "@")
	hasDot := strings.Contains(v, ".")
	switch {
	case emailPattern.MatchString(v):
		return full()
	case hasAt && hasDot:
		return partial(emailPartial)
	case hasAt || hasDot:
		return partial(emailMinimal)
	default:
		return partial(0)
	}
}

// City scores a city or other short free-text value.
func City(v string) FieldScore {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return partial(0)
	case len([]rune(v)) >= minCityLength && !IsNumeric(v):
		return full()
	default:
		return partial(cityPartial)
	}
}

// ValidEmail reports a full-format email match.
func ValidEmail(v string) bool { return emailPattern.MatchString(strings.TrimSpace(v)) }

// ValidPhone reports whether v looks like a dialable phone number.
func ValidPhone(v string) bool {
	v = strings.TrimSpace(v)
	if !phonePattern.MatchString(v) {
		return false
	}
	n := len(Digits(v))
	return n >= minPhoneDigits && n <= maxPhoneDigits
}

// IsCapitalized reports whether every word in v starts with an upper-case letter.
func IsCapitalized(v string) bool {
	words := strings.Fields(v)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		r := []rune(w)[0]
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// IsNumeric reports whether v consists only of digits.
func IsNumeric(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Digits strips every non-digit from v.
func Digits(v string) string { return nonDigit.ReplaceAllString(v, "") }

// Words splits text on whitespace.
func Words(text string) []string { return strings.Fields(text) }

// WordCount returns the number of whitespace-separated tokens.
func WordCount(text string) int { return len(Words(text)) }

// SentenceCount counts non-empty sentences split on '.', '!' and '?'.
func SentenceCount(text string) int {
	n := 0
	for _, s := range sentenceSep.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}

// UniqueRatio returns distinct words over total words, case-insensitively.
func UniqueRatio(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[normalizeWord(w)] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}

// KeywordHits counts words that contain a domain keyword.
func KeywordHits(words []string) int {
	hits := 0
	for _, w := range words {
		nw := normalizeWord(w)
		for _, k := range Keywords {
			if strings.Contains(nw, k) {
				hits++
				break
			}
		}
	}
	return hits
}

func normalizeWord(w string) string {
	return strings.ToLower(wordTrim.ReplaceAllString(w, ""))
}

// Speed applies the shared speed curve: full credit up to baseline minutes,
// then a linear decay that reaches SpeedFloor at maxMinutes and stays there.
func Speed(minutes, baseline, maxMinutes float64) float64 {
	minutes = NormalizeMinutes(minutes)
	if minutes <= baseline {
		return MaxScore
	}
	if maxMinutes <= baseline || minutes >= maxMinutes {
		return SpeedFloor
	}
	frac := (minutes - baseline) / (maxMinutes - baseline)
	return MaxScore - frac*(MaxScore-SpeedFloor)
}

// NormalizeMinutes floors zero, negative, NaN and -Inf durations to 1.
// +Inf is capped at math.MaxFloat64 so it lands on the speed floor.
func NormalizeMinutes(minutes float64) float64 {
	switch {
	case math.IsInf(minutes, 1):
		return math.MaxFloat64
	case math.IsNaN(minutes) || minutes < 1:
		return 1
	}
	return minutes
}

// Clamp bounds v to [MinScore, MaxScore], mapping NaN to MinScore.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return MinScore
	}
	return math.Max(MinScore, math.Min(MaxScore, v))
}

// Ratio returns num/den, or 0 when den is not positive.
func Ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}
