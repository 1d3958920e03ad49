// Package badge models the worker skill tiers and their total order.
package badge

import (
	"fmt"
	"strings"
)

// Badge is a worker skill tier. The zero value is an unranked worker.
type Badge int

// Badge tiers, ordered by rank.
const (
	None Badge = iota
	Bronze
	Silver
	Gold
	Platinum
)

// RateBand is a suggested hourly-rate range in INR.
type RateBand struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

var names = map[Badge]string{
	None:     "NONE",
	Bronze:   "BRONZE",
	Silver:   "SILVER",
	Gold:     "GOLD",
	Platinum: "PLATINUM",
}

var bands = map[Badge]RateBand{
	None:     {Min: 100, Max: 150},
	Bronze:   {Min: 150, Max: 250},
	Silver:   {Min: 250, Max: 400},
	Gold:     {Min: 400, Max: 650},
	Platinum: {Min: 650, Max: 1000},
}

var descriptions = map[Badge]string{
	None:     "Unranked worker still completing trial tasks",
	Bronze:   "Entry-level worker who has proven basic task accuracy",
	Silver:   "Reliable worker with consistent results across trial tasks",
	Gold:     "Experienced worker trusted with complex and time-sensitive tasks",
	Platinum: "Top-tier expert with a sustained record of excellent work",
}

// All returns every badge in ascending rank order.
func All() []Badge {
	return []Badge{None, Bronze, Silver, Gold, Platinum}
}

// Rank returns the ordinal rank; out-of-range values rank as None.
func (b Badge) Rank() int {
	if !b.Valid() {
		return int(None)
	}
	return int(b)
}

// Valid reports whether b is one of the defined tiers.
func (b Badge) Valid() bool {
	return b >= None && b <= Platinum
}

func (b Badge) String() string {
	if name, ok := names[b]; ok {
		return name
	}
	return fmt.Sprintf("Badge(%d)", int(b))
}

// RateBand returns the suggested hourly-rate band for the tier.
func (b Badge) RateBand() RateBand {
	if band, ok := bands[b]; ok {
		return band
	}
	return bands[None]
}

// Description returns a human-readable summary of the tier.
func (b Badge) Description() string {
	if d, ok := descriptions[b]; ok {
		return d
	}
	return descriptions[None]
}

// MarshalText encodes the badge as its upper-case name.
func (b Badge) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBadge, int(b))
	}
	return []byte(b.String()), nil
}

// UnmarshalText decodes a badge name. An empty value decodes to None.
func (b *Badge) UnmarshalText(text []byte) error {
	if strings.TrimSpace(string(text)) == "" {
		*b = None
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Parse converts a case-insensitive badge name into a Badge.
func Parse(s string) (Badge, error) {
	needle := strings.ToUpper(strings.TrimSpace(s))
	for b, name := range names {
		if name == needle {
			return b, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownBadge, s)
}

// IsEligible reports whether a worker holding worker may access a task that
// requires required. Higher tiers can always access lower-or-equal tasks.
func IsEligible(worker, required Badge) bool {
	return worker.Rank() >= required.Rank()
}

// Max returns the higher-ranked of a and b.
func Max(a, b Badge) Badge {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}
