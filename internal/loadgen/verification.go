package loadgen

import (
	"github.com/okian/trialeval/internal/domain/badge"
	"github.com/okian/trialeval/internal/domain/progression"
)

// verify checks each worker's final progression against what was accepted.
// A worker mismatches when its completed count differs from its accepted
// submissions, or its badge is below what its counters earn.
func verify(accepted map[string]int, final map[string]workerProgress, stats *Stats) {
	for w, want := range accepted {
		p := final[w].Progression
		b, err := badge.Parse(p.CurrentBadge)
		if err != nil {
			stats.Mismatched++
			continue
		}
		stats.Badges[b.String()]++

		if p.Completed != want || p.Passed > p.Completed {
			stats.Mismatched++
			continue
		}
		if b.Rank() < progression.Earned(p.Completed, p.Passed).Rank() {
			stats.Mismatched++
		}
	}
}
