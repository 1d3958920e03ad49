package loadgen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/trialeval/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// pollInterval is how often progression is re-checked while settling.
const pollInterval = 250 * time.Millisecond

// Run executes a complete load run: health check, generation, concurrent
// submission, settling and verification.
func Run(ctx context.Context, cfg Config, log logger.Logger) (*Stats, error) {
	cfg.normalize()
	if log == nil {
		log = logger.NewNop()
	}
	stats := &Stats{StartTime: time.Now(), Badges: make(map[string]int)}

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("submissions", cfg.Submissions),
		logger.Int("workers", cfg.Workers),
		logger.Int("concurrency", cfg.Concurrency),
		logger.Duration("timeout", cfg.Timeout),
		logger.Float64("duplicates", cfg.Duplicates))

	c := newClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := c.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate submissions
	gen := newGenerator(cfg.Seed, cfg.Workers)
	subs := gen.generate(cfg.Submissions)
	stats.Generated = len(subs)
	stats.Workers = len(gen.workers)

	// Step 3: Submit concurrently, re-sending a share of them
	resend := pickDuplicates(cfg.Seed, subs, cfg.Duplicates)
	accepted, err := submitAll(ctx, c, cfg.Concurrency, append(subs, resend...), stats)
	if err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}
	log.Info(ctx, "submissions sent",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed))

	// Step 4: Wait for evaluation and verify progression
	if err := settle(ctx, c, cfg, accepted, stats); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if stats.Mismatched > 0 {
		return stats, fmt.Errorf("%w: %d of %d workers", ErrMismatch, stats.Mismatched, stats.Workers)
	}
	return stats, nil
}

// pickDuplicates returns copies of a random share of subs.
func pickDuplicates(seed uint64, subs []Submission, share float64) []Submission {
	if share <= 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(seed^0x5eed, seed))
	var out []Submission
	for _, s := range subs {
		if rng.Float64() < share {
			out = append(out, s)
		}
	}
	return out
}

// submitAll posts subs with bounded concurrency and returns accepted
// counts per worker.
func submitAll(ctx context.Context, c *client, concurrency int, subs []Submission, stats *Stats) (map[string]int, error) {
	var mu sync.Mutex
	accepted := make(map[string]int)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, s := range subs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := c.submit(gctx, s)

			mu.Lock()
			defer mu.Unlock()
			stats.Submitted++
			switch result {
			case resultAccepted:
				stats.Accepted++
				accepted[s.WorkerID]++
			case resultDuplicate:
				stats.Duplicate++
			case resultRejected:
				stats.Rejected++
			default:
				stats.Failed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return accepted, nil
}

// settle polls until every worker's completed count reaches its accepted
// count or cfg.Settle elapses, then records badges and mismatches.
func settle(ctx context.Context, c *client, cfg Config, accepted map[string]int, stats *Stats) error {
	deadline := time.Now().Add(cfg.Settle)
	pending := make(map[string]int, len(accepted))
	for w, n := range accepted {
		pending[w] = n
	}
	final := make(map[string]workerProgress, len(accepted))

	for len(pending) > 0 && time.Now().Before(deadline) {
		for w, want := range pending {
			p, err := c.progression(ctx, w)
			if err != nil {
				return err
			}
			if p.Progression.Completed >= want {
				final[w] = p
				delete(pending, w)
			}
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	for w := range pending {
		p, err := c.progression(ctx, w)
		if err != nil {
			return err
		}
		final[w] = p
	}

	verify(accepted, final, stats)
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("workers", stats.Workers),
		logger.Int("mismatched", stats.Mismatched),
		logger.Any("badges", stats.Badges),
		logger.Duration("duration", stats.Duration),
		logger.Float64("submissionsPerSecond", perSecond))
}
