// Package loadgen drives a running trialeval server with generated
// submissions and checks that worker progression matches what was accepted.
package loadgen

import "time"

// Defaults for Config.
const (
	DefaultBaseURL     = "http://localhost:9080"
	DefaultSubmissions = 1000
	DefaultWorkers     = 50
	DefaultConcurrency = 16
	DefaultTimeout     = 10 * time.Second
	DefaultSettle      = 30 * time.Second
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Submissions int           // Number of submissions to generate
	Workers     int           // Number of distinct worker ids
	Concurrency int           // Concurrent HTTP requests
	Timeout     time.Duration // HTTP request timeout
	Settle      time.Duration // How long to wait for async evaluation
	Duplicates  float64       // Share of submissions re-sent with the same id, in [0,1)
	Seed        uint64        // Random seed; 0 picks one from the clock
}

func (c *Config) normalize() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Submissions < 1 {
		c.Submissions = DefaultSubmissions
	}
	if c.Workers < 1 {
		c.Workers = DefaultWorkers
	}
	if c.Workers > c.Submissions {
		c.Workers = c.Submissions
	}
	if c.Concurrency < 1 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Settle <= 0 {
		c.Settle = DefaultSettle
	}
	if c.Duplicates < 0 || c.Duplicates >= 1 {
		c.Duplicates = 0
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Accepted   int
	Duplicate  int
	Rejected   int
	Failed     int
	Workers    int
	Mismatched int
	Badges     map[string]int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
