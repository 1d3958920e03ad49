// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Loading and validation errors wrap this package's sentinels.
package config

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"strings"

	"github.com/okian/trialeval/internal/domain/evaluation"
	"github.com/okian/trialeval/pkg/logger"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log records.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of evaluation workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many submission ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// CatalogPath points at a YAML task catalog. Empty uses the built-in one.
	CatalogPath string `koanf:"catalog_path"`

	// CatalogWatch reloads CatalogPath when it changes.
	CatalogWatch bool `koanf:"catalog_watch"`

	// StoreDriver selects the result store: memory or mysql.
	StoreDriver string `koanf:"store_driver"`

	// MySQLDSN is the go-sql-driver DSN used with the mysql driver.
	MySQLDSN string `koanf:"mysql_dsn"`

	// Weights of the overall score.
	WeightAccuracy float64 `koanf:"weight_accuracy"`
	WeightSpeed    float64 `koanf:"weight_speed"`
	WeightQuality  float64 `koanf:"weight_quality"`

	// PassOverall is the overall score a submission needs to pass.
	PassOverall float64 `koanf:"pass_overall"`

	// DefaultAccuracyThreshold applies to tasks without their own threshold.
	DefaultAccuracyThreshold float64 `koanf:"default_accuracy_threshold"`

	// MaxMatchResults caps POST /match responses.
	MaxMatchResults int `koanf:"max_match_results"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	w := evaluation.DefaultWeights()
	return &Config{
		LogLevel:                 "info",
		LogFormat:                logger.FormatText,
		Addr:                     ":9080",
		QueueSize:                10_000,
		WorkerCount:              runtime.NumCPU() * 2,
		DedupeSize:               50_000,
		StoreDriver:              StoreMemory,
		WeightAccuracy:           w.Accuracy,
		WeightSpeed:              w.Speed,
		WeightQuality:            w.Quality,
		PassOverall:              w.PassOverall,
		DefaultAccuracyThreshold: w.DefaultAccuracyThreshold,
		MaxMatchResults:          20,
	}
}

// Weights returns the evaluation weights described by c.
func (c *Config) Weights() evaluation.Weights {
	return evaluation.Weights{
		Accuracy:                 c.WeightAccuracy,
		Speed:                    c.WeightSpeed,
		Quality:                  c.WeightQuality,
		PassOverall:              c.PassOverall,
		DefaultAccuracyThreshold: c.DefaultAccuracyThreshold,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.DedupeSize < 1:
		return fmt.Errorf("%w: dedupe_size must be positive, got %d", ErrInvalidConfig, c.DedupeSize)
	case c.MaxMatchResults < 1:
		return fmt.Errorf("%w: max_match_results must be positive, got %d", ErrInvalidConfig, c.MaxMatchResults)
	case c.WeightAccuracy < 0 || c.WeightSpeed < 0 || c.WeightQuality < 0:
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidConfig)
	case c.WeightAccuracy+c.WeightSpeed+c.WeightQuality == 0:
		return fmt.Errorf("%w: at least one weight must be positive", ErrInvalidConfig)
	case c.PassOverall < 0 || c.PassOverall > 100:
		return fmt.Errorf("%w: pass_overall must be within [0,100], got %v", ErrInvalidConfig, c.PassOverall)
	case c.DefaultAccuracyThreshold < 0 || c.DefaultAccuracyThreshold > 100:
		return fmt.Errorf("%w: default_accuracy_threshold must be within [0,100], got %v", ErrInvalidConfig, c.DefaultAccuracyThreshold)
	case c.LogFormat != logger.FormatText && c.LogFormat != logger.FormatJSON:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	case c.CatalogWatch && c.CatalogPath == "":
		return fmt.Errorf("%w: catalog_watch needs catalog_path", ErrInvalidConfig)
	}

	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("%w: addr %q: %w", ErrInvalidConfig, c.Addr, err)
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StoreMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("%w: mysql_dsn is required for the mysql store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	return nil
}
