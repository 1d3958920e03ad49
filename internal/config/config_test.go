package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/okian/trialeval/internal/config"
	"github.com/okian/trialeval/internal/domain/evaluation"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.MaxMatchResults, convey.ShouldEqual, 20)
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the weights match the evaluation defaults", func() {
			convey.So(cfg.Weights(), convey.ShouldResemble, evaluation.DefaultWeights())
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"addr without port", func(c *config.Config) { c.Addr = "localhost" }},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }},
			{"zero dedupe", func(c *config.Config) { c.DedupeSize = 0 }},
			{"zero match results", func(c *config.Config) { c.MaxMatchResults = 0 }},
			{"negative weight", func(c *config.Config) { c.WeightSpeed = -1 }},
			{"all zero weights", func(c *config.Config) { c.WeightAccuracy, c.WeightSpeed, c.WeightQuality = 0, 0, 0 }},
			{"pass bar above 100", func(c *config.Config) { c.PassOverall = 101 }},
			{"negative threshold", func(c *config.Config) { c.DefaultAccuracyThreshold = -5 }},
			{"watch without path", func(c *config.Config) { c.CatalogWatch = true }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"unknown driver", func(c *config.Config) { c.StoreDriver = "bolt" }},
			{"mysql without dsn", func(c *config.Config) { c.StoreDriver = config.StoreMySQL }},
		}
		for _, tc := range cases {
			cfg := config.New(context.Background())
			tc.mutate(cfg)
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		}
	})

	convey.Convey("Given a mysql store with a dsn", t, func() {
		cfg := config.New(context.Background())
		cfg.StoreDriver = config.StoreMySQL
		cfg.MySQLDSN = "user:pass@tcp(localhost:3306)/trialeval"
		convey.So(cfg.Validate(), convey.ShouldBeNil)
	})
}
