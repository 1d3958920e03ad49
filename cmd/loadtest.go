package main

import (
	"github.com/okian/trialeval/internal/loadgen"
	"github.com/okian/trialeval/pkg/logger"
	"github.com/spf13/cobra"
)

func newLoadTestCmd(opts *rootOptions) *cobra.Command {
	cfg := loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive a running server with generated submissions",
		Long: `Send generated submissions to a running trialeval server, wait for
asynchronous evaluation to settle, and verify that every worker's
progression matches the submissions the server accepted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			conf, err := opts.loadConfig(ctx)
			if err != nil {
				return err
			}
			log, err := initLogging(ctx, conf)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			_, err = loadgen.Run(ctx, cfg, log.Named("loadgen"))
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", loadgen.DefaultBaseURL, "Base URL of the server")
	f.IntVar(&cfg.Submissions, "submissions", loadgen.DefaultSubmissions, "Number of submissions to generate")
	f.IntVar(&cfg.Workers, "workers", loadgen.DefaultWorkers, "Number of distinct worker ids")
	f.IntVar(&cfg.Concurrency, "concurrency", loadgen.DefaultConcurrency, "Concurrent HTTP requests")
	f.DurationVar(&cfg.Timeout, "timeout", loadgen.DefaultTimeout, "HTTP request timeout")
	f.DurationVar(&cfg.Settle, "settle", loadgen.DefaultSettle, "How long to wait for evaluation to finish")
	f.Float64Var(&cfg.Duplicates, "duplicates", 0.05, "Share of submissions re-sent with the same id")
	f.Uint64Var(&cfg.Seed, "seed", 0, "Random seed (0 picks one from the clock)")
	return cmd
}
