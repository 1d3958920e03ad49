package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/trialeval/internal/adapters/catalog"
	"github.com/okian/trialeval/internal/adapters/repository"
	service "github.com/okian/trialeval/internal/app"
	"github.com/okian/trialeval/internal/config"
	"github.com/okian/trialeval/internal/domain/evaluation"
	"github.com/okian/trialeval/pkg/logger"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "trialeval",
		Short: "Trial task evaluation and badge assignment",
		Long: `trialeval scores trial-task submissions, keeps each worker's trial
record and assigns skill badges from it.

Run "trialeval serve" for the HTTP service, or "trialeval evaluate" to score
submission files locally.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (overrides TRIALEVAL_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newServeCmd(opts),
		newEvaluateCmd(opts),
		newTasksCmd(opts),
		newLoadTestCmd(opts),
	)
	return root
}

// loadConfig loads configuration (defaults -> optional file -> env) and
// applies the log level flag.
func (o *rootOptions) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.LoadFile(ctx, o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// initLogging initializes the global logger at cfg's level, falling back
// to info on invalid input.
func initLogging(ctx context.Context, cfg *config.Config) (logger.Logger, error) {
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return log, nil
}

// components are the parts a Service is built from.
type components struct {
	catalog *catalog.Catalog
	store   repository.Store
	engine  *evaluation.Engine
}

func buildComponents(ctx context.Context, cfg *config.Config, log logger.Logger) (*components, error) {
	cat, err := catalog.New(catalog.WithPath(cfg.CatalogPath), catalog.WithLogger(log.Named("catalog")))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.MySQLDSN, log.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	engine := evaluation.NewEngine(
		evaluation.WithWeights(cfg.Weights()),
		evaluation.WithLogger(log.Named("engine")),
	)
	return &components{catalog: cat, store: store, engine: engine}, nil
}

func newService(cfg *config.Config, c *components, log logger.Logger) *service.Service {
	return service.New(
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithMaxMatchResults(cfg.MaxMatchResults),
		service.WithCatalog(c.catalog),
		service.WithStore(c.store),
		service.WithEngine(c.engine),
	)
}
