// Package catalog loads trial tasks from YAML and keeps them current.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/okian/trialeval/internal/domain/model"
	"github.com/okian/trialeval/pkg/logger"
	"github.com/okian/trialeval/pkg/metrics"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// file is the on-disk catalog layout.
type file struct {
	Tasks []model.TrialTask `yaml:"tasks"`
}

// Catalog is a concurrency-safe, replaceable set of trial tasks.
type Catalog struct {
	mu    sync.RWMutex
	tasks map[string]model.TrialTask
	order []string

	// reloads collapses concurrent Reload calls into one file read.
	reloads singleflight.Group

	path   string
	logger logger.Logger
}

// New creates a catalog holding the built-in tasks, or the tasks in the
// file set with WithPath.
func New(opts ...Option) (*Catalog, error) {
	c := &Catalog{logger: logger.NewNop()}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	tasks, err := Default()
	if c.path != "" {
		tasks, err = Load(c.path)
	}
	if err != nil {
		return nil, err
	}
	c.set(tasks)
	return c, nil
}

// Default returns the built-in trial tasks.
func Default() ([]model.TrialTask, error) {
	return Parse(defaultYAML)
}

// Load reads and validates a catalog file.
func Load(path string) ([]model.TrialTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	tasks, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tasks, nil
}

// Parse decodes and validates catalog YAML. Categories are normalized.
func Parse(data []byte) ([]model.TrialTask, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(f.Tasks) == 0 {
		return nil, fmt.Errorf("%w: no tasks", ErrInvalidCatalog)
	}

	seen := make(map[string]bool, len(f.Tasks))
	for i := range f.Tasks {
		t := &f.Tasks[i]
		t.Category = model.ParseCategory(string(t.Category))
		switch {
		case t.ID == "":
			return nil, fmt.Errorf("%w: task %d has no id", ErrInvalidCatalog, i)
		case seen[t.ID]:
			return nil, fmt.Errorf("%w: duplicate task id %q", ErrInvalidCatalog, t.ID)
		case t.Category == "":
			return nil, fmt.Errorf("%w: task %q has no category", ErrInvalidCatalog, t.ID)
		case t.AccuracyThreshold < 0 || t.AccuracyThreshold > 100:
			return nil, fmt.Errorf("%w: task %q accuracy_threshold %.1f out of range", ErrInvalidCatalog, t.ID, t.AccuracyThreshold)
		case t.TimeLimitMinutes < 0:
			return nil, fmt.Errorf("%w: task %q has a negative time limit", ErrInvalidCatalog, t.ID)
		}
		seen[t.ID] = true
	}
	return f.Tasks, nil
}

// Get returns the task with id.
func (c *Catalog) Get(_ context.Context, id string) (model.TrialTask, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[id]
	if !ok {
		return model.TrialTask{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t, nil
}

// List returns all tasks in catalog order.
func (c *Catalog) List(_ context.Context) []model.TrialTask {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.TrialTask, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.tasks[id])
	}
	return out
}

// Len returns the number of tasks.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Path returns the backing file, empty for the built-in catalog.
func (c *Catalog) Path() string { return c.path }

// Reload re-reads the backing file. On error the current tasks are kept.
// Concurrent callers share one read.
func (c *Catalog) Reload(ctx context.Context) error {
	if c.path == "" {
		return nil
	}
	_, err, _ := c.reloads.Do(c.path, func() (interface{}, error) {
		return nil, c.reload(ctx)
	})
	return err
}

func (c *Catalog) reload(ctx context.Context) error {
	tasks, err := Load(c.path)
	if err != nil {
		metrics.RecordCatalogReload("error")
		c.logger.Warn(ctx, "catalog reload failed; keeping previous tasks",
			logger.String("path", c.path), logger.Error(err))
		return err
	}
	c.set(tasks)
	metrics.RecordCatalogReload("ok")
	c.logger.Info(ctx, "catalog reloaded", logger.String("path", c.path), logger.Int("tasks", len(tasks)))
	return nil
}

func (c *Catalog) set(tasks []model.TrialTask) {
	byID := make(map[string]model.TrialTask, len(tasks))
	order := make([]string, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		order = append(order, t.ID)
	}

	c.mu.Lock()
	c.tasks = byID
	c.order = order
	c.mu.Unlock()

	metrics.UpdateCatalogTasks(len(order))
}
