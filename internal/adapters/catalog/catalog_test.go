package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/trialeval/internal/adapters/catalog"
	"github.com/okian/trialeval/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoTasks = `
tasks:
  - id: de-1
    title: Records
    category: data entry
    time_limit_minutes: 20
    active: true
  - id: c-1
    title: Blog post
    category: content
    accuracy_threshold: 70
    sample:
      target_words: 200
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestDefaultCatalog(t *testing.T) {
	c, err := catalog.New()
	require.NoError(t, err)

	tasks := c.List(context.Background())
	require.Len(t, tasks, 3)
	assert.Equal(t, model.CategoryDataEntry, tasks[0].Category)
	assert.Equal(t, model.CategoryContent, tasks[1].Category)
	assert.Equal(t, model.CategoryOrganization, tasks[2].Category)
	assert.Len(t, tasks[0].Sample.Records, 8)
	assert.Equal(t, 150, tasks[1].Sample.TargetWords)
	assert.Len(t, tasks[2].Sample.Contacts, 5)
	assert.Empty(t, c.Path())

	got, err := c.Get(context.Background(), "trial-content")
	require.NoError(t, err)
	assert.Equal(t, "Product Description", got.Title)

	_, err = c.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, catalog.ErrTaskNotFound))
}

func TestParse(t *testing.T) {
	tasks, err := catalog.Parse([]byte(twoTasks))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, model.CategoryDataEntry, tasks[0].Category)
	assert.Equal(t, 70.0, tasks[1].AccuracyThreshold)
	assert.Equal(t, 200, tasks[1].Sample.TargetWords)

	cases := map[string]string{
		"empty":          "tasks: []",
		"not yaml":       "tasks: [",
		"missing id":     "tasks:\n  - category: content\n",
		"duplicate id":   "tasks:\n  - {id: a, category: content}\n  - {id: a, category: content}\n",
		"no category":    "tasks:\n  - {id: a}\n",
		"bad threshold":  "tasks:\n  - {id: a, category: content, accuracy_threshold: 140}\n",
		"negative limit": "tasks:\n  - {id: a, category: content, time_limit_minutes: -5}\n",
	}
	for name, body := range cases {
		_, err := catalog.Parse([]byte(body))
		assert.ErrorIs(t, err, catalog.ErrInvalidCatalog, name)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeFile(t, path, twoTasks)

	c, err := catalog.New(catalog.WithPath(path))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = catalog.New(catalog.WithPath(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeFile(t, path, twoTasks)

	c, err := catalog.New(catalog.WithPath(path))
	require.NoError(t, err)

	writeFile(t, path, "tasks: [")
	assert.Error(t, c.Reload(context.Background()))
	assert.Equal(t, 2, c.Len())

	writeFile(t, path, "tasks:\n  - {id: only, category: organization}\n")
	require.NoError(t, c.Reload(context.Background()))
	assert.Equal(t, 1, c.Len())
}

func TestConcurrentReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeFile(t, path, twoTasks)

	c, err := catalog.New(catalog.WithPath(path))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Reload(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, c.Len())
}

func TestWatchPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeFile(t, path, twoTasks)

	c, err := catalog.New(catalog.WithPath(path))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "tasks:\n  - {id: only, category: organization}\n")

	assert.Eventually(t, func() bool {
		_, err := c.Get(context.Background(), "only")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchWithoutFileReturnsOnCancel(t *testing.T) {
	c, err := catalog.New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, c.Watch(ctx))
}
