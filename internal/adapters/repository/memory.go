package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/trialeval/internal/domain/model"
	"github.com/okian/trialeval/pkg/metrics"
)

// MemoryStore is an in-process Store guarded by a RWMutex.
type MemoryStore struct {
	mu           sync.RWMutex
	results      map[string]Record
	progressions map[string]model.Progression
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		results:      make(map[string]Record),
		progressions: make(map[string]model.Progression),
	}
}

func (s *MemoryStore) SaveResult(_ context.Context, rec Record) error {
	if rec.SubmissionID == "" {
		return fmt.Errorf("%w: empty submission id", ErrInvalidRecord)
	}
	start := time.Now()
	s.mu.Lock()
	s.results[rec.SubmissionID] = cloneRecord(rec)
	n := len(s.results)
	s.mu.Unlock()

	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateRepositoryRecordsTotal(n)
	return nil
}

func (s *MemoryStore) GetResult(_ context.Context, submissionID string) (Record, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	s.mu.RLock()
	rec, ok := s.results[submissionID]
	s.mu.RUnlock()
	if !ok {
		return Record{}, fmt.Errorf("%w: submission %s", ErrNotFound, submissionID)
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) GetProgression(_ context.Context, workerID string) (model.Progression, error) {
	s.mu.RLock()
	p, ok := s.progressions[workerID]
	s.mu.RUnlock()
	if !ok {
		return model.Progression{}, fmt.Errorf("%w: worker %s", ErrNotFound, workerID)
	}
	return cloneProgression(p), nil
}

func (s *MemoryStore) SaveProgression(_ context.Context, p model.Progression) error {
	if p.WorkerID == "" {
		return fmt.Errorf("%w: empty worker id", ErrInvalidRecord)
	}
	s.mu.Lock()
	s.progressions[p.WorkerID] = cloneProgression(p)
	n := len(s.progressions)
	s.mu.Unlock()

	metrics.UpdateTotalWorkers(n)
	return nil
}

func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

func (s *MemoryStore) Workers(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.progressions)
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func cloneProgression(p model.Progression) model.Progression {
	p.PassedCategories = append([]model.Category(nil), p.PassedCategories...)
	return p
}

func cloneRecord(r Record) Record {
	res := &r.Result
	if res.Metrics != nil {
		m := make(map[string]float64, len(res.Metrics))
		for k, v := range res.Metrics {
			m[k] = v
		}
		res.Metrics = m
	}
	res.Detailed.Strengths = append([]string(nil), res.Detailed.Strengths...)
	res.Detailed.Improvements = append([]string(nil), res.Detailed.Improvements...)
	res.Detailed.Notes = append([]string(nil), res.Detailed.Notes...)
	return r
}
