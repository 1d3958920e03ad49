// Package service wires the evaluation engine, task catalog, result store
// and async pipeline into the operations the HTTP API and CLI expose.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/trialeval/internal/adapters/catalog"
	jobqueue "github.com/okian/trialeval/internal/adapters/mq/queue"
	workerpool "github.com/okian/trialeval/internal/adapters/mq/worker"
	"github.com/okian/trialeval/internal/adapters/repository"
	"github.com/okian/trialeval/internal/domain/dedupe"
	"github.com/okian/trialeval/internal/domain/evaluation"
	"github.com/okian/trialeval/internal/domain/matching"
	"github.com/okian/trialeval/internal/domain/model"
	"github.com/okian/trialeval/internal/domain/progression"
	"github.com/okian/trialeval/pkg/logger"
	"github.com/okian/trialeval/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize       = 10000
	defaultDedupeSize      = 50000
	defaultMaxMatchResults = 20
)

// Catalog is the read side of the task catalog.
type Catalog interface {
	Get(ctx context.Context, id string) (model.TrialTask, error)
	List(ctx context.Context) []model.TrialTask
}

// EvaluateRequest is one worker submission against one catalog task.
type EvaluateRequest struct {
	// SubmissionID is optional; a UUID is generated when empty.
	SubmissionID string
	// WorkerID is optional for synchronous scoring; without it no
	// progression is recorded.
	WorkerID     string
	TaskID       string
	Submission   model.Submission
	MinutesSpent float64
}

// Outcome is the result of a synchronous evaluation.
type Outcome struct {
	SubmissionID string                  `json:"submission_id"`
	TaskID       string                  `json:"task_id"`
	WorkerID     string                  `json:"worker_id,omitempty"`
	Result       model.EvaluationResult  `json:"result"`
	Assignment   *progression.Assignment `json:"badge_assignment,omitempty"`
	Progression  *model.Progression      `json:"progression,omitempty"`
	// Duplicate marks a replayed submission id answered from the store.
	Duplicate bool `json:"duplicate,omitempty"`
}

// ProgressionView is a stored progression with its current badge details.
type ProgressionView struct {
	Progression model.Progression      `json:"progression"`
	Assignment  progression.Assignment `json:"badge_assignment"`
}

// Service implements the operations behind the HTTP API and CLI.
type Service struct {
	mu sync.RWMutex

	// Core components
	catalog Catalog
	engine  *evaluation.Engine
	store   repository.Store
	deduper dedupe.Deduper
	queue   *jobqueue.InMemoryQueue
	pool    *workerpool.Pool
	locks   *keyedMutex

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	maxMatchResults int

	now   func() time.Time
	newID func() string

	started bool
	logger  logger.Logger
}

// New constructs a Service. Components not supplied through options are
// created with defaults in Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       defaultQueueSize,
		dedupeSize:      defaultDedupeSize,
		maxMatchResults: defaultMaxMatchResults,
		locks:           newKeyedMutex(),
		now:             time.Now,
		newID:           uuid.NewString,
		logger:          logger.NewNop(),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes missing components and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting evaluation service...")

	if s.catalog == nil {
		c, err := catalog.New(catalog.WithLogger(s.logger.Named("catalog")))
		if err != nil {
			return fmt.Errorf("load default catalog: %w", err)
		}
		s.catalog = c
	}
	if s.engine == nil {
		s.engine = evaluation.NewEngine(evaluation.WithLogger(s.logger.Named("engine")))
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize), jobqueue.WithDropHandler(s.drop))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.ProcessorFunc(s.Process),
		workerpool.WithLogger(s.logger))
	// The pool outlives the Start caller's context; Stop ends it.
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "evaluation service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains queued submissions and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping evaluation service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		// Workers may still be writing; the store stays open for them.
		errs = append(errs, err)
		s.logger.Warn(ctx, "workers did not stop in time; store left open", logger.Error(err))
	} else if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "evaluation service stopped")
	return errors.Join(errs...)
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Tasks lists the catalog.
func (s *Service) Tasks(ctx context.Context) ([]model.TrialTask, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.catalog.List(ctx), nil
}

// Task returns one catalog task.
func (s *Service) Task(ctx context.Context, id string) (model.TrialTask, error) {
	if err := s.running(); err != nil {
		return model.TrialTask{}, err
	}
	return s.catalog.Get(ctx, id)
}

// EvaluateNow scores a submission synchronously, records it and, when a
// worker id is given, advances that worker's progression.
func (s *Service) EvaluateNow(ctx context.Context, req EvaluateRequest) (Outcome, error) {
	if err := s.running(); err != nil {
		return Outcome{}, err
	}
	task, err := s.catalog.Get(ctx, req.TaskID)
	if err != nil {
		return Outcome{}, err
	}
	if req.SubmissionID == "" {
		req.SubmissionID = s.newID()
	}
	if s.deduper.SeenAndRecord(ctx, req.SubmissionID) {
		metrics.RecordSubmissionDuplicate()
		return s.replay(ctx, req.SubmissionID)
	}
	// Ids evicted from the deduper are still known to the store.
	if s.stored(ctx, req.SubmissionID) {
		metrics.RecordSubmissionDuplicate()
		return s.replay(ctx, req.SubmissionID)
	}

	return s.evaluateNow(ctx, task, req)
}

// stored reports whether id has a record that is queued or evaluated.
// Failed records may be retried under the same id.
func (s *Service) stored(ctx context.Context, id string) bool {
	rec, err := s.store.GetResult(ctx, id)
	return err == nil && rec.Status != repository.StatusFailed
}

// replay answers a submission id that was seen before from its stored
// record, without touching the worker's progression.
func (s *Service) replay(ctx context.Context, id string) (Outcome, error) {
	rec, err := s.store.GetResult(ctx, id)
	if err != nil {
		// Recorded by a concurrent call that has not saved yet.
		return Outcome{}, fmt.Errorf("%w: %s", ErrInProgress, id)
	}
	if rec.Status != repository.StatusEvaluated {
		return Outcome{}, fmt.Errorf("%w: %s is %s", ErrInProgress, id, rec.Status)
	}
	s.logger.Debug(ctx, "duplicate evaluation answered from store", logger.String("submission_id", id))

	out := Outcome{SubmissionID: rec.SubmissionID, TaskID: rec.TaskID, WorkerID: rec.WorkerID, Result: rec.Result, Duplicate: true}
	if rec.WorkerID != "" {
		p, err := s.store.GetProgression(ctx, rec.WorkerID)
		if err != nil {
			return Outcome{}, fmt.Errorf("load progression: %w", err)
		}
		a := progression.Assign(progression.CountersOf(p), rec.Result)
		a.Upgraded = false
		out.Assignment = &a
		out.Progression = &p
	}
	return out, nil
}

func (s *Service) evaluateNow(ctx context.Context, task model.TrialTask, req EvaluateRequest) (Outcome, error) {
	submitted := s.now()
	start := time.Now()
	result := s.engine.Evaluate(ctx, task, req.Submission, req.MinutesSpent)
	metrics.RecordEvaluationLatency(float64(time.Since(start).Microseconds()) / 1000)

	rec := repository.Record{
		SubmissionID: req.SubmissionID,
		WorkerID:     req.WorkerID,
		TaskID:       task.ID,
		Result:       result,
		SubmittedAt:  submitted,
	}
	p, a, err := s.commit(ctx, rec)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		SubmissionID: req.SubmissionID,
		TaskID:       task.ID,
		WorkerID:     req.WorkerID,
		Result:       result,
		Assignment:   a,
		Progression:  p,
	}, nil
}

// commit stores rec as evaluated and then applies its result to the
// worker's progression. The record is written first, so once a progression
// counts a submission its id is always known to the store. When either
// write fails the record is marked failed and the id may be retried.
func (s *Service) commit(ctx context.Context, rec repository.Record) (*model.Progression, *progression.Assignment, error) {
	rec.Status = repository.StatusEvaluated
	rec.EvaluatedAt = s.now()
	if err := s.store.SaveResult(ctx, rec); err != nil {
		err = fmt.Errorf("save result: %w", err)
		s.fail(ctx, rec, err)
		return nil, nil, err
	}
	if rec.WorkerID == "" {
		return nil, nil, nil
	}

	p, a, err := s.advance(ctx, rec.WorkerID, rec.Result)
	if err != nil {
		s.fail(ctx, rec, err)
		return nil, nil, err
	}

	rec.Badge = a.Badge
	rec.Upgraded = a.Upgraded
	if err := s.store.SaveResult(ctx, rec); err != nil {
		// The progression already counts it; only the badge on the record is stale.
		s.logger.Warn(ctx, "failed to record badge on result",
			logger.String("submission_id", rec.SubmissionID),
			logger.Error(err),
		)
	}
	return &p, &a, nil
}

// fail marks rec failed with cause and forgets its id so the client can
// retry it.
func (s *Service) fail(ctx context.Context, rec repository.Record, cause error) {
	rec.Status = repository.StatusFailed
	rec.Error = cause.Error()
	rec.EvaluatedAt = s.now()
	if err := s.store.SaveResult(ctx, rec); err != nil {
		s.logger.Error(ctx, "failed to mark submission failed",
			logger.String("submission_id", rec.SubmissionID),
			logger.Error(err),
		)
	}
	s.deduper.Unrecord(ctx, rec.SubmissionID)
}

// Submit queues a submission for asynchronous evaluation. A submission id
// seen before is acknowledged as a duplicate and not evaluated again.
func (s *Service) Submit(ctx context.Context, req EvaluateRequest) (id string, duplicate bool, err error) {
	if err := s.running(); err != nil {
		return "", false, err
	}
	if strings.TrimSpace(req.WorkerID) == "" {
		return "", false, fmt.Errorf("%w: worker_id is required", ErrInvalidInput)
	}
	if _, err := s.catalog.Get(ctx, req.TaskID); err != nil {
		return "", false, err
	}

	id = req.SubmissionID
	if id == "" {
		id = s.newID()
	}
	if s.deduper.SeenAndRecord(ctx, id) {
		metrics.RecordSubmissionDuplicate()
		s.logger.Debug(ctx, "duplicate submission ignored", logger.String("submission_id", id))
		return id, true, nil
	}
	if s.stored(ctx, id) {
		metrics.RecordSubmissionDuplicate()
		s.logger.Debug(ctx, "submission already stored", logger.String("submission_id", id))
		return id, true, nil
	}

	rec := repository.Record{
		SubmissionID: id,
		WorkerID:     req.WorkerID,
		TaskID:       req.TaskID,
		Status:       repository.StatusQueued,
		SubmittedAt:  s.now(),
	}
	if err := s.store.SaveResult(ctx, rec); err != nil {
		s.deduper.Unrecord(ctx, id)
		return "", false, fmt.Errorf("save submission: %w", err)
	}

	job := model.Job{
		SubmissionID: id,
		WorkerID:     req.WorkerID,
		TaskID:       req.TaskID,
		Submission:   req.Submission,
		MinutesSpent: req.MinutesSpent,
		SubmittedAt:  rec.SubmittedAt,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// Allow the client to retry with the same id.
		s.deduper.Unrecord(ctx, id)
		rec.Status = repository.StatusFailed
		rec.Error = err.Error()
		_ = s.store.SaveResult(ctx, rec)
		if errors.Is(err, jobqueue.ErrQueueFull) {
			return "", false, fmt.Errorf("%w: %v", ErrBackpressure, err)
		}
		return "", false, fmt.Errorf("enqueue: %w", err)
	}
	return id, false, nil
}

// Process evaluates a queued job. It is the worker pool's processor.
func (s *Service) Process(ctx context.Context, j model.Job) error {
	rec := repository.Record{
		SubmissionID: j.SubmissionID,
		WorkerID:     j.WorkerID,
		TaskID:       j.TaskID,
		SubmittedAt:  j.SubmittedAt,
	}

	task, err := s.catalog.Get(ctx, j.TaskID)
	if err != nil {
		// The task may have been removed by a catalog reload.
		s.fail(ctx, rec, err)
		return err
	}

	start := time.Now()
	rec.Result = s.engine.Evaluate(ctx, task, j.Submission, j.MinutesSpent)
	metrics.RecordEvaluationLatency(float64(time.Since(start).Microseconds()) / 1000)

	_, _, err = s.commit(ctx, rec)
	return err
}

// drop marks a job that left the queue without reaching a worker as
// failed, so its id can be submitted again.
func (s *Service) drop(j model.Job) {
	ctx := context.Background()
	s.logger.Warn(ctx, "queued submission dropped", logger.String("submission_id", j.SubmissionID))
	s.fail(ctx, repository.Record{
		SubmissionID: j.SubmissionID,
		WorkerID:     j.WorkerID,
		TaskID:       j.TaskID,
		SubmittedAt:  j.SubmittedAt,
	}, jobqueue.ErrJobDropped)
}

// advance applies result to the worker's progression under the worker's lock.
func (s *Service) advance(ctx context.Context, workerID string, result model.EvaluationResult) (model.Progression, progression.Assignment, error) {
	unlock := s.locks.Lock(workerID)
	defer unlock()

	state, err := s.store.GetProgression(ctx, workerID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		state = model.Progression{WorkerID: workerID}
	case err != nil:
		return model.Progression{}, progression.Assignment{}, fmt.Errorf("load progression: %w", err)
	}

	next, a := progression.Apply(state, result)
	next.UpdatedAt = s.now()
	if err := s.store.SaveProgression(ctx, next); err != nil {
		return model.Progression{}, progression.Assignment{}, fmt.Errorf("save progression: %w", err)
	}

	if a.Upgraded {
		metrics.RecordBadgeUpgrade(a.Badge.String())
		s.logger.Info(ctx, "badge upgraded",
			logger.String("worker_id", workerID),
			logger.String("badge", a.Badge.String()),
			logger.Int("passed", next.Passed),
			logger.Int("completed", next.Completed),
		)
	}
	return next, a, nil
}

// Result returns the stored record for a submission.
func (s *Service) Result(ctx context.Context, submissionID string) (repository.Record, error) {
	if err := s.running(); err != nil {
		return repository.Record{}, err
	}
	return s.store.GetResult(ctx, submissionID)
}

// Progression returns a worker's progression with its badge details.
func (s *Service) Progression(ctx context.Context, workerID string) (ProgressionView, error) {
	if err := s.running(); err != nil {
		return ProgressionView{}, err
	}
	p, err := s.store.GetProgression(ctx, workerID)
	if err != nil {
		return ProgressionView{}, err
	}
	best := model.EvaluationResult{OverallScore: p.BestOverall}
	return ProgressionView{Progression: p, Assignment: progression.Assign(progression.CountersOf(p), best)}, nil
}

// Match ranks tasks for a worker. Explicit tasks are all scored, with
// ineligible ones flagged; without them the worker's eligible active
// catalog tasks are ranked.
func (s *Service) Match(ctx context.Context, worker matching.WorkerSummary, tasks []matching.TaskSummary) ([]matching.Match, error) {
	if err := s.running(); err != nil {
		return nil, err
	}

	var ranked []matching.Match
	if len(tasks) > 0 {
		ranked = matching.ScoreAll(worker, tasks)
	} else {
		for _, t := range s.catalog.List(ctx) {
			if !t.Active {
				continue
			}
			tasks = append(tasks, matching.TaskSummary{ID: t.ID, Title: t.Title, Category: t.Category})
		}
		ranked = matching.Rank(worker, tasks)
	}

	if len(ranked) > s.maxMatchResults {
		ranked = ranked[:s.maxMatchResults]
	}
	metrics.RecordMatchRequest(len(ranked))
	return ranked, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["submissions"] = s.store.Count(ctx)
		stats["workers"] = s.store.Workers(ctx)
		stats["tasks"] = len(s.catalog.List(ctx))
		stats["processed"] = s.pool.Processed()
		stats["failed"] = s.pool.Failed()
		stats["activeWorkers"] = s.pool.Active()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["weights"] = s.engine.Weights()

		s.pool.UpdateMetrics()
		metrics.UpdateTotalWorkers(s.store.Workers(ctx))
	}

	return stats
}
