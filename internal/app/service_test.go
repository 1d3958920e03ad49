package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/trialeval/internal/adapters/catalog"
	jobqueue "github.com/okian/trialeval/internal/adapters/mq/queue"
	workerpool "github.com/okian/trialeval/internal/adapters/mq/worker"
	"github.com/okian/trialeval/internal/adapters/repository"
	"github.com/okian/trialeval/internal/domain/badge"
	"github.com/okian/trialeval/internal/domain/matching"
	"github.com/okian/trialeval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type staticCatalog map[string]model.TrialTask

func (c staticCatalog) Get(_ context.Context, id string) (model.TrialTask, error) {
	t, ok := c[id]
	if !ok {
		return model.TrialTask{}, catalog.ErrTaskNotFound
	}
	return t, nil
}

func (c staticCatalog) List(_ context.Context) []model.TrialTask {
	out := make([]model.TrialTask, 0, len(c))
	for _, t := range c {
		out = append(out, t)
	}
	return out
}

func testCatalog() staticCatalog {
	return staticCatalog{
		"de": {ID: "de", Title: "Records", Category: model.CategoryDataEntry, AccuracyThreshold: 85, Active: true},
		"ct": {ID: "ct", Title: "Copy", Category: model.CategoryContent, AccuracyThreshold: 80, Active: true,
			Sample: model.TaskSample{TargetWords: 150}},
		"old": {ID: "old", Title: "Retired", Category: model.CategoryOrganization},
	}
}

func goodRecords() model.DataEntrySubmission {
	r := model.DataRecord{Name: "Asha Rao", Phone: "9876543210", Email: "asha@example.com", City: "Pune"}
	return model.DataEntrySubmission{Records: []model.DataRecord{r, r, r, r}}
}

func startService(opts ...Option) *Service {
	s := New(append([]Option{WithCatalog(testCatalog()), WithWorkerCount(4), WithQueueSize(64)}, opts...)...)
	So(s.Start(context.Background()), ShouldBeNil)
	return s
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service that has not started", t, func() {
		s := New()
		ctx := context.Background()

		Convey("Then operations report it is not started", func() {
			_, err := s.EvaluateNow(ctx, EvaluateRequest{TaskID: "de"})
			So(errors.Is(err, ErrNotStarted), ShouldBeTrue)
			_, _, err = s.Submit(ctx, EvaluateRequest{TaskID: "de", WorkerID: "w"})
			So(errors.Is(err, ErrNotStarted), ShouldBeTrue)
			So(s.GetStats()["started"], ShouldBeFalse)
			So(s.Stop(ctx), ShouldBeNil)
		})

		Convey("When started without a catalog", func() {
			So(s.Start(ctx), ShouldBeNil)
			defer s.Stop(ctx)

			Convey("Then the built-in catalog is served", func() {
				tasks, err := s.Tasks(ctx)
				So(err, ShouldBeNil)
				So(len(tasks), ShouldEqual, 3)
				_, err = s.Task(ctx, "trial-content")
				So(err, ShouldBeNil)
			})

			Convey("Then starting again is a no-op", func() {
				So(s.Start(ctx), ShouldBeNil)
			})
		})
	})
}

func TestServiceEvaluateNow(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		ids := 0
		s := startService(WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("sub-%d", ids)
		}))
		defer s.Stop(ctx)

		Convey("When scoring without a worker", func() {
			out, err := s.EvaluateNow(ctx, EvaluateRequest{TaskID: "de", Submission: goodRecords(), MinutesSpent: 10})
			So(err, ShouldBeNil)
			So(out.SubmissionID, ShouldEqual, "sub-1")
			So(out.Result.Passed, ShouldBeTrue)
			So(out.Assignment, ShouldBeNil)

			Convey("Then the result is stored", func() {
				rec, err := s.Result(ctx, "sub-1")
				So(err, ShouldBeNil)
				So(rec.Status, ShouldEqual, repository.StatusEvaluated)
				So(rec.Result.OverallScore, ShouldEqual, out.Result.OverallScore)
			})
		})

		Convey("When a worker completes three passing tasks", func() {
			var last Outcome
			for i := 0; i < 3; i++ {
				out, err := s.EvaluateNow(ctx, EvaluateRequest{WorkerID: "w1", TaskID: "de", Submission: goodRecords(), MinutesSpent: 10})
				So(err, ShouldBeNil)
				last = out
			}

			Convey("Then the worker holds a bronze badge", func() {
				So(last.Assignment, ShouldNotBeNil)
				So(last.Assignment.Badge, ShouldEqual, badge.Bronze)
				So(last.Progression.Completed, ShouldEqual, 3)

				view, err := s.Progression(ctx, "w1")
				So(err, ShouldBeNil)
				So(view.Progression.CurrentBadge, ShouldEqual, badge.Bronze)
				So(view.Assignment.Badge, ShouldEqual, badge.Bronze)
				So(view.Assignment.Upgraded, ShouldBeFalse)
			})

			Convey("Then failing later tasks keeps the badge", func() {
				out, err := s.EvaluateNow(ctx, EvaluateRequest{WorkerID: "w1", TaskID: "de", Submission: model.DataEntrySubmission{}})
				So(err, ShouldBeNil)
				So(out.Result.Passed, ShouldBeFalse)
				So(out.Assignment.Badge, ShouldEqual, badge.Bronze)
			})
		})

		Convey("When the same submission id is evaluated again", func() {
			req := EvaluateRequest{SubmissionID: "replayed", WorkerID: "w2", TaskID: "de", Submission: goodRecords(), MinutesSpent: 10}
			first, err := s.EvaluateNow(ctx, req)
			So(err, ShouldBeNil)
			So(first.Duplicate, ShouldBeFalse)

			for i := 0; i < 2; i++ {
				again, err := s.EvaluateNow(ctx, req)
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
				So(again.Result.OverallScore, ShouldEqual, first.Result.OverallScore)
				So(again.Assignment.Upgraded, ShouldBeFalse)
			}

			Convey("Then the progression counts it once", func() {
				view, err := s.Progression(ctx, "w2")
				So(err, ShouldBeNil)
				So(view.Progression.Completed, ShouldEqual, 1)
				So(view.Progression.Passed, ShouldEqual, 1)
			})

			Convey("Then queueing the same id is a duplicate", func() {
				_, dup, err := s.Submit(ctx, EvaluateRequest{SubmissionID: "replayed", WorkerID: "w2", TaskID: "de"})
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)
			})
		})

		Convey("When the task is unknown", func() {
			_, err := s.EvaluateNow(ctx, EvaluateRequest{TaskID: "missing"})
			So(errors.Is(err, catalog.ErrTaskNotFound), ShouldBeTrue)
		})

		Convey("When the worker has no progression", func() {
			_, err := s.Progression(ctx, "nobody")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestServiceSubmit(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		s := startService()
		defer s.Stop(ctx)

		Convey("When a submission is queued", func() {
			id, dup, err := s.Submit(ctx, EvaluateRequest{SubmissionID: "a1", WorkerID: "w1", TaskID: "de", Submission: goodRecords(), MinutesSpent: 10})
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)
			So(id, ShouldEqual, "a1")

			Convey("Then it is eventually evaluated", func() {
				So(waitFor(func() bool {
					rec, err := s.Result(ctx, "a1")
					return err == nil && rec.Status == repository.StatusEvaluated
				}), ShouldBeTrue)
				rec, _ := s.Result(ctx, "a1")
				So(rec.Result.Passed, ShouldBeTrue)
			})

			Convey("Then resubmitting the same id is a duplicate", func() {
				_, dup, err := s.Submit(ctx, EvaluateRequest{SubmissionID: "a1", WorkerID: "w1", TaskID: "de"})
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)
			})
		})

		Convey("When the worker id is missing", func() {
			_, _, err := s.Submit(ctx, EvaluateRequest{TaskID: "de"})
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When the task is unknown", func() {
			_, _, err := s.Submit(ctx, EvaluateRequest{WorkerID: "w1", TaskID: "nope"})
			So(errors.Is(err, catalog.ErrTaskNotFound), ShouldBeTrue)
		})

		Convey("When one worker submits concurrently", func() {
			const n = 40
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					// Each id is sent twice; only one copy may count.
					id := fmt.Sprintf("c-%d", i%(n/2))
					_, _, _ = s.Submit(ctx, EvaluateRequest{SubmissionID: id, WorkerID: "busy", TaskID: "de", Submission: goodRecords(), MinutesSpent: 10})
				}(i)
			}
			wg.Wait()

			Convey("Then every unique submission is counted exactly once", func() {
				So(waitFor(func() bool {
					view, err := s.Progression(ctx, "busy")
					return err == nil && view.Progression.Completed == n/2
				}), ShouldBeTrue)
				view, _ := s.Progression(ctx, "busy")
				So(view.Progression.Passed, ShouldEqual, n/2)
				So(view.Progression.CurrentBadge, ShouldEqual, badge.Gold)
			})
		})
	})
}

func TestServiceBackpressure(t *testing.T) {
	Convey("Given a service whose single worker is blocked", t, func() {
		ctx := context.Background()
		s := New(WithCatalog(testCatalog()), WithWorkerCount(1), WithQueueSize(1))
		So(s.Start(ctx), ShouldBeNil)
		defer s.Stop(ctx)

		// Hold the worker lock so the worker parks inside Process.
		var once sync.Once
		hold := s.locks.Lock("w1")
		release := func() { once.Do(hold) }
		defer release()

		// b0 reaches the worker and b1 waits in the dequeue hand-off,
		// leaving the single queue slot for b2.
		for _, id := range []string{"b0", "b1"} {
			_, _, err := s.Submit(ctx, EvaluateRequest{SubmissionID: id, WorkerID: "w1", TaskID: "de"})
			So(err, ShouldBeNil)
			So(waitFor(func() bool { return s.queue.Len(ctx) == 0 }), ShouldBeTrue)
		}
		_, _, err := s.Submit(ctx, EvaluateRequest{SubmissionID: "b2", WorkerID: "w1", TaskID: "de"})
		So(err, ShouldBeNil)

		Convey("When the queue is full", func() {
			_, _, err := s.Submit(ctx, EvaluateRequest{SubmissionID: "b3", WorkerID: "w1", TaskID: "de"})

			Convey("Then the submission is rejected and can be retried", func() {
				So(errors.Is(err, ErrBackpressure), ShouldBeTrue)
				rec, err := s.Result(ctx, "b3")
				So(err, ShouldBeNil)
				So(rec.Status, ShouldEqual, repository.StatusFailed)

				release()
				So(waitFor(func() bool { return s.queue.Len(ctx) == 0 }), ShouldBeTrue)
				_, dup, err := s.Submit(ctx, EvaluateRequest{SubmissionID: "b3", WorkerID: "w1", TaskID: "de"})
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)
			})
		})
	})
}

func TestKeyedMutexCleansUp(t *testing.T) {
	Convey("Given a keyed mutex", t, func() {
		k := newKeyedMutex()
		unlockA := k.Lock("a")
		unlockB := k.Lock("b")
		So(k.size(), ShouldEqual, 2)

		unlockA()
		unlockB()
		So(k.size(), ShouldEqual, 0)
	})
}

func TestServiceProcessRemovedTask(t *testing.T) {
	Convey("Given a job for a task no longer in the catalog", t, func() {
		ctx := context.Background()
		s := startService()
		defer s.Stop(ctx)

		err := s.Process(ctx, model.Job{SubmissionID: "gone", WorkerID: "w1", TaskID: "deleted"})

		Convey("Then the record is marked failed", func() {
			So(errors.Is(err, catalog.ErrTaskNotFound), ShouldBeTrue)
			rec, err := s.Result(ctx, "gone")
			So(err, ShouldBeNil)
			So(rec.Status, ShouldEqual, repository.StatusFailed)
			So(rec.Error, ShouldNotBeEmpty)
		})
	})
}

func TestServiceMatch(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		s := startService(WithMaxMatchResults(1))
		defer s.Stop(ctx)
		w := matching.WorkerSummary{ID: "w1", Badge: badge.Silver, Skills: []string{"content writing"}, Rating: 4.8}

		Convey("When no tasks are given", func() {
			matches, err := s.Match(ctx, w, nil)
			So(err, ShouldBeNil)

			Convey("Then active catalog tasks are ranked and truncated", func() {
				So(len(matches), ShouldEqual, 1)
				So(matches[0].TaskID, ShouldNotEqual, "old")
			})
		})

		Convey("When explicit tasks are given", func() {
			matches, err := s.Match(ctx, w, []matching.TaskSummary{
				{ID: "t1", Category: model.CategoryContent, RequiredBadge: badge.Gold},
			})
			So(err, ShouldBeNil)
			So(len(matches), ShouldEqual, 1)
			So(matches[0].Eligible, ShouldBeFalse)
			So(matches[0].Reasons[0], ShouldContainSubstring, "Requires GOLD badge")
		})
	})
}

func TestServiceStats(t *testing.T) {
	Convey("Given a running service with one evaluation", t, func() {
		ctx := context.Background()
		s := startService()
		defer s.Stop(ctx)
		_, err := s.EvaluateNow(ctx, EvaluateRequest{WorkerID: "w1", TaskID: "ct", Submission: model.ContentSubmission{Text: "A great product."}})
		So(err, ShouldBeNil)

		stats := s.GetStats()
		So(stats["started"], ShouldBeTrue)
		So(stats["submissions"], ShouldEqual, 1)
		So(stats["workers"], ShouldEqual, 1)
		So(stats["tasks"], ShouldEqual, 3)
		So(stats["workerCount"], ShouldEqual, 4)
	})
}

var errStoreDown = errors.New("db down")

// flakyStore fails the next failures saves of records in failStatus and
// counts Close calls.
type flakyStore struct {
	*repository.MemoryStore

	mu         sync.Mutex
	failStatus repository.Status
	failures   int
	closed     int
}

func newFlakyStore(status repository.Status, failures int) *flakyStore {
	return &flakyStore{MemoryStore: repository.NewMemoryStore(), failStatus: status, failures: failures}
}

func (f *flakyStore) SaveResult(ctx context.Context, rec repository.Record) error {
	f.mu.Lock()
	if rec.Status == f.failStatus && f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errStoreDown
	}
	f.mu.Unlock()
	return f.MemoryStore.SaveResult(ctx, rec)
}

func (f *flakyStore) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return f.MemoryStore.Close()
}

func (f *flakyStore) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestServiceSaveFailureIsRetriable(t *testing.T) {
	Convey("Given a store that fails the first evaluated save", t, func() {
		ctx := context.Background()
		st := newFlakyStore(repository.StatusEvaluated, 1)
		s := startService(WithStore(st))
		defer s.Stop(ctx)

		Convey("When a synchronous evaluation hits the failure", func() {
			req := EvaluateRequest{SubmissionID: "sub-1", WorkerID: "w1", TaskID: "de", Submission: goodRecords(), MinutesSpent: 10}
			_, err := s.EvaluateNow(ctx, req)
			So(errors.Is(err, errStoreDown), ShouldBeTrue)

			Convey("Then the progression is untouched and the record failed", func() {
				_, err := s.Progression(ctx, "w1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				rec, err := s.Result(ctx, "sub-1")
				So(err, ShouldBeNil)
				So(rec.Status, ShouldEqual, repository.StatusFailed)
			})

			Convey("Then a retry with the same id counts once", func() {
				out, err := s.EvaluateNow(ctx, req)
				So(err, ShouldBeNil)
				So(out.Duplicate, ShouldBeFalse)
				view, err := s.Progression(ctx, "w1")
				So(err, ShouldBeNil)
				So(view.Progression.Completed, ShouldEqual, 1)
				So(view.Progression.Passed, ShouldEqual, 1)
			})
		})

		Convey("When a queued evaluation hits the failure", func() {
			req := EvaluateRequest{SubmissionID: "a1", WorkerID: "w2", TaskID: "de", Submission: goodRecords(), MinutesSpent: 10}
			_, dup, err := s.Submit(ctx, req)
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)
			So(waitFor(func() bool {
				rec, err := s.Result(ctx, "a1")
				return err == nil && rec.Status == repository.StatusFailed
			}), ShouldBeTrue)

			Convey("Then resubmitting the id is accepted and counted once", func() {
				_, dup, err := s.Submit(ctx, req)
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)
				So(waitFor(func() bool {
					rec, err := s.Result(ctx, "a1")
					return err == nil && rec.Status == repository.StatusEvaluated
				}), ShouldBeTrue)
				So(waitFor(func() bool {
					view, err := s.Progression(ctx, "w2")
					return err == nil && view.Progression.Completed == 1
				}), ShouldBeTrue)
			})
		})
	})
}

func TestServiceDroppedJob(t *testing.T) {
	Convey("Given a recorded submission whose job is dropped by the queue", t, func() {
		ctx := context.Background()
		s := startService()
		defer s.Stop(ctx)

		So(s.deduper.SeenAndRecord(ctx, "d1"), ShouldBeFalse)
		s.drop(model.Job{SubmissionID: "d1", WorkerID: "w1", TaskID: "de"})

		Convey("Then its record is failed and the id can be submitted again", func() {
			rec, err := s.Result(ctx, "d1")
			So(err, ShouldBeNil)
			So(rec.Status, ShouldEqual, repository.StatusFailed)
			So(rec.Error, ShouldEqual, jobqueue.ErrJobDropped.Error())

			_, dup, err := s.Submit(ctx, EvaluateRequest{SubmissionID: "d1", WorkerID: "w1", TaskID: "de"})
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)
		})
	})
}

func TestServiceStopTimeoutKeepsStoreOpen(t *testing.T) {
	Convey("Given a worker stuck in a job", t, func() {
		ctx := context.Background()
		st := newFlakyStore(repository.StatusFailed, 0)
		s := New(WithCatalog(testCatalog()), WithWorkerCount(1), WithQueueSize(4), WithStore(st))
		So(s.Start(ctx), ShouldBeNil)

		var once sync.Once
		hold := s.locks.Lock("w1")
		release := func() { once.Do(hold) }
		defer release()

		_, _, err := s.Submit(ctx, EvaluateRequest{SubmissionID: "slow", WorkerID: "w1", TaskID: "de", Submission: goodRecords(), MinutesSpent: 10})
		So(err, ShouldBeNil)
		So(waitFor(func() bool { return s.pool.Active() == 1 }), ShouldBeTrue)

		Convey("When Stop times out", func() {
			stopCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			err := s.Stop(stopCtx)

			Convey("Then the store stays open for the running worker", func() {
				So(errors.Is(err, workerpool.ErrShutdownTimeout), ShouldBeTrue)
				So(st.closes(), ShouldEqual, 0)

				release()
				So(waitFor(func() bool {
					p, err := st.GetProgression(ctx, "w1")
					return err == nil && p.Completed == 1
				}), ShouldBeTrue)
			})
		})
	})
}
