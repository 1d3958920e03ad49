package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/trialeval/internal/adapters/mq/queue"
	worker "github.com/okian/trialeval/internal/adapters/mq/worker"
	model "github.com/okian/trialeval/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 100)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(id string) {
	mq.jobs <- model.Job{SubmissionID: id, WorkerID: "w-1", Submission: model.ContentSubmission{Text: id}}
}

type recordingProcessor struct {
	mu    sync.Mutex
	seen  map[string]int
	fail  map[string]error
	panic map[string]bool
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{seen: map[string]int{}, fail: map[string]error{}, panic: map[string]bool{}}
}

func (p *recordingProcessor) Process(_ context.Context, j worker.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panic[j.SubmissionID] {
		panic("boom")
	}
	if err := p.fail[j.SubmissionID]; err != nil {
		return err
	}
	p.seen[j.SubmissionID]++
	return nil
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		q := newMockQueue()
		proc := newRecordingProcessor()
		w := worker.NewInMemoryWorker(q, proc, worker.WithName("w-test"))
		convey.So(w.Name(), convey.ShouldEqual, "w-test")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs arrive", func() {
			q.add("sub-1")
			q.add("sub-2")

			convey.Convey("Then each job is processed once", func() {
				convey.So(waitFor(func() bool { return w.Processed() == 2 }), convey.ShouldBeTrue)
				convey.So(proc.count(), convey.ShouldEqual, 2)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the processor fails or panics", func() {
			proc.fail["bad"] = errors.New("store down")
			proc.panic["worse"] = true
			q.add("bad")
			q.add("worse")
			q.add("good")

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return w.Processed() == 1 && w.Failed() == 2 }), convey.ShouldBeTrue)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the queue is closed", func() {
			_ = q.Close()

			convey.Convey("Then the worker stops on its own", func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
				defer done()
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose context is cancelled", t, func() {
		w := worker.NewInMemoryWorker(newMockQueue(), newRecordingProcessor())
		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(500))
		proc := newRecordingProcessor()
		pool := worker.NewPool(4, q, proc)
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When many jobs are enqueued", func() {
			const n = 300
			for i := 0; i < n; i++ {
				convey.So(q.Enqueue(ctx, model.Job{SubmissionID: fmt.Sprintf("sub-%d", i)}), convey.ShouldBeNil)
			}

			convey.Convey("Then shutdown drains every queued job", func() {
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(proc.count(), convey.ShouldEqual, n)
				convey.So(pool.Processed(), convey.ShouldEqual, int64(n))
				convey.So(pool.Failed(), convey.ShouldEqual, int64(0))
				convey.So(pool.Active(), convey.ShouldEqual, 0)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				pool.UpdateMetrics()
			})
		})
	})

	convey.Convey("Given a pool with a non-positive size", t, func() {
		pool := worker.NewPool(0, newMockQueue(), worker.ProcessorFunc(func(context.Context, worker.Job) error { return nil }))
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
