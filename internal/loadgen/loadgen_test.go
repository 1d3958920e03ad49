package loadgen

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/trialeval/internal/adapters/http/api"
	service "github.com/okian/trialeval/internal/app"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestServer() (*httptest.Server, func()) {
	ctx := context.Background()
	svc := service.New(service.WithWorkerCount(4), service.WithQueueSize(1024))
	So(svc.Start(ctx), ShouldBeNil)

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	return srv, func() {
		srv.Close()
		_ = svc.Stop(ctx)
	}
}

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		g := newGenerator(42, 3)
		subs := g.generate(30)

		Convey("Then submissions are spread over all workers with unique ids", func() {
			So(len(subs), ShouldEqual, 30)
			workers := map[string]int{}
			ids := map[string]bool{}
			for _, s := range subs {
				workers[s.WorkerID]++
				ids[s.SubmissionID] = true
				So(s.TaskID, ShouldBeIn, []string{taskDataEntry, taskContent, taskOrganization})
				So(s.MinutesSpent, ShouldBeGreaterThanOrEqualTo, 5)
			}
			So(len(workers), ShouldEqual, 3)
			So(len(ids), ShouldEqual, 30)
		})
	})

	Convey("Given a duplicate share", t, func() {
		subs := newGenerator(7, 2).generate(200)
		So(pickDuplicates(7, subs, 0), ShouldBeEmpty)
		dups := pickDuplicates(7, subs, 0.5)
		So(len(dups), ShouldBeBetween, 50, 150)
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running server", t, func() {
		srv, stop := newTestServer()
		defer stop()

		Convey("When a load run completes", func() {
			stats, err := Run(context.Background(), Config{
				BaseURL:     srv.URL,
				Submissions: 120,
				Workers:     6,
				Concurrency: 8,
				Settle:      10 * time.Second,
				Duplicates:  0.25,
				Seed:        99,
			}, nil)

			Convey("Then every accepted submission is reflected in progression", func() {
				So(err, ShouldBeNil)
				So(stats.Generated, ShouldEqual, 120)
				So(stats.Accepted, ShouldEqual, 120)
				So(stats.Duplicate, ShouldEqual, stats.Submitted-120)
				So(stats.Mismatched, ShouldEqual, 0)
				total := 0
				for _, n := range stats.Badges {
					total += n
				}
				So(total, ShouldEqual, 6)
			})
		})
	})

	Convey("Given an unhealthy server", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := Run(context.Background(), Config{BaseURL: srv.URL, Submissions: 1}, nil)
		So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
	})
}

func TestVerify(t *testing.T) {
	Convey("Given final progressions", t, func() {
		var good, short, lowBadge workerProgress
		good.Progression.Completed, good.Progression.Passed, good.Progression.CurrentBadge = 3, 2, "BRONZE"
		short.Progression.Completed, short.Progression.CurrentBadge = 1, "NONE"
		lowBadge.Progression.Completed, lowBadge.Progression.Passed, lowBadge.Progression.CurrentBadge = 6, 5, "BRONZE"

		stats := &Stats{Badges: map[string]int{}}
		verify(
			map[string]int{"good": 3, "short": 2, "low": 6},
			map[string]workerProgress{"good": good, "short": short, "low": lowBadge},
			stats,
		)

		So(stats.Mismatched, ShouldEqual, 2)
		So(stats.Badges["BRONZE"], ShouldEqual, 2)
		So(stats.Badges["NONE"], ShouldEqual, 1)
	})
}
