package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/trialeval/internal/adapters/http/api"
	"github.com/okian/trialeval/internal/adapters/repository"
	service "github.com/okian/trialeval/internal/app"
	"github.com/okian/trialeval/internal/domain/matching"
	"github.com/okian/trialeval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newMux(deps api.Dependencies, stats api.StatsProvider, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, stats, opts...).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

const goodEntries = `{
	"entry_0_name": "Asha Rao", "entry_0_phone": "9876543210", "entry_0_email": "asha@example.com", "entry_0_city": "Pune",
	"entry_1_name": "Ravi Kumar", "entry_1_phone": "9123456780", "entry_1_email": "ravi@example.com", "entry_1_city": "Chennai",
	"entry_2_name": "Meera Iyer", "entry_2_phone": "8023456789", "entry_2_email": "meera@iyer.in", "entry_2_city": "Bengaluru",
	"entry_3_name": "Fatima Sheikh", "entry_3_phone": "9012345678", "entry_3_email": "fatima@example.org", "entry_3_city": "Hyderabad"
}`

func TestServerWithService(t *testing.T) {
	Convey("Given the API backed by a running service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)
		mux := newMux(svc, svc)

		Convey("When scraping /healthz", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "trialeval_")
		})

		Convey("When reading /stats", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]any
			decode(w, &stats)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("When listing tasks", func() {
			w := do(mux, http.MethodGet, "/tasks?active=true", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var tasks []model.TrialTask
			decode(w, &tasks)
			So(len(tasks), ShouldEqual, 3)
		})

		Convey("When the time spent is negative", func() {
			body := `{"task_id":"trial-content","minutes_spent":-5,"text":"A great product with real quality."}`
			w := do(mux, http.MethodPost, "/evaluations", body)

			Convey("Then it is scored as one minute", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var out service.Outcome
				decode(w, &out)
				So(out.Result.SpeedScore, ShouldEqual, 100)
			})
		})

		Convey("When reading one task", func() {
			So(do(mux, http.MethodGet, "/tasks/trial-content", "").Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodGet, "/tasks/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When evaluating legacy form fields synchronously", func() {
			body := `{"worker_id":"w1","task_id":"trial-data-entry","minutes_spent":12,"fields":` + goodEntries + `}`
			w := do(mux, http.MethodPost, "/evaluations", body)
			So(w.Code, ShouldEqual, http.StatusOK)

			var out service.Outcome
			decode(w, &out)
			So(out.SubmissionID, ShouldNotBeEmpty)
			So(out.Result.Category, ShouldEqual, model.CategoryDataEntry)
			So(out.Result.Passed, ShouldBeTrue)
			So(out.Assignment, ShouldNotBeNil)

			Convey("Then the worker's progression is readable", func() {
				w := do(mux, http.MethodGet, "/workers/w1/progression", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var view service.ProgressionView
				decode(w, &view)
				So(view.Progression.Completed, ShouldEqual, 1)
				So(view.Progression.Passed, ShouldEqual, 1)
			})

			Convey("Then the stored result is readable", func() {
				w := do(mux, http.MethodGet, "/submissions/"+out.SubmissionID, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var rec repository.Record
				decode(w, &rec)
				So(rec.Status, ShouldEqual, repository.StatusEvaluated)
			})
		})

		Convey("When evaluating a typed content body", func() {
			w := do(mux, http.MethodPost, "/evaluations", `{"task_id":"trial-content","text":"A great bottle. Keeps water cold all day."}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var out service.Outcome
			decode(w, &out)
			So(out.Result.Category, ShouldEqual, model.CategoryContent)
			So(out.Assignment, ShouldBeNil)
		})

		Convey("When submitting asynchronously", func() {
			body := `{"submission_id":"s-1","worker_id":"w2","task_id":"trial-data-entry","minutes_spent":12,"fields":` + goodEntries + `}`
			w := do(mux, http.MethodPost, "/submissions", body)
			So(w.Code, ShouldEqual, http.StatusAccepted)

			Convey("Then a repeat is acknowledged as duplicate", func() {
				w := do(mux, http.MethodPost, "/submissions", body)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})

			Convey("Then the result is eventually evaluated", func() {
				var rec repository.Record
				deadline := time.Now().Add(5 * time.Second)
				for time.Now().Before(deadline) {
					w := do(mux, http.MethodGet, "/submissions/s-1", "")
					if w.Code == http.StatusOK {
						decode(w, &rec)
						if rec.Status == repository.StatusEvaluated {
							break
						}
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(rec.Status, ShouldEqual, repository.StatusEvaluated)
			})
		})

		Convey("When submitting without a worker", func() {
			w := do(mux, http.MethodPost, "/submissions", `{"task_id":"trial-content","text":"hi"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When matching against the catalog", func() {
			w := do(mux, http.MethodPost, "/match", `{"worker":{"id":"w1","badge":"SILVER","skills":["content writing"],"rating":4.5}}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var resp struct {
				WorkerID string           `json:"worker_id"`
				Matches  []matching.Match `json:"matches"`
			}
			decode(w, &resp)
			So(resp.WorkerID, ShouldEqual, "w1")
			So(len(resp.Matches), ShouldEqual, 3)
		})

		Convey("When reading unknown resources", func() {
			So(do(mux, http.MethodGet, "/submissions/nope", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/workers/nobody/progression", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServerRejectsBadRequests(t *testing.T) {
	Convey("Given the API backed by a running service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)
		mux := newMux(svc, svc, api.WithMaxBodyBytes(256))

		cases := []struct{ name, body string }{
			{"malformed json", `{"task_id":`},
			{"missing task", `{"worker_id":"w1"}`},
			{"oversized body", `{"task_id":"trial-content","text":"` + strings.Repeat("x", 512) + `"}`},
		}
		for _, c := range cases {
			Convey("When posting a "+c.name, func() {
				w := do(mux, http.MethodPost, "/evaluations", c.body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				var e struct {
					Code string `json:"code"`
				}
				decode(w, &e)
				So(e.Code, ShouldEqual, "bad_request")
			})
		}

		Convey("When matching without a worker id", func() {
			So(do(mux, http.MethodPost, "/match", `{"worker":{}}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When using the wrong method", func() {
			So(do(mux, http.MethodGet, "/evaluations", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

type stubDeps struct {
	err error
}

func (s stubDeps) Tasks(context.Context) ([]model.TrialTask, error) { return nil, s.err }
func (s stubDeps) Task(context.Context, string) (model.TrialTask, error) {
	return model.TrialTask{ID: "t", Category: model.CategoryContent}, nil
}
func (s stubDeps) EvaluateNow(context.Context, service.EvaluateRequest) (service.Outcome, error) {
	return service.Outcome{}, s.err
}
func (s stubDeps) Submit(context.Context, service.EvaluateRequest) (string, bool, error) {
	return "", false, s.err
}
func (s stubDeps) Result(context.Context, string) (repository.Record, error) {
	return repository.Record{}, s.err
}
func (s stubDeps) Progression(context.Context, string) (service.ProgressionView, error) {
	return service.ProgressionView{}, s.err
}
func (s stubDeps) Match(context.Context, matching.WorkerSummary, []matching.TaskSummary) ([]matching.Match, error) {
	return nil, s.err
}

type stubStats struct{}

func (stubStats) GetStats() map[string]interface{} { return map[string]interface{}{} }

func TestServerErrorMapping(t *testing.T) {
	Convey("Given handlers whose dependencies fail", t, func() {
		cases := []struct {
			err  error
			want int
		}{
			{service.ErrBackpressure, http.StatusTooManyRequests},
			{service.ErrNotStarted, http.StatusServiceUnavailable},
			{repository.ErrNotFound, http.StatusNotFound},
			{fmt.Errorf("%w: sub-1 is queued", service.ErrInProgress), http.StatusConflict},
			{errors.New("disk on fire"), http.StatusInternalServerError},
		}
		for _, c := range cases {
			mux := newMux(stubDeps{err: c.err}, stubStats{})
			w := do(mux, http.MethodPost, "/submissions", `{"worker_id":"w","task_id":"t","text":"x"}`)
			So(w.Code, ShouldEqual, c.want)
		}

		Convey("Then an evaluation still in flight is a conflict", func() {
			mux := newMux(stubDeps{err: fmt.Errorf("%w: sub-1 is queued", service.ErrInProgress)}, stubStats{})
			w := do(mux, http.MethodPost, "/evaluations", `{"submission_id":"sub-1","task_id":"t","text":"x"}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
			var e struct {
				Code string `json:"code"`
			}
			decode(w, &e)
			So(e.Code, ShouldEqual, "in_progress")
		})

		Convey("Then the tasks listing reports internal errors", func() {
			mux := newMux(stubDeps{err: errors.New("boom")}, stubStats{})
			So(do(mux, http.MethodGet, "/tasks", "").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestOpError(t *testing.T) {
	Convey("Given op errors", t, func() {
		cause := errors.New("cause")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)
		So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
		So(errors.Is(err, cause), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "api.op: bad request: cause")
		So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
		So(api.Wrap("api.op", nil), ShouldBeNil)
		So(api.Wrap("api.op", cause).Error(), ShouldEqual, "api.op: cause")
	})
}
