// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/trialeval/internal/adapters/catalog"
	"github.com/okian/trialeval/internal/adapters/repository"
	service "github.com/okian/trialeval/internal/app"
	"github.com/okian/trialeval/internal/domain/matching"
	"github.com/okian/trialeval/internal/domain/model"
)

// defaultMaxBodyBytes bounds request bodies.
const defaultMaxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	TaskDependencies
	EvaluationDependencies
	ProgressionDependencies
	MatchDependencies
}

// TaskDependencies reads the task catalog.
type TaskDependencies interface {
	Tasks(ctx context.Context) ([]model.TrialTask, error)
	Task(ctx context.Context, id string) (model.TrialTask, error)
}

// EvaluationDependencies scores submissions synchronously or through the queue.
type EvaluationDependencies interface {
	Task(ctx context.Context, id string) (model.TrialTask, error)
	EvaluateNow(ctx context.Context, req service.EvaluateRequest) (service.Outcome, error)
	Submit(ctx context.Context, req service.EvaluateRequest) (string, bool, error)
	Result(ctx context.Context, submissionID string) (repository.Record, error)
}

// ProgressionDependencies reads worker progression.
type ProgressionDependencies interface {
	Progression(ctx context.Context, workerID string) (service.ProgressionView, error)
}

// MatchDependencies ranks tasks for a worker.
type MatchDependencies interface {
	Match(ctx context.Context, worker matching.WorkerSummary, tasks []matching.TaskSummary) ([]matching.Match, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	taskHandler        *TaskHandler
	evaluationHandler  *EvaluationHandler
	progressionHandler *ProgressionHandler
	matchHandler       *MatchHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := config{maxBodyBytes: defaultMaxBodyBytes}

	// Apply all options
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		taskHandler:        NewTaskHandler(deps),
		evaluationHandler:  NewEvaluationHandler(deps, cfg.maxBodyBytes),
		progressionHandler: NewProgressionHandler(deps),
		matchHandler:       NewMatchHandler(deps, cfg.maxBodyBytes),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /tasks", MetricsMiddleware(s.taskHandler.HandleListTasks, "tasks"))
	mux.HandleFunc("GET /tasks/{id}", MetricsMiddleware(s.taskHandler.HandleGetTask, "task"))
	mux.HandleFunc("POST /evaluations", MetricsMiddleware(s.evaluationHandler.HandleEvaluate, "evaluations"))
	mux.HandleFunc("POST /submissions", MetricsMiddleware(s.evaluationHandler.HandleSubmit, "submissions"))
	mux.HandleFunc("GET /submissions/{id}", MetricsMiddleware(s.evaluationHandler.HandleGetResult, "submission"))
	mux.HandleFunc("GET /workers/{id}/progression", MetricsMiddleware(s.progressionHandler.HandleGetProgression, "progression"))
	mux.HandleFunc("POST /match", MetricsMiddleware(s.matchHandler.HandleMatch, "match"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps upstream errors to a status and error code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, catalog.ErrTaskNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrInProgress):
		return http.StatusConflict, "in_progress"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads one JSON value from the bounded body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}
