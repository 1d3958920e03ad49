package api

import (
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/trialeval/internal/app"
	"github.com/okian/trialeval/internal/domain/model"
)

// submissionRequest mirrors the OpenAPI schema for POST /evaluations and
// POST /submissions.
type submissionRequest struct {
	model.Envelope
}

// validate checks the request shape. Out-of-range minutes are left to
// the engine, which floors them to one minute.
func (s submissionRequest) validate() error {
	if strings.TrimSpace(s.TaskID) == "" {
		return errors.New("missing task_id")
	}
	return nil
}

type ackResponse struct {
	Status       string `json:"status"`
	SubmissionID string `json:"submission_id"`
	Duplicate    bool   `json:"duplicate"`
}

// EvaluationHandler handles evaluation requests.
type EvaluationHandler struct {
	deps         EvaluationDependencies
	maxBodyBytes int64
}

// NewEvaluationHandler creates a new evaluation handler.
func NewEvaluationHandler(deps EvaluationDependencies, maxBodyBytes int64) *EvaluationHandler {
	return &EvaluationHandler{deps: deps, maxBodyBytes: maxBodyBytes}
}

// decode reads and validates a submission request and resolves its task.
func (h *EvaluationHandler) decode(w http.ResponseWriter, r *http.Request, op string) (service.EvaluateRequest, error) {
	var req submissionRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		return service.EvaluateRequest{}, WrapKind(op, ErrBadRequest, err)
	}
	if err := req.validate(); err != nil {
		return service.EvaluateRequest{}, WrapKind(op, ErrBadRequest, err)
	}
	task, err := h.deps.Task(r.Context(), req.TaskID)
	if err != nil {
		return service.EvaluateRequest{}, Wrap(op, err)
	}
	return service.EvaluateRequest{
		SubmissionID: req.SubmissionID,
		WorkerID:     req.WorkerID,
		TaskID:       task.ID,
		Submission:   req.Submission(task.Category),
		MinutesSpent: req.MinutesSpent,
	}, nil
}

// HandleEvaluate handles POST /evaluations requests.
func (h *EvaluationHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate"
	req, err := h.decode(w, r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	out, err := h.deps.EvaluateNow(r.Context(), req)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSubmit handles POST /submissions requests.
func (h *EvaluationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit"
	req, err := h.decode(w, r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	id, duplicate, err := h.deps.Submit(r.Context(), req)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", SubmissionID: id, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", SubmissionID: id})
}

// HandleGetResult handles GET /submissions/{id} requests.
func (h *EvaluationHandler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_result"
	rec, err := h.deps.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
