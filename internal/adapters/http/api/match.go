package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/trialeval/internal/domain/matching"
)

// matchRequest is the body of POST /match. Without tasks the catalog is
// ranked.
type matchRequest struct {
	Worker matching.WorkerSummary `json:"worker"`
	Tasks  []matching.TaskSummary `json:"tasks"`
}

type matchResponse struct {
	WorkerID string           `json:"worker_id"`
	Matches  []matching.Match `json:"matches"`
}

// MatchHandler ranks tasks for a worker.
type MatchHandler struct {
	deps         MatchDependencies
	maxBodyBytes int64
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(deps MatchDependencies, maxBodyBytes int64) *MatchHandler {
	return &MatchHandler{deps: deps, maxBodyBytes: maxBodyBytes}
}

// HandleMatch handles POST /match requests.
func (h *MatchHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.match"
	var req matchRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Worker.ID) == "" {
		writeFailure(w, WrapKind(op, ErrBadRequest, errors.New("missing worker.id")))
		return
	}
	matches, err := h.deps.Match(r.Context(), req.Worker, req.Tasks)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if matches == nil {
		matches = []matching.Match{}
	}
	writeJSON(w, http.StatusOK, matchResponse{WorkerID: req.Worker.ID, Matches: matches})
}
