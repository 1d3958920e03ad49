package api

import (
	"net/http"
	"strings"
)

// ProgressionHandler serves worker progression.
type ProgressionHandler struct {
	deps ProgressionDependencies
}

// NewProgressionHandler creates a new progression handler.
func NewProgressionHandler(deps ProgressionDependencies) *ProgressionHandler {
	return &ProgressionHandler{deps: deps}
}

// HandleGetProgression handles GET /workers/{id}/progression requests.
func (h *ProgressionHandler) HandleGetProgression(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_progression"
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	view, err := h.deps.Progression(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}
