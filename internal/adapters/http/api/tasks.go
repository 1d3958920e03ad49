package api

import (
	"net/http"
	"strings"
)

// TaskHandler serves the task catalog.
type TaskHandler struct {
	deps TaskDependencies
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(deps TaskDependencies) *TaskHandler {
	return &TaskHandler{deps: deps}
}

// HandleListTasks handles GET /tasks requests. ?active=true hides
// inactive tasks.
func (h *TaskHandler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_tasks"
	tasks, err := h.deps.Tasks(r.Context())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if strings.EqualFold(r.URL.Query().Get("active"), "true") {
		active := tasks[:0:0]
		for _, t := range tasks {
			if t.Active {
				active = append(active, t)
			}
		}
		tasks = active
	}
	writeJSON(w, http.StatusOK, tasks)
}

// HandleGetTask handles GET /tasks/{id} requests.
func (h *TaskHandler) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_task"
	task, err := h.deps.Task(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, task)
}
