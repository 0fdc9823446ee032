package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/TaskForge/internal/domain/event"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/service"
)

// Handlers holds service dependencies for all API endpoints.
type Handlers struct {
	Tasks *service.TaskService
}

// NewHandlers creates the handler set backed by the given services.
func NewHandlers(tasks *service.TaskService) *Handlers {
	return &Handlers{Tasks: tasks}
}

// CreateTask handles POST /tasks
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.CreateRequest](w, r, "No JSON data provided")
	if !ok {
		return
	}

	created, err := h.Tasks.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "Task not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetTask handles GET /tasks/{id}
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.Tasks.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTaskStatus handles PUT /tasks/{id}/status
func (h *Handlers) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := readJSON[task.UpdateStatusRequest](w, r, "Missing required field: new_status")
	if !ok {
		return
	}

	updated, err := h.Tasks.UpdateStatus(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, err, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteTask handles DELETE /tasks/{id}
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Tasks.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Task deleted successfully"})
}

// ListTasks handles GET /tasks
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "Task not found")
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// NextTaskToProcess handles GET /tasks/next-to-process
func (h *Handlers) NextTaskToProcess(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.NextToProcess(r.Context())
	if err != nil {
		writeDomainError(w, err, "No pending tasks found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListPendingTasks handles GET /tasks/pending
func (h *Handlers) ListPendingTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, err := task.ParseListParams(q.Get("sort_by"), q.Get("order"), q.Get("limit"))
	if err != nil {
		writeDomainError(w, err, "Task not found")
		return
	}

	tasks, err := h.Tasks.ListPending(r.Context(), params)
	if err != nil {
		writeDomainError(w, err, "Task not found")
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// ListTaskEvents handles GET /tasks/{id}/events
func (h *Handlers) ListTaskEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, err := h.Tasks.Events(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "Task not found")
		return
	}
	if events == nil {
		events = []event.TaskEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
