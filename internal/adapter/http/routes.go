package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Tasks
	r.Post("/tasks", h.CreateTask)
	r.Get("/tasks", h.ListTasks)

	// Selection queries. Static segments take precedence over {id} matches.
	r.Get("/tasks/next-to-process", h.NextTaskToProcess)
	r.Get("/tasks/pending", h.ListPendingTasks)

	r.Get("/tasks/{id}", h.GetTask)
	r.Put("/tasks/{id}/status", h.UpdateTaskStatus)
	r.Delete("/tasks/{id}", h.DeleteTask)
	r.Get("/tasks/{id}/events", h.ListTaskEvents)
}
