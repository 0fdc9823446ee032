// Package middleware provides HTTP middleware for TaskForge.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Strob0t/TaskForge/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RequestID assigns every request an ID: the caller's X-Request-ID when
// present, a fresh UUID otherwise. The ID rides the request context into
// request logs, audit rows, and broker messages, and is echoed on the
// response header so clients can quote it back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
