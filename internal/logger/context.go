package logger

import "context"

// ctxKey is unexported so no other package can collide with our keys.
type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID stores a request ID on the context. The HTTP middleware
// assigns one per request; broker consumers restore it from the message
// header so a task's log trail stays joined across process boundaries.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID on the context, or "" when unset.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
