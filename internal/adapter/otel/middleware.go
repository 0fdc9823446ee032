package otel

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPMiddleware returns a chi-compatible middleware that opens a server
// span per request and extracts any inbound trace context. Health probes
// and the WebSocket upgrade are excluded: the former would dominate the
// trace volume, the latter holds its span open for the connection's life.
func HTTPMiddleware(serviceName string) func(http.Handler) http.Handler {
	skip := map[string]bool{"/health": true, "/ws": true}

	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithFilter(func(r *http.Request) bool {
				return !skip[r.URL.Path]
			}),
		)
	}
}
