// Package middleware holds the HTTP middleware of the application
// shell: trace ID propagation and the license gate.
package middleware

import (
	"net/http"

	"tktcli/internal/infrastructure"
)

// TraceID attaches a trace ID to every request context and echoes it in
// the X-Trace-ID response header. An incoming header wins so frontends
// can correlate retries.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = infrastructure.GenerateTraceID()
		}
		ctx := infrastructure.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
