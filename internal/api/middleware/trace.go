// Package middleware holds the HTTP middleware chain: tracing,
// authentication, the worker webhook gate, and rate limiting.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/projetosombra/sombra-api/internal/api/shared"
	"github.com/projetosombra/sombra-api/internal/platform/logger"
)

// Trace adds a trace ID to the request context and attaches a trace-scoped
// logger so downstream log lines correlate. Apply early in the chain.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		traceID := shared.GetTraceID(ctx)

		log := slog.Default().With(slog.String("trace_id", traceID))
		ctx = logger.WithLogger(ctx, log)

		log.Debug("request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
