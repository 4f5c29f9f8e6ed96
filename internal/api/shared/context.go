// Package shared holds the request-scoped helpers used by every handler:
// context keys, JSON response writing, and request decoding.
package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
)

// ContextKey is the key type for context values set by the API layer.
type ContextKey string

const (
	// ClaimsContextKey carries the authenticated user's claims.
	ClaimsContextKey ContextKey = "authClaims"

	// TraceIDKey carries the per-request trace ID.
	TraceIDKey ContextKey = "traceID"

	// traceIDLength is the number of random bytes in a trace ID.
	traceIDLength = 16
)

// SetTraceID adds a fresh trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context, or "" when absent.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

func generateTraceID() string {
	b := make([]byte, traceIDLength)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is pathological; an empty trace ID only
		// degrades log correlation.
		slog.Error("failed to generate trace ID", slog.String("error", err.Error()))
		return ""
	}
	return hex.EncodeToString(b)
}
