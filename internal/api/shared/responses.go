package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the standard error body. ConfirmationRequired is set on
// soft-limit conflicts the client may override by re-issuing the request
// with force=true.
type ErrorResponse struct {
	Error                string `json:"error"`
	ConfirmationRequired bool   `json:"confirmationRequired,omitempty"`
	TraceID              string `json:"trace_id,omitempty"`
}

// RespondWithJSON writes a JSON response with the given status code.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes a standard JSON error body.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithJSON(w, r, status, ErrorResponse{
		Error:   message,
		TraceID: GetTraceID(r.Context()),
	})
}

// RespondWithConfirmation writes a conflict body flagged as overridable.
func RespondWithConfirmation(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithJSON(w, r, status, ErrorResponse{
		Error:                message,
		ConfirmationRequired: true,
		TraceID:              GetTraceID(r.Context()),
	})
}

// DecodeJSON decodes a JSON request body into dst. Unknown fields pass
// through; the worker payload shape evolves.
func DecodeJSON(r *http.Request, dst interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(dst)
}
