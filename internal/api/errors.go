// Package api wires the HTTP surface: routing, middleware, handlers, and
// the mapping from service errors to status codes.
package api

import (
	"errors"
	"net/http"

	"github.com/projetosombra/sombra-api/internal/api/shared"
	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/service"
	"github.com/projetosombra/sombra-api/internal/service/auth"
	"github.com/projetosombra/sombra-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var conflict *service.StateConflictError
	var rateLimit *service.RateLimitError
	var cooldown *service.CooldownError

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, store.ErrSaleswomanNotFound),
		errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.As(err, &rateLimit):
		return http.StatusTooManyRequests

	case errors.As(err, &conflict),
		errors.As(err, &cooldown),
		errors.Is(err, store.ErrEmailExists),
		errors.Is(err, store.ErrRestricted):
		return http.StatusConflict

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, service.ErrNoAnalyses),
		errors.Is(err, service.ErrMissingTranscription):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrWorkerDispatch):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for the error.
// Conflict and throttle errors keep their own text, since it names the
// states and limits the client needs; everything else is generic.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var conflict *service.StateConflictError
	var rateLimit *service.RateLimitError
	var cooldown *service.CooldownError

	switch {
	case errors.As(err, &conflict):
		return conflict.Error()
	case errors.As(err, &rateLimit):
		return rateLimit.Error()
	case errors.As(err, &cooldown):
		return cooldown.ConfirmationMessage()

	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Not authorized"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrSaleswomanNotFound):
		return "Saleswoman not found"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrEmailExists):
		return "Email already in use"
	case errors.Is(err, store.ErrRestricted):
		return "Saleswoman still has tasks and cannot be deleted"

	case errors.Is(err, service.ErrNoAnalyses):
		return "No completed tasks with analysis available"
	case errors.Is(err, service.ErrMissingTranscription):
		return "Task has no transcription"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid identifier"

	case errors.Is(err, service.ErrWorkerDispatch):
		return "Worker dispatch failed"

	default:
		return "An unexpected error occurred"
	}
}

// respondServiceError combines the two mappings; cooldown conflicts carry
// the confirmationRequired flag.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)

	var cooldown *service.CooldownError
	if errors.As(err, &cooldown) {
		shared.RespondWithConfirmation(w, r, status, message)
		return
	}
	shared.RespondWithError(w, r, status, message)
}
