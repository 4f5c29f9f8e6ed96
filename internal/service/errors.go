// Package service implements the application services: the task lifecycle
// manager, the summary throttle, runtime settings, and authentication.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/projetosombra/sombra-api/internal/domain"
)

// Sentinel errors returned by service methods. Callers check these with
// errors.Is; the API layer maps them to HTTP status codes.
var (
	// ErrNoAnalyses indicates a summary was requested for a saleswoman with
	// no completed, analysed tasks. Maps to 400.
	ErrNoAnalyses = errors.New("no completed tasks with analysis available")

	// ErrMissingTranscription indicates analysis was requested for a task
	// that has no transcription yet. Maps to 400.
	ErrMissingTranscription = errors.New("task has no transcription")

	// ErrInvalidCredentials indicates a failed login. Maps to 401 without
	// revealing whether the account exists.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrWorkerDispatch indicates the external worker rejected or never
	// received a dispatch. The affected task has already been moved to
	// FAILED and rebroadcast. Maps to 502.
	ErrWorkerDispatch = errors.New("worker dispatch failed")
)

// StateConflictError is returned when an operation is illegal for the task's
// current pipeline status, including webhook updates that would move the
// status backward. Maps to 409.
type StateConflictError struct {
	CurrentStatus   domain.TaskStatus
	RequestedStatus domain.TaskStatus
	Operation       string
}

func (e *StateConflictError) Error() string {
	if e.RequestedStatus != "" {
		return fmt.Sprintf("%s: cannot move task from %s to %s", e.Operation, e.CurrentStatus, e.RequestedStatus)
	}
	return fmt.Sprintf("%s: not allowed while task is %s", e.Operation, e.CurrentStatus)
}

// RateLimitError is returned when the daily on-demand summary cap is hit
// without force. Maps to 429.
type RateLimitError struct {
	Limit int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("daily summary generation limit of %d reached", e.Limit)
}

// CooldownError is returned when a summary was generated too recently and
// force was not set. ConfirmationRequired tells the caller it may re-issue
// the request with force=true. Maps to 409.
type CooldownError struct {
	LastGeneratedAt time.Time
	Cooldown        time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("a summary was generated at %s, within the %s cooldown window",
		e.LastGeneratedAt.Format(time.RFC3339), e.Cooldown)
}

// ConfirmationRequired marks this error as overridable by the caller.
func (e *CooldownError) ConfirmationRequired() bool { return true }

// ConfirmationMessage is the human-readable prompt shown before overriding.
func (e *CooldownError) ConfirmationMessage() string {
	return "Um resumo já foi gerado recentemente. Deseja gerar um novo mesmo assim?"
}
