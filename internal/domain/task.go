package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of a recording task.
type TaskStatus string

// Pipeline states, in order. FAILED is reachable from any state except
// COMPLETED; COMPLETED is terminal.
const (
	TaskStatusPending      TaskStatus = "PENDING"
	TaskStatusTranscribing TaskStatus = "TRANSCRIBING"
	TaskStatusAligning     TaskStatus = "ALIGNING"
	TaskStatusDiarizing    TaskStatus = "DIARIZING"
	TaskStatusTranscribed  TaskStatus = "TRANSCRIBED"
	TaskStatusAnalyzing    TaskStatus = "ANALYZING"
	TaskStatusCompleted    TaskStatus = "COMPLETED"
	TaskStatusFailed       TaskStatus = "FAILED"
)

// statusRank orders the pipeline so that transitions can be checked for
// regression. FAILED is deliberately absent: it is handled as an absorbing
// state rather than a pipeline position.
var statusRank = map[TaskStatus]int{
	TaskStatusPending:      0,
	TaskStatusTranscribing: 1,
	TaskStatusAligning:     2,
	TaskStatusDiarizing:    3,
	TaskStatusTranscribed:  4,
	TaskStatusAnalyzing:    5,
	TaskStatusCompleted:    6,
}

// Common validation errors for Task
var (
	ErrEmptyTaskID           = errors.New("task ID cannot be empty")
	ErrEmptyClientName       = errors.New("client name cannot be empty")
	ErrEmptyTaskSaleswomanID = errors.New("task saleswoman ID cannot be empty")
	ErrEmptyAudioFilePath    = errors.New("audio file path cannot be empty")
	ErrInvalidTaskStatus     = errors.New("invalid task status")
)

// Task represents one audio-analysis job for a sales call recording.
// The worker drives it through the pipeline via webhook callbacks; the
// Saleswoman field is populated on reads that join the owning agent.
type Task struct {
	ID                uuid.UUID       `json:"id"`
	ClientName        string          `json:"clientName"`
	SaleswomanID      uuid.UUID       `json:"saleswomanId"`
	AudioFilePath     string          `json:"audioFilePath"`
	Status            TaskStatus      `json:"status"`
	Transcription     *string         `json:"transcription"`
	Analysis          json.RawMessage `json:"analysis"`
	IncludedInSummary bool            `json:"includedInSummary"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`

	Saleswoman *Saleswoman `json:"saleswoman,omitempty"`
}

// NewTask creates a Task at PENDING for the given recording.
// Returns an error if validation fails.
func NewTask(clientName string, saleswomanID uuid.UUID, audioFilePath string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:            uuid.New(),
		ClientName:    clientName,
		SaleswomanID:  saleswomanID,
		AudioFilePath: audioFilePath,
		Status:        TaskStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.ClientName == "" {
		return ErrEmptyClientName
	}

	if t.SaleswomanID == uuid.Nil {
		return ErrEmptyTaskSaleswomanID
	}

	if t.AudioFilePath == "" {
		return ErrEmptyAudioFilePath
	}

	if !t.Status.Valid() {
		return ErrInvalidTaskStatus
	}

	return nil
}

// Terminal reports whether the task has reached a state the pipeline never
// leaves on its own.
func (t *Task) Terminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// InFlight reports whether the task is waiting on the worker, meaning the
// stale sweep may reclaim it if no callback arrives.
func (t *Task) InFlight() bool {
	switch t.Status {
	case TaskStatusPending, TaskStatusTranscribing, TaskStatusAligning,
		TaskStatusDiarizing, TaskStatusAnalyzing:
		return true
	default:
		return false
	}
}

// Valid reports whether the status is one of the known pipeline states.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusTranscribing, TaskStatusAligning,
		TaskStatusDiarizing, TaskStatusTranscribed, TaskStatusAnalyzing,
		TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is legal.
// Forward moves along the pipeline are allowed (the worker may skip stages),
// backward moves are not. Re-delivering the current status is legal so a
// duplicate webhook stays idempotent. FAILED absorbs from every state except
// COMPLETED, and a manual retry may move FAILED back to TRANSCRIBING.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}

	if next == s {
		return true
	}

	if s == TaskStatusCompleted {
		return false
	}

	if next == TaskStatusFailed {
		return true
	}

	if s == TaskStatusFailed {
		return next == TaskStatusTranscribing
	}

	return statusRank[next] > statusRank[s]
}
