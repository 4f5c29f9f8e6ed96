package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/events"
	"github.com/projetosombra/sombra-api/internal/platform/logger"
	"github.com/projetosombra/sombra-api/internal/store"
)

// WorkerGateway is the outbound contract to the external AI worker.
// Implemented by worker.Client; faked in tests.
type WorkerGateway interface {
	NotifyProcessTask(ctx context.Context, taskID uuid.UUID, filePath string, settings domain.Settings) error
	NotifyAnalyzeTask(ctx context.Context, taskID uuid.UUID, transcription string, settings domain.Settings) error
	GenerateConsolidatedSummary(ctx context.Context, name string, transcriptions []string, settings domain.Settings) (string, error)
}

// SettingsProvider supplies the current decrypted runtime settings.
type SettingsProvider interface {
	Current(ctx context.Context) (domain.Settings, error)
}

// TaskService owns the task state machine. It is the sole writer of task
// status: creation, webhook-driven transitions, on-demand analysis requests,
// and stale-task reclamation all go through it, and every mutation is
// rebroadcast to stream subscribers.
type TaskService struct {
	taskStore store.TaskStore
	worker    WorkerGateway
	settings  SettingsProvider
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewTaskService creates a TaskService. If logger is nil, the default logger
// is used.
func NewTaskService(
	taskStore store.TaskStore,
	worker WorkerGateway,
	settings SettingsProvider,
	publisher events.Publisher,
	logger *slog.Logger,
) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{
		taskStore: taskStore,
		worker:    worker,
		settings:  settings,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "task_service")),
		now:       time.Now,
	}
}

// UpdateTaskInput is the webhook payload applied to a task. Status is
// required; Transcription and Analysis are applied only when present.
// Analysis may arrive as a JSON object, a JSON array, or a JSON-encoded
// string containing either.
type UpdateTaskInput struct {
	Status        domain.TaskStatus `json:"status"`
	Transcription *string           `json:"transcription"`
	Analysis      json.RawMessage   `json:"analysis"`
}

// CreateTask persists a new PENDING task for an uploaded recording,
// broadcasts it, and dispatches the worker. A dispatch failure moves the
// task to FAILED and rebroadcasts instead of failing the caller: the upload
// was persisted, so the client receives the (possibly FAILED) task either
// way.
func (s *TaskService) CreateTask(ctx context.Context, clientName string, saleswomanID uuid.UUID, audioFilePath string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(clientName, saleswomanID, audioFilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.taskStore.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	// Re-read with the saleswoman joined so broadcasts carry her.
	created, err := s.taskStore.GetByID(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("loading created task: %w", err)
	}

	log.Info("task created",
		slog.String("task_id", created.ID.String()),
		slog.String("saleswoman_id", saleswomanID.String()))
	s.publisher.PublishTask(ctx, created)

	if err := s.dispatchProcess(ctx, created); err != nil {
		log.Error("worker dispatch failed, task marked FAILED",
			slog.String("task_id", created.ID.String()),
			slog.String("error", err.Error()))
		failed, _ := s.failTask(ctx, created, fmt.Sprintf("worker dispatch failed: %v", err))
		return failed, nil
	}

	return created, nil
}

// UpdateTask applies a worker callback to a task and rebroadcasts the
// resulting snapshot. Updates that would move the status backward along the
// pipeline are rejected with a conflict; re-delivering the current status is
// a legal no-op, which keeps duplicate webhooks idempotent.
func (s *TaskService) UpdateTask(ctx context.Context, taskID uuid.UUID, input UpdateTaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !input.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, input.Status)
	}

	task, err := s.taskStore.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !task.Status.CanTransition(input.Status) {
		log.Warn("rejected backward status transition",
			slog.String("task_id", taskID.String()),
			slog.String("current", string(task.Status)),
			slog.String("requested", string(input.Status)))
		return nil, &StateConflictError{
			CurrentStatus:   task.Status,
			RequestedStatus: input.Status,
			Operation:       "update task",
		}
	}

	task.Status = input.Status
	if input.Transcription != nil {
		task.Transcription = input.Transcription
	}
	if len(input.Analysis) > 0 {
		task.Analysis = normalizeIncomingAnalysis(input.Analysis)
	}
	task.UpdatedAt = s.now().UTC()

	if err := s.taskStore.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}

	log.Info("task updated",
		slog.String("task_id", taskID.String()),
		slog.String("status", string(task.Status)))
	s.publisher.PublishTask(ctx, task)

	return task, nil
}

// RequestAnalysis moves a TRANSCRIBED task to ANALYZING and dispatches the
// worker. Any other current status is a conflict carrying that status. A
// dispatch failure rolls the task forward to FAILED, never back to
// TRANSCRIBED: a failed dispatch counts as a failed analysis attempt that an
// operator must explicitly retry.
func (s *TaskService) RequestAnalysis(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.taskStore.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status != domain.TaskStatusTranscribed {
		return nil, &StateConflictError{
			CurrentStatus: task.Status,
			Operation:     "request analysis",
		}
	}

	if task.Transcription == nil || *task.Transcription == "" {
		return nil, ErrMissingTranscription
	}

	task.Status = domain.TaskStatusAnalyzing
	task.UpdatedAt = s.now().UTC()
	if err := s.taskStore.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}
	s.publisher.PublishTask(ctx, task)

	settings, err := s.currentSettings(ctx)
	if err == nil {
		err = s.worker.NotifyAnalyzeTask(ctx, task.ID, *task.Transcription, settings)
	}
	if err != nil {
		log.Error("analysis dispatch failed, task marked FAILED",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		failed, _ := s.failTask(ctx, task, fmt.Sprintf("analysis dispatch failed: %v", err))
		return failed, fmt.Errorf("%w: %v", ErrWorkerDispatch, err)
	}

	log.Info("analysis requested", slog.String("task_id", task.ID.String()))
	return task, nil
}

// FailStaleTasks force-fails every in-flight task whose updated_at is older
// than the timeout, merging an error note into its analysis and
// rebroadcasting. Returns the number of tasks failed. Running it again
// immediately is a no-op: failed tasks are no longer in flight.
func (s *TaskService) FailStaleTasks(ctx context.Context, timeout time.Duration) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cutoff := s.now().Add(-timeout)
	stale, err := s.taskStore.ListStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing stale tasks: %w", err)
	}

	failed := 0
	for _, task := range stale {
		message := fmt.Sprintf("task marked as failed after %d minutes without worker updates", int(timeout.Minutes()))
		if _, persisted := s.failTask(ctx, task, message); persisted {
			failed++
		}
	}

	if failed > 0 {
		log.Info("stale tasks failed", slog.Int("count", failed))
	}
	return failed, nil
}

// ListActiveTasks returns all in-flight tasks oldest first, with saleswomen
// joined. Used to backfill newly connected stream clients.
func (s *TaskService) ListActiveTasks(ctx context.Context) ([]*domain.Task, error) {
	return s.taskStore.ListActive(ctx)
}

// GetTask returns a task with its saleswoman joined.
func (s *TaskService) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	return s.taskStore.GetByID(ctx, taskID)
}

// ListCompletedBySaleswoman returns the agent's COMPLETED tasks, newest
// first.
func (s *TaskService) ListCompletedBySaleswoman(ctx context.Context, saleswomanID uuid.UUID) ([]*domain.Task, error) {
	return s.taskStore.ListCompletedBySaleswoman(ctx, saleswomanID, false, 0)
}

// failTask transitions a task to FAILED, records why in its analysis, and
// rebroadcasts. The mutated task is returned even when persistence fails so
// callers can still hand it to the client; the bool reports whether the
// FAILED state reached the store. Persistence errors are logged and
// swallowed; the stale sweep will catch anything missed.
func (s *TaskService) failTask(ctx context.Context, task *domain.Task, message string) (*domain.Task, bool) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task.Status = domain.TaskStatusFailed
	task.Analysis = domain.MergeAnalysisError(task.Analysis, message)
	task.UpdatedAt = s.now().UTC()

	if err := s.taskStore.Update(ctx, task); err != nil {
		log.Error("failed to persist FAILED transition",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return task, false
	}

	s.publisher.PublishTask(ctx, task)
	return task, true
}

func (s *TaskService) dispatchProcess(ctx context.Context, task *domain.Task) error {
	settings, err := s.currentSettings(ctx)
	if err != nil {
		return err
	}
	return s.worker.NotifyProcessTask(ctx, task.ID, task.AudioFilePath, settings)
}

// currentSettings loads runtime settings, degrading to empty settings only
// when no provider is wired (tests).
func (s *TaskService) currentSettings(ctx context.Context) (domain.Settings, error) {
	if s.settings == nil {
		return domain.Settings{}, nil
	}
	settings, err := s.settings.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return settings, nil
}

// normalizeIncomingAnalysis accepts the analysis field as delivered by the
// worker. A JSON-encoded string is unwrapped and its content parsed; malformed
// content becomes the error sentinel rather than failing the webhook.
func normalizeIncomingAnalysis(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return domain.NormalizeAnalysis(string(trimmed))
		}
		return domain.NormalizeAnalysis(inner)
	}

	return domain.NormalizeAnalysis(string(trimmed))
}
