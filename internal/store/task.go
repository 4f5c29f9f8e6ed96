package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/projetosombra/sombra-api/internal/domain"
)

// TaskStore defines the interface for task persistence. Reads that return
// tasks join the owning saleswoman, since every broadcast snapshot carries
// her alongside the task.
type TaskStore interface {
	// Create saves a new task to the store.
	// Returns validation errors from the domain Task if data is invalid,
	// or ErrInvalidEntity if the saleswoman does not exist.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task with its saleswoman joined.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update saves changes to an existing task (status, transcription,
	// analysis, includedInSummary). Returns ErrTaskNotFound if the task
	// does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// ListActive returns all tasks not yet COMPLETED or FAILED,
	// oldest-first, with saleswomen joined. Used to backfill newly
	// connected stream clients.
	ListActive(ctx context.Context) ([]*domain.Task, error)

	// ListStale returns in-flight tasks (PENDING, TRANSCRIBING, ALIGNING,
	// DIARIZING, ANALYZING) whose updated_at is before cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]*domain.Task, error)

	// ListCompletedBySaleswoman returns COMPLETED tasks for the agent,
	// newest-first. When requireAnalysis is set, tasks with a null
	// analysis are excluded. limit <= 0 means no limit.
	ListCompletedBySaleswoman(ctx context.Context, saleswomanID uuid.UUID, requireAnalysis bool, limit int) ([]*domain.Task, error)

	// ListUnsummarized returns COMPLETED tasks with analysis for the
	// agent that are not yet marked included_in_summary, newest-first.
	ListUnsummarized(ctx context.Context, saleswomanID uuid.UUID) ([]*domain.Task, error)

	// MarkIncludedInSummary flags the given tasks as consumed by a batch
	// summary.
	MarkIncludedInSummary(ctx context.Context, ids []uuid.UUID) error

	// CountBySaleswoman returns the number of tasks referencing the agent.
	CountBySaleswoman(ctx context.Context, saleswomanID uuid.UUID) (int, error)

	// WithTx returns a TaskStore bound to the provided transaction.
	WithTx(tx *sql.Tx) TaskStore
}
