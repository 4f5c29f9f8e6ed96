package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/platform/logger"
	"github.com/projetosombra/sombra-api/internal/store"
)

// taskColumns is the select list shared by every task read. The saleswoman
// is always joined because broadcast snapshots carry her with the task.
const taskColumns = `
	t.id, t.client_name, t.saleswoman_id, t.audio_file_path, t.status,
	t.transcription, t.analysis, t.included_in_summary, t.created_at, t.updated_at,
	s.id, s.name, s.email, s.summary_pdf_path, s.summary_last_generated_at,
	s.summary_last_generation_date, s.summary_generations_today, s.created_at, s.updated_at
`

// PostgresTaskStore implements the store.TaskStore interface using a
// PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. If logger is nil, the default logger is used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Create implements store.TaskStore.Create
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (id, client_name, saleswoman_id, audio_file_path, status,
			transcription, analysis, included_in_summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.ClientName,
		task.SaleswomanID,
		task.AudioFilePath,
		task.Status,
		task.Transcription,
		nullableJSON(task.Analysis),
		task.IncludedInSummary,
		task.CreatedAt,
		task.UpdatedAt,
	)

	if err != nil {
		if isForeignKeyViolation(err) {
			log.Warn("foreign key violation during task creation",
				slog.String("task_id", task.ID.String()),
				slog.String("saleswoman_id", task.SaleswomanID.String()))
			return fmt.Errorf("%w: saleswoman with ID %s not found",
				store.ErrInvalidEntity, task.SaleswomanID)
		}

		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("status", string(task.Status)))
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN saleswomen s ON s.id = t.saleswoman_id
		WHERE t.id = $1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, err
	}

	return task, nil
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during update",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	// The service layer stamps UpdatedAt; the store persists it as-is.
	query := `
		UPDATE tasks
		SET status = $1, transcription = $2, analysis = $3,
			included_in_summary = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		task.Status,
		task.Transcription,
		nullableJSON(task.Analysis),
		task.IncludedInSummary,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		log.Debug("task not found for update", slog.String("task_id", task.ID.String()))
		return store.ErrTaskNotFound
	}

	log.Info("task updated",
		slog.String("task_id", task.ID.String()),
		slog.String("status", string(task.Status)))
	return nil
}

// ListActive implements store.TaskStore.ListActive
func (s *PostgresTaskStore) ListActive(ctx context.Context) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN saleswomen s ON s.id = t.saleswoman_id
		WHERE t.status NOT IN ($1, $2)
		ORDER BY t.created_at ASC
	`
	return s.queryTasks(ctx, query, domain.TaskStatusCompleted, domain.TaskStatusFailed)
}

// ListStale implements store.TaskStore.ListStale
func (s *PostgresTaskStore) ListStale(ctx context.Context, cutoff time.Time) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN saleswomen s ON s.id = t.saleswoman_id
		WHERE t.status IN ($1, $2, $3, $4, $5) AND t.updated_at < $6
		ORDER BY t.updated_at ASC
	`
	return s.queryTasks(ctx, query,
		domain.TaskStatusPending,
		domain.TaskStatusTranscribing,
		domain.TaskStatusAligning,
		domain.TaskStatusDiarizing,
		domain.TaskStatusAnalyzing,
		cutoff,
	)
}

// ListCompletedBySaleswoman implements store.TaskStore.ListCompletedBySaleswoman
func (s *PostgresTaskStore) ListCompletedBySaleswoman(
	ctx context.Context,
	saleswomanID uuid.UUID,
	requireAnalysis bool,
	limit int,
) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN saleswomen s ON s.id = t.saleswoman_id
		WHERE t.saleswoman_id = $1 AND t.status = $2
	`
	args := []any{saleswomanID, domain.TaskStatusCompleted}

	if requireAnalysis {
		query += ` AND t.analysis IS NOT NULL`
	}
	query += ` ORDER BY t.created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	return s.queryTasks(ctx, query, args...)
}

// ListUnsummarized implements store.TaskStore.ListUnsummarized
func (s *PostgresTaskStore) ListUnsummarized(ctx context.Context, saleswomanID uuid.UUID) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN saleswomen s ON s.id = t.saleswoman_id
		WHERE t.saleswoman_id = $1 AND t.status = $2
			AND t.included_in_summary = FALSE AND t.analysis IS NOT NULL
		ORDER BY t.created_at DESC
	`
	return s.queryTasks(ctx, query, saleswomanID, domain.TaskStatusCompleted)
}

// MarkIncludedInSummary implements store.TaskStore.MarkIncludedInSummary
func (s *PostgresTaskStore) MarkIncludedInSummary(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET included_in_summary = TRUE, updated_at = $1
		WHERE id = ANY($2)
	`
	_, err := s.db.ExecContext(ctx, query, time.Now().UTC(), ids)
	if err != nil {
		log.Error("failed to mark tasks as included in summary",
			slog.String("error", err.Error()),
			slog.Int("count", len(ids)))
		return err
	}

	log.Info("tasks marked as included in summary", slog.Int("count", len(ids)))
	return nil
}

// CountBySaleswoman implements store.TaskStore.CountBySaleswoman
func (s *PostgresTaskStore) CountBySaleswoman(ctx context.Context, saleswomanID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE saleswoman_id = $1`, saleswomanID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// WithTx implements store.TaskStore.WithTx
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

func (s *PostgresTaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tasks, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task       domain.Task
		saleswoman domain.Saleswoman
		status     string

		transcription sql.NullString
		analysis      []byte

		email       sql.NullString
		pdfPath     sql.NullString
		generatedAt sql.NullTime
		genDate     sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.ClientName,
		&task.SaleswomanID,
		&task.AudioFilePath,
		&status,
		&transcription,
		&analysis,
		&task.IncludedInSummary,
		&task.CreatedAt,
		&task.UpdatedAt,
		&saleswoman.ID,
		&saleswoman.Name,
		&email,
		&pdfPath,
		&generatedAt,
		&genDate,
		&saleswoman.SummaryGenerationsToday,
		&saleswoman.CreatedAt,
		&saleswoman.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	if transcription.Valid {
		task.Transcription = &transcription.String
	}
	if len(analysis) > 0 {
		task.Analysis = analysis
	}

	if email.Valid {
		saleswoman.Email = &email.String
	}
	if pdfPath.Valid {
		saleswoman.SummaryPDFPath = &pdfPath.String
	}
	if generatedAt.Valid {
		saleswoman.SummaryLastGeneratedAt = &generatedAt.Time
	}
	if genDate.Valid {
		saleswoman.SummaryLastGenerationDate = &genDate.Time
	}
	task.Saleswoman = &saleswoman

	return &task, nil
}

// nullableJSON maps an empty RawMessage to SQL NULL so the analysis column
// stays NULL until the worker delivers one.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
