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

const saleswomanColumns = `
	id, name, email, summary_pdf_path, summary_last_generated_at,
	summary_last_generation_date, summary_generations_today, created_at, updated_at
`

// PostgresSaleswomanStore implements the store.SaleswomanStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSaleswomanStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSaleswomanStore creates a new PostgreSQL implementation of the
// SaleswomanStore interface. If logger is nil, the default logger is used.
func NewPostgresSaleswomanStore(db store.DBTX, logger *slog.Logger) *PostgresSaleswomanStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSaleswomanStore{
		db:     db,
		logger: logger.With(slog.String("component", "saleswoman_store")),
	}
}

// Ensure PostgresSaleswomanStore implements store.SaleswomanStore
var _ store.SaleswomanStore = (*PostgresSaleswomanStore)(nil)

// Create implements store.SaleswomanStore.Create
func (s *PostgresSaleswomanStore) Create(ctx context.Context, sw *domain.Saleswoman) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := sw.Validate(); err != nil {
		log.Warn("saleswoman validation failed during create",
			slog.String("error", err.Error()))
		return err
	}

	query := `
		INSERT INTO saleswomen (id, name, email, summary_pdf_path, summary_last_generated_at,
			summary_last_generation_date, summary_generations_today, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		sw.ID,
		sw.Name,
		sw.Email,
		sw.SummaryPDFPath,
		sw.SummaryLastGeneratedAt,
		sw.SummaryLastGenerationDate,
		sw.SummaryGenerationsToday,
		sw.CreatedAt,
		sw.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn("duplicate saleswoman during create",
				slog.String("saleswoman_id", sw.ID.String()))
			return store.ErrEmailExists
		}
		log.Error("failed to create saleswoman",
			slog.String("error", err.Error()),
			slog.String("saleswoman_id", sw.ID.String()))
		return err
	}

	log.Info("saleswoman created", slog.String("saleswoman_id", sw.ID.String()))
	return nil
}

// GetByID implements store.SaleswomanStore.GetByID
func (s *PostgresSaleswomanStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Saleswoman, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + saleswomanColumns + ` FROM saleswomen WHERE id = $1`

	sw, err := scanSaleswoman(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("saleswoman not found", slog.String("saleswoman_id", id.String()))
			return nil, store.ErrSaleswomanNotFound
		}
		log.Error("failed to get saleswoman by ID",
			slog.String("error", err.Error()),
			slog.String("saleswoman_id", id.String()))
		return nil, err
	}

	return sw, nil
}

// List implements store.SaleswomanStore.List
func (s *PostgresSaleswomanStore) List(ctx context.Context) ([]*domain.Saleswoman, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + saleswomanColumns + ` FROM saleswomen ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to list saleswomen", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	saleswomen := []*domain.Saleswoman{}
	for rows.Next() {
		sw, err := scanSaleswoman(rows)
		if err != nil {
			log.Error("failed to scan saleswoman row", slog.String("error", err.Error()))
			return nil, err
		}
		saleswomen = append(saleswomen, sw)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return saleswomen, nil
}

// Update implements store.SaleswomanStore.Update
func (s *PostgresSaleswomanStore) Update(ctx context.Context, sw *domain.Saleswoman) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := sw.Validate(); err != nil {
		log.Warn("saleswoman validation failed during update",
			slog.String("error", err.Error()),
			slog.String("saleswoman_id", sw.ID.String()))
		return err
	}

	sw.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE saleswomen
		SET name = $1, email = $2, summary_pdf_path = $3, summary_last_generated_at = $4,
			summary_last_generation_date = $5, summary_generations_today = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		sw.Name,
		sw.Email,
		sw.SummaryPDFPath,
		sw.SummaryLastGeneratedAt,
		sw.SummaryLastGenerationDate,
		sw.SummaryGenerationsToday,
		sw.UpdatedAt,
		sw.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrEmailExists
		}
		log.Error("failed to update saleswoman",
			slog.String("error", err.Error()),
			slog.String("saleswoman_id", sw.ID.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return store.ErrSaleswomanNotFound
	}

	log.Info("saleswoman updated", slog.String("saleswoman_id", sw.ID.String()))
	return nil
}

// Delete implements store.SaleswomanStore.Delete
func (s *PostgresSaleswomanStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM saleswomen WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			log.Warn("saleswoman delete blocked by referencing tasks",
				slog.String("saleswoman_id", id.String()))
			return fmt.Errorf("%w: saleswoman has tasks", store.ErrRestricted)
		}
		log.Error("failed to delete saleswoman",
			slog.String("error", err.Error()),
			slog.String("saleswoman_id", id.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return store.ErrSaleswomanNotFound
	}

	log.Info("saleswoman deleted", slog.String("saleswoman_id", id.String()))
	return nil
}

// WithTx implements store.SaleswomanStore.WithTx
func (s *PostgresSaleswomanStore) WithTx(tx *sql.Tx) store.SaleswomanStore {
	return &PostgresSaleswomanStore{db: tx, logger: s.logger}
}

func scanSaleswoman(row rowScanner) (*domain.Saleswoman, error) {
	var (
		sw          domain.Saleswoman
		email       sql.NullString
		pdfPath     sql.NullString
		generatedAt sql.NullTime
		genDate     sql.NullTime
	)

	err := row.Scan(
		&sw.ID,
		&sw.Name,
		&email,
		&pdfPath,
		&generatedAt,
		&genDate,
		&sw.SummaryGenerationsToday,
		&sw.CreatedAt,
		&sw.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if email.Valid {
		sw.Email = &email.String
	}
	if pdfPath.Valid {
		sw.SummaryPDFPath = &pdfPath.String
	}
	if generatedAt.Valid {
		sw.SummaryLastGeneratedAt = &generatedAt.Time
	}
	if genDate.Valid {
		sw.SummaryLastGenerationDate = &genDate.Time
	}

	return &sw, nil
}
