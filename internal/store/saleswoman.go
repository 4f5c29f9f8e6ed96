package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/projetosombra/sombra-api/internal/domain"
)

// SaleswomanStore defines the interface for saleswoman persistence.
type SaleswomanStore interface {
	// Create saves a new saleswoman.
	// Returns ErrEmailExists if the email is already in use.
	Create(ctx context.Context, s *domain.Saleswoman) error

	// GetByID retrieves a saleswoman by ID.
	// Returns ErrSaleswomanNotFound if she does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Saleswoman, error)

	// List returns all saleswomen ordered by name.
	List(ctx context.Context) ([]*domain.Saleswoman, error)

	// Update saves changes to an existing saleswoman, including the
	// summary bookkeeping fields.
	// Returns ErrSaleswomanNotFound if she does not exist and
	// ErrEmailExists when the new email collides with another row.
	Update(ctx context.Context, s *domain.Saleswoman) error

	// Delete removes a saleswoman.
	// Returns ErrRestricted while tasks still reference her.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a SaleswomanStore bound to the provided transaction.
	WithTx(tx *sql.Tx) SaleswomanStore
}
