package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/projetosombra/sombra-api/internal/domain"
)

// UserStore defines the interface for operator account persistence.
type UserStore interface {
	// Create saves a new user.
	// Returns ErrEmailExists if the email is already registered.
	Create(ctx context.Context, user *domain.User) error

	// GetByEmail retrieves a user by email.
	// Returns ErrUserNotFound if no user has that email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByID retrieves a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// List returns every user, oldest first.
	List(ctx context.Context) ([]*domain.User, error)

	// WithTx returns a UserStore bound to the provided transaction.
	WithTx(tx *sql.Tx) UserStore
}
