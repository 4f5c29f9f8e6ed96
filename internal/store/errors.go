package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in
	// the store. Entity-specific variants below wrap it.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g. a saleswoman with an email already in use).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored, or references a row that does not exist.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrRestricted is returned when a delete is blocked by rows that
	// still reference the entity.
	ErrRestricted = errors.New("entity is still referenced")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	ErrTaskNotFound       = fmt.Errorf("%w: task", ErrNotFound)
	ErrSaleswomanNotFound = fmt.Errorf("%w: saleswoman", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("%w: user", ErrNotFound)
	ErrSettingNotFound    = fmt.Errorf("%w: setting", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrEmailExists indicates an email already in use by another row.
	ErrEmailExists = fmt.Errorf("%w: email", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
