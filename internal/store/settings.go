package store

import (
	"context"
	"database/sql"
)

// SettingsStore defines the interface for the configurations table. Values
// are stored as delivered; encryption of sensitive values is the settings
// service's concern, not the store's.
type SettingsStore interface {
	// GetAll returns every stored key/value pair.
	GetAll(ctx context.Context) (map[string]string, error)

	// Upsert writes a key/value pair, replacing any existing value
	// (last-write-wins, no versioning).
	Upsert(ctx context.Context, key, value string) error

	// WithTx returns a SettingsStore bound to the provided transaction.
	WithTx(tx *sql.Tx) SettingsStore
}
