package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/projetosombra/sombra-api/internal/platform/logger"
	"github.com/projetosombra/sombra-api/internal/store"
)

// PostgresSettingsStore implements the store.SettingsStore interface using
// a PostgreSQL database as the storage backend.
type PostgresSettingsStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSettingsStore creates a new PostgreSQL implementation of the
// SettingsStore interface. If logger is nil, the default logger is used.
func NewPostgresSettingsStore(db store.DBTX, logger *slog.Logger) *PostgresSettingsStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSettingsStore{
		db:     db,
		logger: logger.With(slog.String("component", "settings_store")),
	}
}

// Ensure PostgresSettingsStore implements store.SettingsStore
var _ store.SettingsStore = (*PostgresSettingsStore)(nil)

// GetAll implements store.SettingsStore.GetAll
func (s *PostgresSettingsStore) GetAll(ctx context.Context) (map[string]string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM configurations`)
	if err != nil {
		log.Error("failed to query configurations", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	settings := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return settings, nil
}

// Upsert implements store.SettingsStore.Upsert
func (s *PostgresSettingsStore) Upsert(ctx context.Context, key, value string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO configurations (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		log.Error("failed to upsert configuration",
			slog.String("error", err.Error()),
			slog.String("key", key))
		return err
	}

	return nil
}

// WithTx implements store.SettingsStore.WithTx
func (s *PostgresSettingsStore) WithTx(tx *sql.Tx) store.SettingsStore {
	return &PostgresSettingsStore{db: tx, logger: s.logger}
}
