package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/platform/logger"
	"github.com/projetosombra/sombra-api/internal/platform/secrets"
	"github.com/projetosombra/sombra-api/internal/store"
)

// SettingsService owns the runtime key/value configuration. Sensitive values
// are encrypted before hitting the database and decrypted on every read;
// updates are last-write-wins within a single transaction.
type SettingsService struct {
	transact      func(ctx context.Context, fn store.TxFn) error
	settingsStore store.SettingsStore
	cipher        *secrets.Cipher
	logger        *slog.Logger

	// onUpdate runs after a successful UpdateAll; the scheduler hooks in
	// here to pick up EMAIL_SCHEDULE changes.
	onUpdate func()
}

// NewSettingsService creates a SettingsService. If logger is nil, the
// default logger is used.
func NewSettingsService(db *sql.DB, settingsStore store.SettingsStore, cipher *secrets.Cipher, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{
		transact: func(ctx context.Context, fn store.TxFn) error {
			return store.RunInTransaction(ctx, db, fn)
		},
		settingsStore: settingsStore,
		cipher:        cipher,
		logger:        logger.With(slog.String("component", "settings_service")),
	}
}

// Ensure SettingsService satisfies the provider contract used by the task
// and summary services.
var _ SettingsProvider = (*SettingsService)(nil)

// SetUpdateHook registers a callback invoked after every successful
// UpdateAll. Must be called before the service handles requests.
func (s *SettingsService) SetUpdateHook(hook func()) {
	s.onUpdate = hook
}

// GetAll returns every stored setting with encrypted values decrypted.
// A value that fails decryption is dropped with a log entry rather than
// failing the whole read; the operator can re-save it.
func (s *SettingsService) GetAll(ctx context.Context) (domain.Settings, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	raw, err := s.settingsStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	settings := make(domain.Settings, len(raw))
	for key, value := range raw {
		if domain.IsEncryptedSetting(key) && value != "" {
			decrypted, err := s.cipher.Decrypt(value)
			if err != nil {
				log.Error("failed to decrypt setting, skipping",
					slog.String("key", key),
					slog.String("error", err.Error()))
				continue
			}
			value = decrypted
		}
		settings[key] = value
	}

	return settings, nil
}

// Current implements SettingsProvider.
func (s *SettingsService) Current(ctx context.Context) (domain.Settings, error) {
	return s.GetAll(ctx)
}

// UpdateAll upserts the given settings in one transaction, encrypting
// sensitive keys. On success the update hook fires so dependents can reload.
func (s *SettingsService) UpdateAll(ctx context.Context, updates map[string]string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	err := s.transact(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.settingsStore.WithTx(tx)
		for key, value := range updates {
			if domain.IsEncryptedSetting(key) && value != "" {
				encrypted, err := s.cipher.Encrypt(value)
				if err != nil {
					return fmt.Errorf("encrypting setting %s: %w", key, err)
				}
				value = encrypted
			}
			if err := txStore.Upsert(ctx, key, value); err != nil {
				return fmt.Errorf("upserting setting %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("settings updated", slog.Int("key_count", len(updates)))
	if s.onUpdate != nil {
		s.onUpdate()
	}
	return nil
}
