package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables (SOMBRA_ prefix) and
// an optional config.yaml, applies defaults, and validates the result.
// Environment variables take precedence over values from config files.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("SOMBRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// The config file is optional; env vars alone are a valid setup.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// AutomaticEnv does not surface env-only keys through Unmarshal unless
	// each key is touched; binding explicitly keeps the precedence rules
	// predictable.
	for _, key := range []string{
		"server.port", "server.log_level",
		"database.url",
		"auth.jwt_secret", "auth.token_expiry_hours", "auth.internal_api_key", "auth.encryption_key",
		"worker.url", "worker.timeout_seconds",
		"storage.uploads_dir", "storage.summaries_dir",
		"summary.daily_limit", "summary.cooldown_hours", "summary.max_tasks",
		"summary.default_trigger_count", "summary.default_schedule",
		"scheduler.stale_timeout_minutes", "scheduler.stale_sweep_schedule",
		"ratelimit.rps", "ratelimit.burst",
		"admin.email", "admin.name", "admin.password",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("worker.url", "http://localhost:8000")
	v.SetDefault("worker.timeout_seconds", 120)

	v.SetDefault("auth.token_expiry_hours", 24)

	v.SetDefault("storage.uploads_dir", "uploads")
	v.SetDefault("storage.summaries_dir", "uploads/summaries")

	v.SetDefault("summary.daily_limit", 5)
	v.SetDefault("summary.cooldown_hours", 168)
	v.SetDefault("summary.max_tasks", 6)
	v.SetDefault("summary.default_trigger_count", 5)
	v.SetDefault("summary.default_schedule", "0 8 * * *")

	v.SetDefault("scheduler.stale_timeout_minutes", 60)
	v.SetDefault("scheduler.stale_sweep_schedule", "*/30 * * * *")

	v.SetDefault("ratelimit.rps", 20.0)
	v.SetDefault("ratelimit.burst", 40)

	v.SetDefault("admin.email", "admin@projetosombra.com")
	v.SetDefault("admin.name", "Administrador")
}
