package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Worker    WorkerConfig    `mapstructure:"worker"    validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage"   validate:"required"`
	Summary   SummaryConfig   `mapstructure:"summary"   validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication and secret-handling settings.
type AuthConfig struct {
	// JWTSecret signs operator tokens.
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`

	// TokenExpiryHours bounds the lifetime of issued tokens.
	TokenExpiryHours int `mapstructure:"token_expiry_hours" validate:"required,gt=0"`

	// InternalAPIKey gates the worker webhook (X-Internal-Api-Key header).
	InternalAPIKey string `mapstructure:"internal_api_key" validate:"required"`

	// EncryptionKey protects sensitive settings values at rest.
	// Must be exactly 32 bytes (AES-256).
	EncryptionKey string `mapstructure:"encryption_key" validate:"required,len=32"`
}

// WorkerConfig describes how to reach the external AI worker.
type WorkerConfig struct {
	URL            string `mapstructure:"url"             validate:"required,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"required,gt=0"`
}

// StorageConfig locates the on-disk directories for uploads and summaries.
type StorageConfig struct {
	UploadsDir   string `mapstructure:"uploads_dir"   validate:"required"`
	SummariesDir string `mapstructure:"summaries_dir" validate:"required"`
}

// SummaryConfig tunes the summary throttle and batch trigger policies.
type SummaryConfig struct {
	// DailyLimit caps on-demand generations per saleswoman per calendar
	// day unless the caller forces past it.
	DailyLimit int `mapstructure:"daily_limit" validate:"required,gt=0"`

	// CooldownHours is the soft window after a generation during which a
	// new request needs explicit confirmation (force=true).
	CooldownHours int `mapstructure:"cooldown_hours" validate:"required,gt=0"`

	// MaxTasks bounds how many recent analyses feed an on-demand summary.
	MaxTasks int `mapstructure:"max_tasks" validate:"required,gt=0"`

	// DefaultTriggerCount is the batch volume threshold used when the
	// SUMMARY_TRIGGER_COUNT setting is absent.
	DefaultTriggerCount int `mapstructure:"default_trigger_count" validate:"required,gt=0"`

	// DefaultSchedule is the batch trigger cron expression used when the
	// EMAIL_SCHEDULE setting is absent or invalid.
	DefaultSchedule string `mapstructure:"default_schedule" validate:"required"`
}

// SchedulerConfig tunes the background sweeps.
type SchedulerConfig struct {
	// StaleTimeoutMinutes is how long an in-flight task may sit without a
	// webhook before the sweep force-fails it.
	StaleTimeoutMinutes int `mapstructure:"stale_timeout_minutes" validate:"required,gt=0"`

	// StaleSweepSchedule is the cron expression for the stale sweep.
	StaleSweepSchedule string `mapstructure:"stale_sweep_schedule" validate:"required"`
}

// AdminConfig describes the operator account seeded at startup. Seeding is
// skipped when Password is empty.
type AdminConfig struct {
	Email    string `mapstructure:"email"    validate:"omitempty,email"`
	Name     string `mapstructure:"name"`
	Password string `mapstructure:"password" validate:"omitempty,min=8"`
}

// RateLimitConfig tunes the per-IP token bucket on the public API.
// Zero values disable the middleware.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}
