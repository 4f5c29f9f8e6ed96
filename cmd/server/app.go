package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/projetosombra/sombra-api/internal/config"
	"github.com/projetosombra/sombra-api/internal/events"
	"github.com/projetosombra/sombra-api/internal/platform/mail"
	"github.com/projetosombra/sombra-api/internal/platform/pdf"
	"github.com/projetosombra/sombra-api/internal/platform/postgres"
	"github.com/projetosombra/sombra-api/internal/platform/secrets"
	"github.com/projetosombra/sombra-api/internal/scheduler"
	"github.com/projetosombra/sombra-api/internal/service"
	"github.com/projetosombra/sombra-api/internal/service/auth"
	"github.com/projetosombra/sombra-api/internal/worker"
)

// application holds the wired dependency graph for the server process.
type application struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB

	broadcaster *events.Broadcaster
	scheduler   *scheduler.Scheduler

	authService       *service.AuthService
	taskService       *service.TaskService
	saleswomanService *service.SaleswomanService
	summaryService    *service.SummaryService
	settingsService   *service.SettingsService

	jwtService auth.JWTService
	renderer   *pdf.Renderer
	mailer     *mail.Mailer
}

// newApplication opens the database, runs migrations, and wires stores,
// services, the event broadcaster, and the scheduler.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	db, err := openDatabase(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	taskStore := postgres.NewPostgresTaskStore(db, log)
	saleswomanStore := postgres.NewPostgresSaleswomanStore(db, log)
	settingsStore := postgres.NewPostgresSettingsStore(db, log)
	userStore := postgres.NewPostgresUserStore(db, log)

	cipher, err := secrets.NewCipher([]byte(cfg.Auth.EncryptionKey))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating settings cipher: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating JWT service: %w", err)
	}

	settingsService := service.NewSettingsService(db, settingsStore, cipher, log)
	workerClient := worker.NewClient(
		cfg.Worker.URL,
		time.Duration(cfg.Worker.TimeoutSeconds)*time.Second,
		log,
	)

	broadcaster := events.NewBroadcaster(taskStore.ListActive, log)
	renderer := pdf.NewRenderer()
	mailer := mail.NewMailer(log)

	taskService := service.NewTaskService(taskStore, workerClient, settingsService, broadcaster, log)
	saleswomanService := service.NewSaleswomanService(saleswomanStore, log)
	summaryService := service.NewSummaryService(
		db,
		taskStore,
		saleswomanStore,
		workerClient,
		settingsService,
		renderer,
		mailer,
		cfg.Storage.SummariesDir,
		service.SummaryPolicy{
			DailyLimit:          cfg.Summary.DailyLimit,
			Cooldown:            time.Duration(cfg.Summary.CooldownHours) * time.Hour,
			MaxTasks:            cfg.Summary.MaxTasks,
			DefaultTriggerCount: cfg.Summary.DefaultTriggerCount,
		},
		log,
	)
	authService := service.NewAuthService(userStore, auth.NewBcryptVerifier(), jwtService, log)

	sched := scheduler.New(summaryService, taskService, settingsService, scheduler.Config{
		DefaultBatchSchedule: cfg.Summary.DefaultSchedule,
		StaleSweepSchedule:   cfg.Scheduler.StaleSweepSchedule,
		StaleTimeout:         time.Duration(cfg.Scheduler.StaleTimeoutMinutes) * time.Minute,
	}, log)

	// Changing EMAIL_SCHEDULE through the settings API takes effect
	// without a restart.
	settingsService.SetUpdateHook(func() {
		if err := sched.Restart(context.Background()); err != nil {
			log.Error("failed to restart scheduler after settings update",
				slog.String("error", err.Error()))
		}
	})

	if cfg.Admin.Password != "" {
		if err := authService.SeedAdmin(ctx, cfg.Admin.Email, cfg.Admin.Name, cfg.Admin.Password); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seeding admin user: %w", err)
		}
	}

	return &application{
		cfg:               cfg,
		logger:            log,
		db:                db,
		broadcaster:       broadcaster,
		scheduler:         sched,
		authService:       authService,
		taskService:       taskService,
		saleswomanService: saleswomanService,
		summaryService:    summaryService,
		settingsService:   settingsService,
		jwtService:        jwtService,
		renderer:          renderer,
		mailer:            mailer,
	}, nil
}

// Close releases the application's resources.
func (app *application) Close() {
	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database", slog.String("error", err.Error()))
	}
}

// openDatabase opens the Postgres pool via the pgx stdlib driver and
// verifies connectivity.
func openDatabase(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}
