package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/projetosombra/sombra-api/internal/api"
	apimiddleware "github.com/projetosombra/sombra-api/internal/api/middleware"
)

// setupRouter builds the HTTP surface: public login, the authenticated API,
// the admin-only settings and user endpoints, and the key-gated worker
// webhook.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.Trace)
	if app.cfg.RateLimit.RPS > 0 {
		r.Use(apimiddleware.RateLimit(app.cfg.RateLimit.RPS, app.cfg.RateLimit.Burst))
	}

	authHandler := api.NewAuthHandler(app.authService, app.logger)
	taskHandler := api.NewTaskHandler(
		app.taskService,
		app.broadcaster,
		app.renderer,
		app.cfg.Storage.UploadsDir,
		time.Duration(app.cfg.Scheduler.StaleTimeoutMinutes)*time.Minute,
		app.logger,
	)
	saleswomanHandler := api.NewSaleswomanHandler(
		app.saleswomanService,
		app.summaryService,
		app.taskService,
		app.logger,
	)
	settingsHandler := api.NewSettingsHandler(app.settingsService, app.mailer, app.logger)
	userHandler := api.NewUserHandler(app.authService, app.logger)

	authMiddleware := apimiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		// Worker webhook, gated by the shared internal key rather than a
		// user token.
		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.InternalKey(app.cfg.Auth.InternalAPIKey))
			r.Patch("/tasks/{id}/complete", taskHandler.Complete)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/tasks", taskHandler.Create)
			r.Get("/tasks/stream", taskHandler.Stream)
			r.Get("/tasks/{id}", taskHandler.Get)
			r.Get("/tasks/{id}/audio", taskHandler.Audio)
			r.Get("/tasks/{id}/pdf", taskHandler.PDF)
			r.Post("/tasks/{id}/analyze", taskHandler.Analyze)

			r.Get("/saleswomen", saleswomanHandler.List)
			r.Post("/saleswomen", saleswomanHandler.Create)
			r.Get("/saleswomen/{id}", saleswomanHandler.Get)
			r.Put("/saleswomen/{id}", saleswomanHandler.Update)
			r.Delete("/saleswomen/{id}", saleswomanHandler.Delete)
			r.Get("/saleswomen/{id}/tasks", saleswomanHandler.Tasks)
			r.Post("/saleswomen/{id}/generate-summary-pdf", saleswomanHandler.GenerateSummary)
			r.Get("/saleswomen/{id}/summary-pdf", saleswomanHandler.SummaryPDF)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAdmin)

				r.Post("/tasks/maintenance/fail-stale", taskHandler.FailStale)
				r.Post("/users", userHandler.Create)
				r.Get("/users", userHandler.List)
				r.Get("/settings", settingsHandler.Get)
				r.Put("/settings", settingsHandler.Update)
				r.Post("/settings/test-email", settingsHandler.TestEmail)
			})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response",
				"error", err)
		}
	})

	return r
}
