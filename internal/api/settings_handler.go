package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/projetosombra/sombra-api/internal/api/shared"
	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/platform/logger"
)

// SettingsManager is the slice of the settings service the handler needs.
type SettingsManager interface {
	GetAll(ctx context.Context) (domain.Settings, error)
	UpdateAll(ctx context.Context, updates map[string]string) error
}

// TestMailSender sends the settings verification email.
type TestMailSender interface {
	SendTest(ctx context.Context, settings domain.Settings, to string) error
}

// SettingsHandler serves the admin settings endpoints.
type SettingsHandler struct {
	settings SettingsManager
	mailer   TestMailSender
	logger   *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler. If logger is nil, the
// default logger is used.
func NewSettingsHandler(settings SettingsManager, mailer TestMailSender, logger *slog.Logger) *SettingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsHandler{
		settings: settings,
		mailer:   mailer,
		logger:   logger.With(slog.String("component", "settings_handler")),
	}
}

// Get handles GET /api/settings, returning decrypted values for the admin
// UI.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.GetAll(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, settings)
}

// Update handles PUT /api/settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := shared.DecodeJSON(r, &updates); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(updates) == 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "No settings provided")
		return
	}

	if err := h.settings.UpdateAll(r.Context(), updates); err != nil {
		respondServiceError(w, r, err)
		return
	}

	settings, err := h.settings.GetAll(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, settings)
}

type testEmailRequest struct {
	Email string `json:"email"`
}

// TestEmail handles POST /api/settings/test-email, sending a verification
// message with the currently stored SMTP configuration.
func (h *SettingsHandler) TestEmail(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req testEmailRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !strings.Contains(req.Email, "@") {
		shared.RespondWithError(w, r, http.StatusBadRequest, "A valid email address is required")
		return
	}

	settings, err := h.settings.GetAll(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if err := h.mailer.SendTest(r.Context(), settings, req.Email); err != nil {
		log.Error("test email failed", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadGateway, "Failed to send test email: "+err.Error())
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"message": "Test email sent successfully",
	})
}
