package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/projetosombra/sombra-api/internal/api/shared"
	"github.com/projetosombra/sombra-api/internal/domain"
)

// Authenticator verifies credentials and issues tokens.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}

// AuthHandler serves the login endpoint.
type AuthHandler struct {
	auth   Authenticator
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. If logger is nil, the default
// logger is used.
func NewAuthHandler(auth Authenticator, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		auth:   auth,
		logger: logger.With(slog.String("component", "auth_handler")),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, loginResponse{Token: token, User: user})
}
