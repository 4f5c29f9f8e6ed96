package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/projetosombra/sombra-api/internal/api/shared"
	"github.com/projetosombra/sombra-api/internal/domain"
)

// UserManager exposes the admin-only operator account operations.
type UserManager interface {
	CreateUser(ctx context.Context, email, name, password string, role domain.UserRole) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
}

// UserHandler serves the admin user-management endpoints.
type UserHandler struct {
	users  UserManager
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler. If logger is nil, the default logger
// is used.
func NewUserHandler(users UserManager, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		users:  users,
		logger: logger.With(slog.String("component", "user_handler")),
	}
}

type createUserRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     domain.UserRole `json:"role"`
}

// Create handles POST /api/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Name, email and password are required")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Email, req.Name, req.Password, req.Role)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, user)
}

// List handles GET /api/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []*domain.User{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, users)
}
