package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/platform/logger"
	"github.com/projetosombra/sombra-api/internal/service/auth"
	"github.com/projetosombra/sombra-api/internal/store"
)

// AuthService handles operator login, account seeding, and the admin-only
// account management surface.
type AuthService struct {
	userStore store.UserStore
	verifier  auth.PasswordVerifier
	jwt       auth.JWTService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService. If logger is nil, the default
// logger is used.
func NewAuthService(userStore store.UserStore, verifier auth.PasswordVerifier, jwt auth.JWTService, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		userStore: userStore,
		verifier:  verifier,
		jwt:       jwt,
		logger:    logger.With(slog.String("component", "auth_service")),
	}
}

// Login verifies credentials and issues a token. Unknown accounts and wrong
// passwords both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("loading user: %w", err)
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		log.Warn("failed login attempt", slog.String("email", email))
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(ctx, user)
	if err != nil {
		return "", nil, fmt.Errorf("issuing token: %w", err)
	}

	log.Info("user logged in", slog.String("user_id", user.ID.String()))
	return token, user, nil
}

// CreateUser registers a new operator account. An empty role defaults to
// USER. A duplicate email surfaces as store.ErrEmailExists.
func (s *AuthService) CreateUser(ctx context.Context, email, name, password string, role domain.UserRole) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if password == "" {
		return nil, fmt.Errorf("%w: password cannot be empty", domain.ErrValidation)
	}
	if role == "" {
		role = domain.UserRoleUser
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := domain.NewUser(email, name, hashed, role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.userStore.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Info("user created",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)))
	return user, nil
}

// ListUsers returns every operator account, oldest first.
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.userStore.List(ctx)
}

// SeedAdmin creates the given admin account if no user with that email
// exists yet. Called once at startup.
func (s *AuthService) SeedAdmin(ctx context.Context, email, name, password string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.userStore.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrUserNotFound) {
		return fmt.Errorf("checking admin account: %w", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}

	user, err := domain.NewUser(email, name, hashed, domain.UserRoleAdmin)
	if err != nil {
		return fmt.Errorf("building admin account: %w", err)
	}

	if err := s.userStore.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil
		}
		return fmt.Errorf("creating admin account: %w", err)
	}

	log.Info("admin account seeded", slog.String("email", email))
	return nil
}
