package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRole controls access to the admin surfaces (settings, user management).
type UserRole string

const (
	UserRoleAdmin UserRole = "ADMIN"
	UserRoleUser  UserRole = "USER"
)

// Common validation errors for User
var (
	ErrEmptyUserID      = errors.New("user ID cannot be empty")
	ErrEmptyUserName    = errors.New("user name cannot be empty")
	ErrInvalidUserRole  = errors.New("invalid user role")
	ErrInvalidUserEmail = errors.New("invalid user email")
)

// User is an operator account used to gate the HTTP API.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	HashedPassword string    `json:"-"`
	Role           UserRole  `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewUser creates a User with a fresh ID. The password must already be
// hashed by the caller; the auth service owns the cost parameters.
func NewUser(email, name, hashedPassword string, role UserRole) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		ID:             uuid.New(),
		Email:          email,
		Name:           name,
		HashedPassword: hashedPassword,
		Role:           role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if !strings.Contains(u.Email, "@") {
		return ErrInvalidUserEmail
	}

	if u.Name == "" {
		return ErrEmptyUserName
	}

	switch u.Role {
	case UserRoleAdmin, UserRoleUser:
	default:
		return ErrInvalidUserRole
	}

	return nil
}
