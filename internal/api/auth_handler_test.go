package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/service"
)

type fakeAuthenticator struct {
	email    string
	password string
	user     *domain.User
}

func (f *fakeAuthenticator) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	if email != f.email || password != f.password {
		return "", nil, service.ErrInvalidCredentials
	}
	return "token-123", f.user, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	t.Parallel()

	user, err := domain.NewUser("admin@projetosombra.com", "Administrador", "hash", domain.UserRoleAdmin)
	require.NoError(t, err)
	auth := &fakeAuthenticator{email: "admin@projetosombra.com", password: "s3nha-forte", user: user}
	handler := NewAuthHandler(auth, nil)

	t.Run("valid credentials return token and user", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"Admin@ProjetoSombra.com","password":"s3nha-forte"}`))
		rec := httptest.NewRecorder()
		handler.Login(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Token string       `json:"token"`
			User  *domain.User `json:"user"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "token-123", body.Token)
		require.NotNil(t, body.User)
		assert.Equal(t, "admin@projetosombra.com", body.User.Email)
	})

	t.Run("wrong password responds 401", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"admin@projetosombra.com","password":"errada"}`))
		rec := httptest.NewRecorder()
		handler.Login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing fields respond 400", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"admin@projetosombra.com"}`))
		rec := httptest.NewRecorder()
		handler.Login(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
