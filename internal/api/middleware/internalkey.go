package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/projetosombra/sombra-api/internal/api/shared"
)

// InternalKey gates the worker webhook behind the X-Internal-Api-Key shared
// secret. The worker is the only caller holding it.
func InternalKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Internal-Api-Key")
			if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid internal API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
