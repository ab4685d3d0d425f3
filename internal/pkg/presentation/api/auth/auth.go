package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/fitband/device-mgmt/internal/pkg/application/auth"
	"github.com/fitband/device-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/rs/zerolog"
)

type principalContextKey struct{ name string }

var principalCtxKey = &principalContextKey{"principal"}

// RequireAuth resolves the bearer token into a user and stores it in the
// request context. Requests without a valid token are rejected with 401.
func RequireAuth(svc auth.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context())

			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				logger.Info().Msg("authorization header missing")
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			user, err := svc.Authenticate(r.Context(), header[7:])
			if err != nil {
				logger.Info().Err(err).Msg("authentication failed")
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func WithUser(ctx context.Context, user database.User) context.Context {
	return context.WithValue(ctx, principalCtxKey, user)
}

// GetUserFromContext returns the authenticated principal, if any.
func GetUserFromContext(ctx context.Context) (database.User, bool) {
	user, ok := ctx.Value(principalCtxKey).(database.User)
	return user, ok
}
