package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"
)

type contextKey string

const userIDKey contextKey = "user_id"

var errMissingHeader = errors.New("authorization header is missing")

// ExtractTokenFromRequest returns the bearer token of the Authorization
// header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errMissingHeader
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}
	return parts[1], nil
}

// Middleware verifies the bearer token when one is sent and stores the
// user id in the request context. Requests without a token pass through
// anonymously; a bad token is rejected.
func Middleware(v TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := ExtractTokenFromRequest(r)
			if errors.Is(err, errMissingHeader) {
				next.ServeHTTP(w, r)
				return
			}
			if err == nil {
				var claims *Claims
				claims, err = v.Verify(r.Context(), raw)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
					return
				}
			}

			if log != nil {
				log.LogSecurity("token_rejected", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
			}
			utils.WriteError(w, "Authentication failed", fmt.Errorf("%w: %v", models.ErrNotAuthenticated, err))
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserID(r.Context()) == "" {
			utils.WriteError(w, "Authentication required", models.ErrNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}
