package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/sakif/recipe-share/internal/apperror"
)

// contextKey is private so no other package can read or shadow the user id.
type contextKey string

const userIDKey contextKey = "userID"

// CookieName is the cookie the login handlers set.
const CookieName = "token"

// ErrorWriter renders an error response. The HTTP layer passes its own
// writer so a 401 from the middleware has the same body as any other.
type ErrorWriter func(w http.ResponseWriter, err error)

// RequireAuth rejects requests without a valid token with an
// apperror.ErrUnauthorized rendered by writeErr, and stores the user id in
// the context otherwise.
func RequireAuth(tokens *TokenService, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				writeErr(w, apperror.Unauthorized("authentication credentials were not provided or are invalid"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth identifies the user when a valid token is present and lets
// anonymous requests through. Recipe and user reads use it so is_favorited,
// is_in_shopping_cart and is_subscribed reflect the viewer.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a context carrying userID. Handler tests use it to
// fake an authenticated request.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns (0, false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// extractUserID reads the token from the Authorization header, falling back
// to the cookie, and validates it.
func extractUserID(r *http.Request, tokens *TokenService) (int64, error) {
	if token := tokenFromHeader(r.Header.Get("Authorization")); token != "" {
		return tokens.Validate(token)
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return 0, err
	}
	return tokens.Validate(cookie.Value)
}

// tokenFromHeader accepts "Token <jwt>" and "Bearer <jwt>".
func tokenFromHeader(h string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
		return strings.TrimSpace(token)
	}
	return ""
}
