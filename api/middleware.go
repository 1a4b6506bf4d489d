package api

import (
	"context"
	"net/http"
	"strings"
)

// Authenticator resolves a bearer token to a user ID.
// *auth.TokenManager satisfies it.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

type contextKey struct{}

var userIDKey = contextKey{}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFrom returns the authenticated user ID, if any.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// RequireAuth rejects requests without a valid "Authorization: Bearer" token
// and puts the caller's user ID on the request context.
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, msgUnauthorized, nil)
				return
			}
			userID, err := a.Authenticate(token)
			if err != nil || userID == "" {
				writeError(w, http.StatusUnauthorized, msgUnauthorized, nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
