package mw

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/session"
)

// TokenVerifier checks a bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (session.Claims, error)
}

type ctxKey int

const (
	claimsKey ctxKey = iota
	tokenKey
)

// RequireAuth rejects requests without a valid bearer token and stores the
// verified claims in the request context. When allowQuery is true the
// token may also come from the access_token query parameter, for clients
// that cannot set headers on a websocket handshake.
func RequireAuth(v TokenVerifier, allowQuery bool, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" && allowQuery {
				token = strings.TrimSpace(r.URL.Query().Get("access_token"))
			}
			if token == "" {
				WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := v.Verify(r.Context(), token)
			switch {
			case errors.Is(err, session.ErrRevoked):
				WriteError(w, http.StatusUnauthorized, "token revoked")
				return
			case errors.Is(err, session.ErrInvalidToken):
				log.Debug("rejected bearer token", logger.Error(err))
				WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			case err != nil:
				log.Error("failed to verify token", logger.Error(err))
				WriteError(w, http.StatusServiceUnavailable, "session check unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ClaimsFrom returns the verified claims stored by RequireAuth.
func ClaimsFrom(ctx context.Context) (session.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(session.Claims)
	return c, ok
}

// UserID returns the authenticated identity, or "".
func UserID(ctx context.Context) string {
	c, _ := ClaimsFrom(ctx)
	return c.UserID
}

// Token returns the raw bearer token of the request, or "".
func Token(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}
