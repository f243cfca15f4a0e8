package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type contextKey int

const (
	userIDKey contextKey = iota
	rawTokenKey
)

// UserFromContext returns the authenticated user id set by RequireAuth.
func UserFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDKey).(uint)
	return id, ok
}

// TokenFromContext returns the raw bearer token of the request.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(rawTokenKey).(string)
	return token, ok
}

// Middleware gates session-bound routes. A request passes only with a
// well-formed bearer token that verifies cryptographically AND is still
// whitelisted in the session registry.
type Middleware struct {
	tokens   *TokenIssuer
	sessions *SessionRegistry
	log      *zap.Logger
}

func NewMiddleware(tokens *TokenIssuer, sessions *SessionRegistry, log *zap.Logger) *Middleware {
	return &Middleware{tokens: tokens, sessions: sessions, log: log}
}

func (m *Middleware) RequireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			m.deny(w, http.StatusUnauthorized, "NO_TOKEN", "Authorization token required")
			return
		}

		claims, err := m.tokens.Verify(raw)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				m.deny(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Session expired, sign in again")
				return
			}
			m.deny(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token")
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			m.deny(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token")
			return
		}

		if !m.sessions.IsValid(raw) {
			m.log.Info("revoked session rejected", zap.Uint("user_id", userID))
			m.deny(w, http.StatusUnauthorized, "SESSION_REVOKED", "Session closed on this device")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, rawTokenKey, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func (m *Middleware) deny(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
