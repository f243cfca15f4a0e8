package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/nubstudio/galeria-backend/internal/config"
)

// Fingerprint returns the one-way hash under which a raw token is
// stored and looked up. The raw token itself never touches the
// database; the same hash is computed at save and lookup time.
func Fingerprint(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// ClientMeta is the request metadata attached to a session record.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// SessionRegistry is the server-side whitelist of issued tokens. The
// tokens are self-contained, the registry adds revocability: a revoked
// or logged-out token stops working before its natural expiry.
type SessionRegistry struct {
	repository Repository
	log        *zap.Logger
	ttl        time.Duration
}

func NewSessionRegistry(cfg *config.AuthConfig, log *zap.Logger, repo Repository) *SessionRegistry {
	ttl := cfg.TokenExpiration
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &SessionRegistry{
		repository: repo,
		log:        log,
		ttl:        ttl,
	}
}

func (r *SessionRegistry) Save(userID uint, rawToken string, meta ClientMeta) error {
	return r.repository.CreateSession(&Session{
		UserID:    userID,
		TokenHash: Fingerprint(rawToken),
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Active:    true,
		ExpiresAt: time.Now().Add(r.ttl),
	})
}

// IsValid requires all three: the fingerprint is whitelisted, the
// session is still active, and the stored expiry is in the future. The
// expiry check here is the real safety net; the sweep only reclaims
// storage.
func (r *SessionRegistry) IsValid(rawToken string) bool {
	session, err := r.repository.GetSessionByFingerprint(Fingerprint(rawToken))
	if err != nil {
		return false
	}
	return session.Active && session.ExpiresAt.After(time.Now())
}

// RevokeOne removes the session behind a single raw token (logout).
func (r *SessionRegistry) RevokeOne(rawToken string) error {
	return r.repository.DeleteSession(Fingerprint(rawToken))
}

// RevokeAllExcept backs "log out other devices". The caller's own
// session is matched by fingerprint equality and is never revoked.
func (r *SessionRegistry) RevokeAllExcept(userID uint, rawToken string) (int64, error) {
	return r.repository.DeleteOtherSessions(userID, Fingerprint(rawToken))
}

// SweepExpired purges sessions past their stored expiry.
func (r *SessionRegistry) SweepExpired() (int64, error) {
	return r.repository.DeleteExpiredSessions(time.Now())
}
