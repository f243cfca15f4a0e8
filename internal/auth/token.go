package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nubstudio/galeria-backend/internal/config"
)

const (
	tokenIssuerName = "nub-studio"
	tokenAudience   = "nub-users"

	defaultTokenTTL = 24 * time.Hour
)

type Claims struct {
	jwt.RegisteredClaims
}

// UserID parses the subject claim back into a user id.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return uint(id), nil
}

// TokenIssuer signs and validates the bearer tokens behind sessions.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(cfg *config.AuthConfig) *TokenIssuer {
	ttl := cfg.TokenExpiration
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
	}
}

func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// Issue returns a signed token for the user. Every issuance carries a
// fresh jti so individual sessions can be correlated and revoked.
func (ti *TokenIssuer) Issue(userID uint) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        uuid.NewString(),
			Issuer:    tokenIssuerName,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.secret)
}

// Verify pins the signing algorithm and validates issuer and audience.
// A token signed with any other algorithm, or carrying the wrong issuer
// or audience, fails exactly like a forged one. Expired tokens are
// reported separately so the client can distinguish a stale session
// from a tampered one; both deny access.
func (ti *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return ti.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuerName),
		jwt.WithAudience(tokenAudience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
