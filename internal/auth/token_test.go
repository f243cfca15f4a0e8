package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nubstudio/galeria-backend/internal/config"
)

func TestTokenIssuer_IssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer(newTestConfig())

	token, err := issuer.Issue(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
	assert.Equal(t, tokenIssuerName, claims.Issuer)
	assert.NotEmpty(t, claims.ID, "every token carries a fresh jti")
}

func TestTokenIssuer_UniqueTokensPerIssue(t *testing.T) {
	issuer := NewTokenIssuer(newTestConfig())

	a, err := issuer.Issue(1)
	require.NoError(t, err)
	b, err := issuer.Issue(1)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "same user, distinct sessions")
}

func TestTokenIssuer_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer(newTestConfig())
	other := NewTokenIssuer(&config.AuthConfig{
		JWTSecret:       "a-different-secret",
		TokenExpiration: time.Hour,
	})

	token, err := other.Issue(1)
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIssuer_RejectsWrongIssuerAndAudience(t *testing.T) {
	cfg := newTestConfig()
	issuer := NewTokenIssuer(cfg)
	now := time.Now()

	tests := []struct {
		name   string
		claims jwt.RegisteredClaims
	}{
		{
			name: "foreign issuer",
			claims: jwt.RegisteredClaims{
				Subject:   "1",
				Issuer:    "someone-else",
				Audience:  jwt.ClaimStrings{tokenAudience},
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		},
		{
			name: "foreign audience",
			claims: jwt.RegisteredClaims{
				Subject:   "1",
				Issuer:    tokenIssuerName,
				Audience:  jwt.ClaimStrings{"other-app"},
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims)
			signed, err := raw.SignedString([]byte(cfg.JWTSecret))
			require.NoError(t, err)

			_, err = issuer.Verify(signed)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestTokenIssuer_RejectsUnsignedAlgorithm(t *testing.T) {
	issuer := NewTokenIssuer(newTestConfig())

	raw := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    tokenIssuerName,
		Audience:  jwt.ClaimStrings{tokenAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := raw.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIssuer_ExpiredReportedDistinctly(t *testing.T) {
	cfg := newTestConfig()
	cfg.TokenExpiration = -time.Minute
	issuer := &TokenIssuer{secret: []byte(cfg.JWTSecret), ttl: cfg.TokenExpiration}

	token, err := issuer.Issue(7)
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = issuer.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
