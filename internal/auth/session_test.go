package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_DeterministicAndOpaque(t *testing.T) {
	a := Fingerprint("some-raw-token")
	b := Fingerprint("some-raw-token")
	c := Fingerprint("another-token")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // sha256 hex
	assert.NotContains(t, a, "some-raw-token")
}

func TestSessionRegistry_SaveAndValidate(t *testing.T) {
	env := newTestEnv(t)

	err := env.sessions.Save(1, "raw-token", ClientMeta{IP: "10.0.0.1", UserAgent: "go-test"})
	require.NoError(t, err)

	assert.True(t, env.sessions.IsValid("raw-token"))
	assert.False(t, env.sessions.IsValid("never-issued"))
}

func TestSessionRegistry_InactiveSessionRejected(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.repo.CreateSession(&Session{
		UserID:    1,
		TokenHash: Fingerprint("raw-token"),
		Active:    false,
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	assert.False(t, env.sessions.IsValid("raw-token"))
}

func TestSessionRegistry_ExpiredSessionRejectedBeforeSweep(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.repo.CreateSession(&Session{
		UserID:    1,
		TokenHash: Fingerprint("raw-token"),
		Active:    true,
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	// The stored expiry is checked at validation time; the sweep has not
	// run yet and the session must still be rejected.
	assert.False(t, env.sessions.IsValid("raw-token"))

	n, err := env.sessions.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSessionRegistry_RevokeOne(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.sessions.Save(1, "raw-token", ClientMeta{}))
	require.NoError(t, env.sessions.RevokeOne("raw-token"))

	assert.False(t, env.sessions.IsValid("raw-token"))
}

func TestSessionRegistry_RevokeAllExceptKeepsCaller(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.sessions.Save(1, "phone", ClientMeta{}))
	require.NoError(t, env.sessions.Save(1, "laptop", ClientMeta{}))
	require.NoError(t, env.sessions.Save(1, "tablet", ClientMeta{}))
	require.NoError(t, env.sessions.Save(2, "other-user", ClientMeta{}))

	revoked, err := env.sessions.RevokeAllExcept(1, "laptop")
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)

	assert.True(t, env.sessions.IsValid("laptop"), "caller's own session survives")
	assert.False(t, env.sessions.IsValid("phone"))
	assert.False(t, env.sessions.IsValid("tablet"))
	assert.True(t, env.sessions.IsValid("other-user"), "other users untouched")
}
