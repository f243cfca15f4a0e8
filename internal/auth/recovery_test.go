package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRecovery_UnknownEmailGetsGenericAck(t *testing.T) {
	env := newTestEnv(t)

	ack, err := env.service.RequestRecovery(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, ack.MaskedEmail)
	assert.NotContains(t, ack.MaskedEmail, "ghost@example.com")

	// No code was issued and nothing was mailed.
	assert.Empty(t, env.mail.recoveryCode("ghost@example.com"))
}

func TestRequestRecovery_IssuesCodeAndCountsAttempt(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")

	ack, err := env.service.RequestRecovery(context.Background(), user.Email)
	require.NoError(t, err)
	assert.NotEmpty(t, ack.MaskedEmail)
	assert.NotEmpty(t, env.mail.recoveryCode(user.Email))

	stored, err := env.repo.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RecoveryAttempts)
}

func TestRequestRecovery_AckIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	// Both addresses mask to the same string, so the acks must come back
	// identical even though only one account exists.
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")
	ctx := context.Background()

	known, err := env.service.RequestRecovery(ctx, user.Email)
	require.NoError(t, err)
	ghost, err := env.service.RequestRecovery(ctx, "arrest@example.com")
	require.NoError(t, err)

	assert.Equal(t, *known, *ghost)
}

func TestRequestRecovery_FourthRequestLocks(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.service.RequestRecovery(ctx, user.Email)
		require.NoError(t, err, "request %d within budget", i+1)
	}

	_, err := env.service.RequestRecovery(ctx, user.Email)
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 15, locked.MinutesBlocked)

	// While the lock stands further requests report time remaining.
	_, err = env.service.RequestRecovery(ctx, user.Email)
	require.ErrorAs(t, err, &locked)
	assert.Positive(t, locked.MinutesRemaining)
}

func TestValidateRecoveryCode(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")
	ctx := context.Background()

	_, err := env.service.RequestRecovery(ctx, user.Email)
	require.NoError(t, err)
	code := env.mail.recoveryCode(user.Email)

	// Validation is read-only: it can run twice.
	assert.NoError(t, env.service.ValidateRecoveryCode(ctx, user.Email, code))
	assert.NoError(t, env.service.ValidateRecoveryCode(ctx, user.Email, code))

	assert.ErrorIs(t, env.service.ValidateRecoveryCode(ctx, user.Email, "999999x"), ErrInvalidCode)
	assert.ErrorIs(t, env.service.ValidateRecoveryCode(ctx, "ghost@example.com", code), ErrInvalidCode)
}

func TestResetPassword_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")
	ctx := context.Background()

	_, err := env.service.RequestRecovery(ctx, user.Email)
	require.NoError(t, err)
	code := env.mail.recoveryCode(user.Email)

	require.NoError(t, env.service.ResetPassword(ctx, user.Email, code, "brand-new-pass-1"))

	stored, err := env.repo.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.True(t, env.service.CheckPasswordHash("brand-new-pass-1", stored.PasswordHash))
	assert.False(t, env.service.CheckPasswordHash("correct-horse-9", stored.PasswordHash))

	// The code is burned.
	err = env.service.ResetPassword(ctx, user.Email, code, "yet-another-pass-2")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestResetPassword_RejectsSamePassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")
	ctx := context.Background()

	_, err := env.service.RequestRecovery(ctx, user.Email)
	require.NoError(t, err)
	code := env.mail.recoveryCode(user.Email)

	err = env.service.ResetPassword(ctx, user.Email, code, "correct-horse-9")
	assert.ErrorIs(t, err, ErrSamePassword)

	// The rejection did not burn the code.
	assert.NoError(t, env.service.ValidateRecoveryCode(ctx, user.Email, code))
}

func TestResetPassword_ClearsBothLockoutScopes(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")
	ctx := context.Background()

	// Rack up login failures until locked.
	for i := 0; i < 3; i++ {
		_, err := env.service.Login(ctx, user.Email, "wrong-password", ClientMeta{})
		require.Error(t, err)
	}
	stored, err := env.repo.GetUserByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LockedUntil)

	_, err = env.service.RequestRecovery(ctx, user.Email)
	require.NoError(t, err)
	code := env.mail.recoveryCode(user.Email)

	require.NoError(t, env.service.ResetPassword(ctx, user.Email, code, "brand-new-pass-1"))

	stored, err = env.repo.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LockedUntil)
	assert.Equal(t, 0, stored.FailedLoginCount)
	assert.Equal(t, 0, stored.RecoveryAttempts)
	assert.Nil(t, stored.RecoveryLockedUntil)

	// And the new password signs in immediately.
	result, err := env.service.Login(ctx, user.Email, "brand-new-pass-1", ClientMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestResetPassword_ExpiredCodeRejected(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")
	ctx := context.Background()

	require.NoError(t, env.repo.CreateRecoveryCode(&RecoveryCode{
		UserID:    user.ID,
		Code:      "424242",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	err := env.service.ResetPassword(ctx, user.Email, "424242", "brand-new-pass-1")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestCleanupSpentRecoveryCodes(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")

	require.NoError(t, env.repo.CreateRecoveryCode(&RecoveryCode{
		UserID: user.ID, Code: "111111", Used: true,
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, env.repo.CreateRecoveryCode(&RecoveryCode{
		UserID: user.ID, Code: "222222",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, env.repo.CreateRecoveryCode(&RecoveryCode{
		UserID: user.ID, Code: "333333",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	n, err := env.service.CleanupSpentRecoveryCodes()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
