package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode_SixDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
	}
}

func TestVerifyTOTP_AcceptsWithinSkew(t *testing.T) {
	enrollment, err := generateTOTPSecret("user@example.com")
	require.NoError(t, err)

	now := time.Now()
	code, err := totp.GenerateCode(enrollment.Secret, now)
	require.NoError(t, err)

	assert.True(t, verifyTOTP(code, enrollment.Secret, now))

	// Two steps of drift are tolerated.
	drifted := now.Add(-2 * totpPeriod * time.Second)
	driftedCode, err := totp.GenerateCode(enrollment.Secret, drifted)
	require.NoError(t, err)
	assert.True(t, verifyTOTP(driftedCode, enrollment.Secret, now))
}

func TestVerifyTOTP_RejectsStaleCode(t *testing.T) {
	enrollment, err := generateTOTPSecret("user@example.com")
	require.NoError(t, err)

	now := time.Now()
	stale := now.Add(-5 * totpPeriod * time.Second)
	staleCode, err := totp.GenerateCode(enrollment.Secret, stale)
	require.NoError(t, err)

	assert.False(t, verifyTOTP(staleCode, enrollment.Secret, now))
	assert.False(t, verifyTOTP("000000", enrollment.Secret, now))
}

func TestSetupAndConfirmTOTP(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")
	ctx := context.Background()

	enrollment, err := env.service.SetupTOTP(ctx, user.Email)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.URL, "otpauth://")

	stored, err := env.repo.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, TwoFactorTOTP, stored.TwoFactorMethod)
	assert.False(t, stored.TOTPConfirmed, "unconfirmed until possession is proven")

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.service.ConfirmTOTP(ctx, user.Email, code))

	stored, err = env.repo.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.True(t, stored.TOTPConfirmed)
}

func TestConfirmTOTP_RejectsBadCode(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")
	ctx := context.Background()

	_, err := env.service.SetupTOTP(ctx, user.Email)
	require.NoError(t, err)

	err = env.service.ConfirmTOTP(ctx, user.Email, "123456")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestConfirmTOTP_WithoutSetup(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")

	err := env.service.ConfirmTOTP(context.Background(), user.Email, "123456")
	assert.ErrorIs(t, err, ErrTwoFactorNotEnabled)
}

func TestEmailTwoFactor_RequestAndConfirm(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")
	ctx := context.Background()

	require.NoError(t, env.service.RequestEmailTwoFactor(ctx, user.Email))
	code := env.mail.loginCode(user.Email)
	require.NotEmpty(t, code)

	require.NoError(t, env.service.ConfirmEmailTwoFactor(ctx, user.Email, code))

	stored, err := env.repo.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, TwoFactorEmailOTP, stored.TwoFactorMethod)
}

func TestEmailTwoFactor_SendFailureInvalidatesCode(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")
	ctx := context.Background()

	env.mail.failNext = errSendFailed
	err := env.service.RequestEmailTwoFactor(ctx, user.Email)
	require.Error(t, err)

	// No code must remain redeemable after a failed send.
	_, err = env.repo.ActiveVerificationCode(user.ID, PurposeLogin2FA, time.Now())
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerificationCode_SingleUse(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")
	ctx := context.Background()

	require.NoError(t, env.service.RequestEmailTwoFactor(ctx, user.Email))
	code := env.mail.loginCode(user.Email)

	require.NoError(t, env.service.ConfirmEmailTwoFactor(ctx, user.Email, code))

	// Replay is rejected.
	err := env.service.ConfirmEmailTwoFactor(ctx, user.Email, code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerificationCode_NewIssueInvalidatesPrior(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedActiveUser(t, "artist@example.com", "correct-horse-9")
	ctx := context.Background()

	require.NoError(t, env.service.RequestEmailTwoFactor(ctx, user.Email))
	first := env.mail.loginCode(user.Email)

	require.NoError(t, env.service.RequestEmailTwoFactor(ctx, user.Email))
	second := env.mail.loginCode(user.Email)

	if first != second {
		err := env.service.ConfirmEmailTwoFactor(ctx, user.Email, first)
		assert.ErrorIs(t, err, ErrInvalidCode, "older code must be dead")
	}
	assert.NoError(t, env.service.ConfirmEmailTwoFactor(ctx, user.Email, second))
}
