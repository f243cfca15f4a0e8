package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

const (
	totpSecretSize = 32
	totpPeriod     = 30

	// totpSkew accepts codes within ±2 time steps to absorb clock
	// drift. A code can therefore be replayed inside that window;
	// consumed steps are not tracked. Known limitation.
	totpSkew = 2

	emailCodeTTL     = 10 * time.Minute
	verificationTTL  = 24 * time.Hour
	otpAccountIssuer = "NU-B Studio"
)

// GenerateCode returns a 6-digit numeric one-time code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// TOTPEnrollment is handed to the client exactly once, at setup time.
// The secret is never exposed again afterwards.
type TOTPEnrollment struct {
	Secret string
	URL    string
}

func generateTOTPSecret(email string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      otpAccountIssuer,
		AccountName: email,
		SecretSize:  totpSecretSize,
	})
	if err != nil {
		return nil, fmt.Errorf("generating totp secret: %w", err)
	}
	return &TOTPEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

func verifyTOTP(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// SetupTOTP generates a fresh secret for the user and stores it
// unconfirmed. The method only becomes the active second factor once
// the user proves possession via ConfirmTOTP.
func (s *Service) SetupTOTP(ctx context.Context, email string) (*TOTPEnrollment, error) {
	user, err := s.repository.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		return nil, err
	}

	enrollment, err := generateTOTPSecret(user.Email)
	if err != nil {
		return nil, err
	}

	if err := s.repository.SetTwoFactor(user.ID, TwoFactorTOTP, enrollment.Secret, false); err != nil {
		return nil, err
	}

	s.log.Info("totp secret generated", zap.Uint("user_id", user.ID))
	return enrollment, nil
}

// ConfirmTOTP validates a code against the pending secret and activates
// TOTP as the user's second factor.
func (s *Service) ConfirmTOTP(ctx context.Context, email, code string) error {
	user, err := s.repository.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user.TOTPSecret == "" {
		return ErrTwoFactorNotEnabled
	}
	if !verifyTOTP(code, user.TOTPSecret, time.Now()) {
		s.log.Warn("totp confirmation failed", zap.Uint("user_id", user.ID))
		return ErrInvalidCode
	}
	if err := s.repository.ConfirmTOTP(user.ID); err != nil {
		return err
	}
	s.log.Info("totp activated", zap.Uint("user_id", user.ID))
	return nil
}

// ValidateTOTP is a read-only pre-check used by clients during login.
// It only needs the secret; confirmation state is the login path's
// concern.
func (s *Service) ValidateTOTP(ctx context.Context, email, code string) (bool, error) {
	user, err := s.repository.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		return false, err
	}
	if user.TOTPSecret == "" {
		return false, ErrTwoFactorNotEnabled
	}
	return verifyTOTP(code, user.TOTPSecret, time.Now()), nil
}

// RequestEmailTwoFactor sends a code proving mailbox ownership before
// the emailed second factor can be enabled. Delivery is awaited; a
// failed send invalidates the stored code so no orphan remains usable.
func (s *Service) RequestEmailTwoFactor(ctx context.Context, email string) error {
	user, err := s.repository.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		return err
	}

	code, err := s.issueVerificationCode(user.ID, PurposeLogin2FA, emailCodeTTL)
	if err != nil {
		return err
	}

	if err := s.mail.SendLoginCode(ctx, user.Email, code); err != nil {
		if invErr := s.repository.InvalidateVerificationCodes(user.ID, PurposeLogin2FA); invErr != nil {
			s.log.Error("failed to invalidate undelivered code", zap.Error(invErr))
		}
		return fmt.Errorf("sending two-factor code: %w", err)
	}

	s.log.Info("email 2fa code sent", zap.String("email", MaskEmail(user.Email)))
	return nil
}

// ConfirmEmailTwoFactor consumes the proof code and switches the user's
// second factor to the emailed one-time code.
func (s *Service) ConfirmEmailTwoFactor(ctx context.Context, email, code string) error {
	user, err := s.repository.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		return err
	}

	if err := s.consumeVerificationCode(user.ID, PurposeLogin2FA, code); err != nil {
		return err
	}
	if err := s.repository.SetTwoFactor(user.ID, TwoFactorEmailOTP, "", true); err != nil {
		return err
	}

	s.log.Info("email 2fa activated", zap.Uint("user_id", user.ID))
	return nil
}

// issueVerificationCode invalidates prior unresolved codes for the
// purpose and persists a fresh one, keeping the one-unresolved-code
// invariant.
func (s *Service) issueVerificationCode(userID uint, purpose CodePurpose, ttl time.Duration) (string, error) {
	if err := s.repository.InvalidateVerificationCodes(userID, purpose); err != nil {
		return "", err
	}

	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	err = s.repository.CreateVerificationCode(&VerificationCode{
		UserID:    userID,
		Purpose:   purpose,
		Code:      code,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// consumeVerificationCode enforces exact match, not expired, not
// already used — and burns the code on success.
func (s *Service) consumeVerificationCode(userID uint, purpose CodePurpose, code string) error {
	stored, err := s.repository.ActiveVerificationCode(userID, purpose, time.Now())
	if err != nil {
		return ErrInvalidCode
	}
	if stored.Code != code {
		return ErrInvalidCode
	}
	return s.repository.MarkVerificationCodeUsed(stored.ID)
}
