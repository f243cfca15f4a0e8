package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const recoveryCodeTTL = 15 * time.Minute

// RecoveryAck is what a recovery request reports back to the caller. It
// carries nothing but the masked address: the ack for a registered email
// and an unregistered one must be indistinguishable, so the remaining
// attempt budget stays server-side.
type RecoveryAck struct {
	MaskedEmail string
}

// RequestRecovery issues a password-reset code. Every request consumes
// one attempt from the recovery lockout budget whether or not the email
// is delivered; repeated requests escalate into timed locks.
//
// An unknown address gets the same generic acknowledgement as a known
// one, with zero bookkeeping, so the endpoint cannot be used to probe
// which emails have accounts.
func (s *Service) RequestRecovery(ctx context.Context, email string) (*RecoveryAck, error) {
	user, err := s.repository.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return &RecoveryAck{MaskedEmail: MaskEmail(NormalizeEmail(email))}, nil
		}
		return nil, err
	}

	now := time.Now()
	lockout := user.RecoveryLockout()

	check := recoveryLockoutPolicy.Check(&lockout, now)
	if !check.Allowed {
		return nil, &LockedError{MinutesRemaining: check.MinutesRemaining}
	}
	if check.Cleared {
		s.log.Info("recovery lockout expired, cleared lazily", zap.Uint("user_id", user.ID))
	}

	result := recoveryLockoutPolicy.RecordFailure(&lockout, now)
	user.SetRecoveryLockout(lockout)
	if err := s.saveRecoveryLockout(ctx, user.ID, lockout); err != nil {
		return nil, err
	}

	if result.Locked {
		s.log.Warn("recovery requests locked",
			zap.Uint("user_id", user.ID),
			zap.Duration("duration", result.LockDuration),
			zap.Int("total_lockouts", lockout.TotalLockouts))
		return nil, &LockedError{MinutesBlocked: int(result.LockDuration.Minutes())}
	}

	if err := s.repository.InvalidateRecoveryCodes(user.ID); err != nil {
		return nil, err
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}
	err = s.repository.CreateRecoveryCode(&RecoveryCode{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: now.Add(recoveryCodeTTL),
	})
	if err != nil {
		return nil, err
	}

	// The attempt is already booked; a delivery failure is logged but the
	// caller still gets the generic acknowledgement.
	if err := s.mail.SendRecoveryCode(ctx, user.Email, user.Name, code); err != nil {
		s.log.Error("recovery email failed",
			zap.String("email", MaskEmail(user.Email)),
			zap.Error(err))
	}

	s.log.Info("recovery code issued",
		zap.Uint("user_id", user.ID),
		zap.Int("attempts_remaining", result.AttemptsRemaining))

	return &RecoveryAck{MaskedEmail: MaskEmail(user.Email)}, nil
}

// ValidateRecoveryCode is the read-only pre-check a client runs before
// showing the new-password form. It does not burn the code.
func (s *Service) ValidateRecoveryCode(ctx context.Context, email, code string) error {
	user, err := s.repository.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidCode
		}
		return err
	}

	_, err = s.repository.ActiveRecoveryCode(user.ID, code, time.Now())
	return err
}

// ResetPassword exchanges a valid recovery code for a new password. The
// whole exchange runs in one transaction: the code is re-validated
// inside it, so two concurrent resets with the same code cannot both
// succeed. A reset also clears both lockout scopes; the owner proving
// mailbox control is the recovery path out of a locked account.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	user, err := s.repository.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidCode
		}
		return err
	}

	if s.CheckPasswordHash(newPassword, user.PasswordHash) {
		return ErrSamePassword
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	err = s.repository.Transact(func(tx Repository) error {
		stored, err := tx.ActiveRecoveryCode(user.ID, code, time.Now())
		if err != nil {
			return err
		}
		if err := tx.UpdatePassword(user.ID, hash); err != nil {
			return err
		}
		if err := tx.MarkRecoveryCodeUsed(stored.ID); err != nil {
			return err
		}
		if err := tx.InvalidateRecoveryCodes(user.ID); err != nil {
			return err
		}
		return tx.ClearLockouts(user.ID)
	})
	if err != nil {
		return err
	}

	s.log.Info("password reset", zap.Uint("user_id", user.ID))
	return nil
}

// CleanupSpentRecoveryCodes purges used and expired codes. Called from
// the periodic sweep alongside the session purge.
func (s *Service) CleanupSpentRecoveryCodes() (int64, error) {
	return s.repository.DeleteSpentRecoveryCodes(time.Now())
}
