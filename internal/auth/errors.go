package auth

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrEmailTaken             = errors.New("email already registered")
	ErrInvalidCode            = errors.New("code invalid or expired")
	ErrAccountPending         = errors.New("account pending verification")
	ErrAccountSuspended       = errors.New("account inactive or suspended")
	ErrTokenExpired           = errors.New("token expired")
	ErrTokenInvalid           = errors.New("token invalid")
	ErrSessionRevoked         = errors.New("session no longer valid")
	ErrSamePassword           = errors.New("new password matches the current one")
	ErrTwoFactorMisconfigured = errors.New("two-factor method not recognized")
	ErrTwoFactorNotEnabled    = errors.New("two-factor method not enabled")
)

// LockedError reports an active lockout window. MinutesRemaining is the
// time left; when the rejection is the one that created the lock,
// MinutesBlocked carries the full window length.
type LockedError struct {
	MinutesRemaining int
	MinutesBlocked   int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked for another %d minute(s)", e.MinutesRemaining)
}

// InvalidPasswordError carries how many attempts are left before the
// account locks.
type InvalidPasswordError struct {
	AttemptsRemaining int
}

func (e *InvalidPasswordError) Error() string {
	return "incorrect password"
}
