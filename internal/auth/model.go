package auth

import (
	"time"
)

type UserStatus string

const (
	StatusPending   UserStatus = "pending"
	StatusActive    UserStatus = "active"
	StatusSuspended UserStatus = "suspended"
)

type TwoFactorMethod string

const (
	TwoFactorNone     TwoFactorMethod = "none"
	TwoFactorTOTP     TwoFactorMethod = "totp"
	TwoFactorEmailOTP TwoFactorMethod = "email_otp"
)

type User struct {
	ID           uint       `gorm:"primaryKey"`
	Name         string     `gorm:"not null"`
	Email        string     `gorm:"uniqueIndex;not null"`
	PasswordHash string     `gorm:"not null"`
	Status       UserStatus `gorm:"type:varchar(16);not null;default:pending"`

	// Login lockout counters. Managed exclusively through the lockout
	// policy engine; TotalLockouts only ever grows.
	FailedLoginCount int `gorm:"not null;default:0"`
	LockedUntil      *time.Time
	TotalLockouts    int `gorm:"not null;default:0"`
	LastFailedLogin  *time.Time

	// Recovery lockout counters, independent from the login set.
	RecoveryAttempts      int `gorm:"not null;default:0"`
	RecoveryLockedUntil   *time.Time
	TotalRecoveryLockouts int `gorm:"not null;default:0"`
	LastRecoveryAttempt   *time.Time

	TwoFactorMethod TwoFactorMethod `gorm:"type:varchar(16);not null;default:none"`
	TOTPSecret      string
	TOTPConfirmed   bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}

// LoginLockout returns the login-scoped counter set for the lockout engine.
func (u *User) LoginLockout() LockoutState {
	return LockoutState{
		FailedCount:   u.FailedLoginCount,
		LockedUntil:   u.LockedUntil,
		TotalLockouts: u.TotalLockouts,
		LastFailure:   u.LastFailedLogin,
	}
}

func (u *User) SetLoginLockout(s LockoutState) {
	u.FailedLoginCount = s.FailedCount
	u.LockedUntil = s.LockedUntil
	u.TotalLockouts = s.TotalLockouts
	u.LastFailedLogin = s.LastFailure
}

// RecoveryLockout returns the recovery-scoped counter set.
func (u *User) RecoveryLockout() LockoutState {
	return LockoutState{
		FailedCount:   u.RecoveryAttempts,
		LockedUntil:   u.RecoveryLockedUntil,
		TotalLockouts: u.TotalRecoveryLockouts,
		LastFailure:   u.LastRecoveryAttempt,
	}
}

func (u *User) SetRecoveryLockout(s LockoutState) {
	u.RecoveryAttempts = s.FailedCount
	u.RecoveryLockedUntil = s.LockedUntil
	u.TotalRecoveryLockouts = s.TotalLockouts
	u.LastRecoveryAttempt = s.LastFailure
}

// Session is one whitelisted bearer token. Only the fingerprint of the
// raw token is ever stored.
type Session struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index;not null"`
	TokenHash string `gorm:"uniqueIndex;not null"`
	IPAddress string
	UserAgent string
	Active    bool      `gorm:"not null;default:true"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

func (Session) TableName() string {
	return "sessions"
}

// RecoveryCode is a single-use password-reset code.
type RecoveryCode struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Code      string    `gorm:"not null"`
	Used      bool      `gorm:"not null;default:false"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}

func (RecoveryCode) TableName() string {
	return "recovery_codes"
}

type CodePurpose string

const (
	PurposeRegistration CodePurpose = "registration"
	PurposeLogin2FA     CodePurpose = "login_2fa"
)

// VerificationCode backs both account verification and the emailed
// second factor. At most one unresolved code exists per user and
// purpose; issuing a new one invalidates the rest.
type VerificationCode struct {
	ID        uint        `gorm:"primaryKey"`
	UserID    uint        `gorm:"index;not null"`
	Purpose   CodePurpose `gorm:"type:varchar(16);not null"`
	Code      string      `gorm:"not null"`
	Used      bool        `gorm:"not null;default:false"`
	ExpiresAt time.Time   `gorm:"not null"`
	CreatedAt time.Time
}

func (VerificationCode) TableName() string {
	return "verification_codes"
}

// LoginAudit records every login attempt, including ones rejected
// during a lockout window. Writes are best effort.
type LoginAudit struct {
	ID        uint  `gorm:"primaryKey"`
	UserID    *uint `gorm:"index"`
	Email     string
	Outcome   string `gorm:"type:varchar(16);not null"`
	Reason    string
	CreatedAt time.Time
}

func (LoginAudit) TableName() string {
	return "login_audit"
}
