package auth

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repository is the storage boundary for the authentication core. One
// business-logic layer sits on top of it; the SQL dialect is an adapter
// detail behind this interface.
type Repository interface {
	CreateUser(user *User) error
	DeleteUser(userID uint) error
	GetUserByEmail(email string) (*User, error)
	GetUserByID(id uint) (*User, error)
	UpdatePassword(userID uint, hash string) error
	ActivateUser(userID uint) error
	SaveLoginLockout(userID uint, state LockoutState) error
	SaveRecoveryLockout(userID uint, state LockoutState) error
	ClearLockouts(userID uint) error
	SetTwoFactor(userID uint, method TwoFactorMethod, secret string, confirmed bool) error
	ConfirmTOTP(userID uint) error

	CreateVerificationCode(code *VerificationCode) error
	ActiveVerificationCode(userID uint, purpose CodePurpose, now time.Time) (*VerificationCode, error)
	InvalidateVerificationCodes(userID uint, purpose CodePurpose) error
	MarkVerificationCodeUsed(id uint) error

	CreateRecoveryCode(code *RecoveryCode) error
	ActiveRecoveryCode(userID uint, code string, now time.Time) (*RecoveryCode, error)
	InvalidateRecoveryCodes(userID uint) error
	MarkRecoveryCodeUsed(id uint) error
	DeleteSpentRecoveryCodes(now time.Time) (int64, error)

	CreateSession(session *Session) error
	GetSessionByFingerprint(hash string) (*Session, error)
	DeleteSession(hash string) error
	DeleteOtherSessions(userID uint, keepHash string) (int64, error)
	DeleteExpiredSessions(now time.Time) (int64, error)

	RecordLoginEvent(event *LoginAudit) error

	// Transact runs fn inside one database transaction; any error rolls
	// back every write made through the repository fn receives.
	Transact(fn func(Repository) error) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateUser(user *User) error {
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *repository) DeleteUser(userID uint) error {
	return r.db.Delete(&User{}, userID).Error
}

func (r *repository) GetUserByEmail(email string) (*User, error) {
	var user User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) GetUserByID(id uint) (*User, error) {
	var user User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) UpdatePassword(userID uint, hash string) error {
	return r.db.Model(&User{}).Where("id = ?", userID).
		Update("password_hash", hash).Error
}

func (r *repository) ActivateUser(userID uint) error {
	return r.db.Model(&User{}).Where("id = ?", userID).
		Update("status", StatusActive).Error
}

func (r *repository) SaveLoginLockout(userID uint, state LockoutState) error {
	return r.db.Model(&User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"failed_login_count": state.FailedCount,
		"locked_until":       state.LockedUntil,
		"total_lockouts":     state.TotalLockouts,
		"last_failed_login":  state.LastFailure,
	}).Error
}

func (r *repository) SaveRecoveryLockout(userID uint, state LockoutState) error {
	return r.db.Model(&User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"recovery_attempts":       state.FailedCount,
		"recovery_locked_until":   state.LockedUntil,
		"total_recovery_lockouts": state.TotalLockouts,
		"last_recovery_attempt":   state.LastFailure,
	}).Error
}

// ClearLockouts resets the failure counters and active locks for both
// flows. Lockout totals are kept; escalation history is permanent.
func (r *repository) ClearLockouts(userID uint) error {
	return r.db.Model(&User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"failed_login_count":    0,
		"locked_until":          nil,
		"last_failed_login":     nil,
		"recovery_attempts":     0,
		"recovery_locked_until": nil,
		"last_recovery_attempt": nil,
	}).Error
}

func (r *repository) SetTwoFactor(userID uint, method TwoFactorMethod, secret string, confirmed bool) error {
	return r.db.Model(&User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"two_factor_method": method,
		"totp_secret":       secret,
		"totp_confirmed":    confirmed,
	}).Error
}

func (r *repository) ConfirmTOTP(userID uint) error {
	return r.db.Model(&User{}).Where("id = ?", userID).
		Update("totp_confirmed", true).Error
}

func (r *repository) CreateVerificationCode(code *VerificationCode) error {
	return r.db.Create(code).Error
}

func (r *repository) ActiveVerificationCode(userID uint, purpose CodePurpose, now time.Time) (*VerificationCode, error) {
	var code VerificationCode
	err := r.db.
		Where("user_id = ? AND purpose = ? AND used = false AND expires_at > ?", userID, purpose, now).
		Order("created_at DESC").
		First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	return &code, nil
}

func (r *repository) InvalidateVerificationCodes(userID uint, purpose CodePurpose) error {
	return r.db.Model(&VerificationCode{}).
		Where("user_id = ? AND purpose = ? AND used = false", userID, purpose).
		Update("used", true).Error
}

func (r *repository) MarkVerificationCodeUsed(id uint) error {
	return r.db.Model(&VerificationCode{}).Where("id = ?", id).
		Update("used", true).Error
}

func (r *repository) CreateRecoveryCode(code *RecoveryCode) error {
	return r.db.Create(code).Error
}

func (r *repository) ActiveRecoveryCode(userID uint, code string, now time.Time) (*RecoveryCode, error) {
	var rec RecoveryCode
	err := r.db.
		Where("user_id = ? AND code = ? AND used = false AND expires_at > ?", userID, code, now).
		Order("created_at DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) InvalidateRecoveryCodes(userID uint) error {
	return r.db.Model(&RecoveryCode{}).
		Where("user_id = ? AND used = false", userID).
		Update("used", true).Error
}

func (r *repository) MarkRecoveryCodeUsed(id uint) error {
	return r.db.Model(&RecoveryCode{}).Where("id = ?", id).
		Update("used", true).Error
}

func (r *repository) DeleteSpentRecoveryCodes(now time.Time) (int64, error) {
	res := r.db.Where("expires_at < ? OR used = true", now).Delete(&RecoveryCode{})
	return res.RowsAffected, res.Error
}

func (r *repository) CreateSession(session *Session) error {
	return r.db.Create(session).Error
}

func (r *repository) GetSessionByFingerprint(hash string) (*Session, error) {
	var session Session
	if err := r.db.Where("token_hash = ?", hash).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) DeleteSession(hash string) error {
	return r.db.Where("token_hash = ?", hash).Delete(&Session{}).Error
}

func (r *repository) DeleteOtherSessions(userID uint, keepHash string) (int64, error) {
	res := r.db.Where("user_id = ? AND token_hash <> ?", userID, keepHash).Delete(&Session{})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteExpiredSessions(now time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", now).Delete(&Session{})
	return res.RowsAffected, res.Error
}

func (r *repository) RecordLoginEvent(event *LoginAudit) error {
	return r.db.Create(event).Error
}

func (r *repository) Transact(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}
