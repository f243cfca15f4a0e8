package auth

import (
	"sync"
	"time"
)

type mockRepository struct {
	mu sync.RWMutex

	users    map[uint]*User
	byEmail  map[string]uint
	nextUser uint
	verCodes map[uint]*VerificationCode
	nextVer  uint
	recCodes map[uint]*RecoveryCode
	nextRec  uint
	sessions map[string]*Session
	nextSess uint
	audit    []*LoginAudit
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:    make(map[uint]*User),
		byEmail:  make(map[string]uint),
		verCodes: make(map[uint]*VerificationCode),
		recCodes: make(map[uint]*RecoveryCode),
		sessions: make(map[string]*Session),
	}
}

func cloneUser(u *User) *User {
	c := *u
	return &c
}

func (r *mockRepository) CreateUser(user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return ErrEmailTaken
	}
	r.nextUser++
	user.ID = r.nextUser
	r.users[user.ID] = cloneUser(user)
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *mockRepository) DeleteUser(userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		delete(r.byEmail, u.Email)
		delete(r.users, userID)
	}
	return nil
}

func (r *mockRepository) GetUserByEmail(email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(r.users[id]), nil
}

func (r *mockRepository) GetUserByID(id uint) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *mockRepository) UpdatePassword(userID uint, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (r *mockRepository) ActivateUser(userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.Status = StatusActive
	}
	return nil
}

func (r *mockRepository) SaveLoginLockout(userID uint, state LockoutState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.SetLoginLockout(state)
	}
	return nil
}

func (r *mockRepository) SaveRecoveryLockout(userID uint, state LockoutState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.SetRecoveryLockout(state)
	}
	return nil
}

func (r *mockRepository) ClearLockouts(userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.FailedLoginCount = 0
		u.LockedUntil = nil
		u.LastFailedLogin = nil
		u.RecoveryAttempts = 0
		u.RecoveryLockedUntil = nil
		u.LastRecoveryAttempt = nil
	}
	return nil
}

func (r *mockRepository) SetTwoFactor(userID uint, method TwoFactorMethod, secret string, confirmed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.TwoFactorMethod = method
		u.TOTPSecret = secret
		u.TOTPConfirmed = confirmed
	}
	return nil
}

func (r *mockRepository) ConfirmTOTP(userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.TOTPConfirmed = true
	}
	return nil
}

func (r *mockRepository) CreateVerificationCode(code *VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextVer++
	code.ID = r.nextVer
	code.CreatedAt = time.Now()
	c := *code
	r.verCodes[code.ID] = &c
	return nil
}

func (r *mockRepository) ActiveVerificationCode(userID uint, purpose CodePurpose, now time.Time) (*VerificationCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *VerificationCode
	for _, c := range r.verCodes {
		if c.UserID != userID || c.Purpose != purpose || c.Used || !c.ExpiresAt.After(now) {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) || c.ID > latest.ID {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrInvalidCode
	}
	c := *latest
	return &c, nil
}

func (r *mockRepository) InvalidateVerificationCodes(userID uint, purpose CodePurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.verCodes {
		if c.UserID == userID && c.Purpose == purpose && !c.Used {
			c.Used = true
		}
	}
	return nil
}

func (r *mockRepository) MarkVerificationCodeUsed(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.verCodes[id]; ok {
		c.Used = true
	}
	return nil
}

func (r *mockRepository) CreateRecoveryCode(code *RecoveryCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextRec++
	code.ID = r.nextRec
	code.CreatedAt = time.Now()
	c := *code
	r.recCodes[code.ID] = &c
	return nil
}

func (r *mockRepository) ActiveRecoveryCode(userID uint, code string, now time.Time) (*RecoveryCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.recCodes {
		if c.UserID == userID && c.Code == code && !c.Used && c.ExpiresAt.After(now) {
			cc := *c
			return &cc, nil
		}
	}
	return nil, ErrInvalidCode
}

func (r *mockRepository) InvalidateRecoveryCodes(userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.recCodes {
		if c.UserID == userID && !c.Used {
			c.Used = true
		}
	}
	return nil
}

func (r *mockRepository) MarkRecoveryCodeUsed(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.recCodes[id]; ok {
		c.Used = true
	}
	return nil
}

func (r *mockRepository) DeleteSpentRecoveryCodes(now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, c := range r.recCodes {
		if c.Used || !c.ExpiresAt.After(now) {
			delete(r.recCodes, id)
			n++
		}
	}
	return n, nil
}

func (r *mockRepository) CreateSession(session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSess++
	session.ID = r.nextSess
	session.CreatedAt = time.Now()
	s := *session
	r.sessions[session.TokenHash] = &s
	return nil
}

func (r *mockRepository) GetSessionByFingerprint(hash string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[hash]
	if !ok {
		return nil, ErrSessionRevoked
	}
	ss := *s
	return &ss, nil
}

func (r *mockRepository) DeleteSession(hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, hash)
	return nil
}

func (r *mockRepository) DeleteOtherSessions(userID uint, keepHash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, s := range r.sessions {
		if s.UserID == userID && hash != keepHash {
			delete(r.sessions, hash)
			n++
		}
	}
	return n, nil
}

func (r *mockRepository) DeleteExpiredSessions(now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, s := range r.sessions {
		if !s.ExpiresAt.After(now) {
			delete(r.sessions, hash)
			n++
		}
	}
	return n, nil
}

func (r *mockRepository) RecordLoginEvent(event *LoginAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event.ID = uint(len(r.audit) + 1)
	event.CreatedAt = time.Now()
	r.audit = append(r.audit, event)
	return nil
}

// Transact runs fn against the same store. The mock gives no rollback;
// tests that need transactional behavior assert on the end state only.
func (r *mockRepository) Transact(fn func(Repository) error) error {
	return fn(r)
}
