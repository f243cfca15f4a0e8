package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nubstudio/galeria-backend/internal/config"
	"github.com/nubstudio/galeria-backend/internal/mailer"
)

const bcryptCost = 12

type Service struct {
	config     *config.AuthConfig
	log        *zap.Logger
	repository Repository
	tokens     *TokenIssuer
	sessions   *SessionRegistry
	mail       mailer.Sender
}

func NewService(
	cfg *config.AuthConfig,
	log *zap.Logger,
	repo Repository,
	tokens *TokenIssuer,
	sessions *SessionRegistry,
	mail mailer.Sender,
) *Service {
	return &Service{
		config:     cfg,
		log:        log,
		repository: repo,
		tokens:     tokens,
		sessions:   sessions,
		mail:       mail,
	}
}

// NormalizeEmail is the canonical form under which addresses are stored
// and compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MaskEmail hides most of an address for logs and user-facing acks.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***@***"
	}

	maskedLocal := "***"
	if len(local) > 4 {
		maskedLocal = local[:2] + "***" + local[len(local)-2:]
	}

	maskedDomain := "***"
	if head, rest, found := strings.Cut(domain, "."); found && head != "" {
		maskedDomain = head[:1] + "***." + rest
	}

	return maskedLocal + "@" + maskedDomain
}

func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

func (s *Service) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Register creates a pending user and dispatches the verification code.
// The code email is awaited: if delivery fails the freshly inserted user
// is deleted again (compensating delete, the insert already committed).
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, error) {
	email = NormalizeEmail(email)

	if _, err := s.repository.GetUserByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Name:            name,
		Email:           email,
		PasswordHash:    hash,
		Status:          StatusPending,
		TwoFactorMethod: TwoFactorNone,
	}
	if err := s.repository.CreateUser(user); err != nil {
		return nil, err
	}

	code, err := s.issueVerificationCode(user.ID, PurposeRegistration, verificationTTL)
	if err != nil {
		s.rollbackRegistration(user.ID)
		return nil, err
	}

	if err := s.mail.SendVerificationCode(ctx, user.Email, user.Name, code); err != nil {
		s.log.Error("verification email failed, rolling back registration",
			zap.String("email", MaskEmail(user.Email)),
			zap.Error(err))
		s.rollbackRegistration(user.ID)
		return nil, fmt.Errorf("sending verification email: %w", err)
	}

	s.log.Info("user registered", zap.Uint("user_id", user.ID))
	return user, nil
}

func (s *Service) rollbackRegistration(userID uint) {
	if err := s.repository.DeleteUser(userID); err != nil {
		s.log.Error("failed to roll back registration", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// VerifyEmail consumes the registration code and activates the account.
// The welcome email is best effort and never fails the flow.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	user, err := s.repository.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user.Status != StatusPending {
		return ErrUserNotFound
	}

	if err := s.consumeVerificationCode(user.ID, PurposeRegistration, code); err != nil {
		s.log.Warn("email verification failed", zap.Uint("user_id", user.ID))
		return err
	}
	if err := s.repository.ActivateUser(user.ID); err != nil {
		return err
	}

	s.log.Info("account verified", zap.Uint("user_id", user.ID))

	go func() {
		if err := s.mail.SendWelcome(context.Background(), user.Email, user.Name); err != nil {
			s.log.Warn("welcome email failed", zap.String("email", MaskEmail(user.Email)), zap.Error(err))
		}
	}()

	return nil
}

// ResendVerification issues a fresh registration code for a pending
// account, invalidating earlier ones.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.repository.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user.Status != StatusPending {
		return ErrUserNotFound
	}

	code, err := s.issueVerificationCode(user.ID, PurposeRegistration, verificationTTL)
	if err != nil {
		return err
	}
	return s.mail.SendVerificationCode(ctx, user.Email, user.Name, code)
}

// LoginResult is either a completed authentication (Token set) or an
// instruction to complete the configured second factor.
type LoginResult struct {
	RequiresTwoFactor bool
	Method            TwoFactorMethod
	Token             string
	User              *User
}

// Login runs the credential check through the lockout engine and
// branches on the user's second factor. The AWAITING states are not
// persisted anywhere: each follow-up call reconstructs the flow from
// the stored secret or code.
func (s *Service) Login(ctx context.Context, email, password string, meta ClientMeta) (*LoginResult, error) {
	user, err := s.repository.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn a hash anyway so the miss costs as much as a compare.
			_, _ = s.HashPassword("galeria-timing-pad")
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	now := time.Now()
	lockout := user.LoginLockout()

	check := loginLockoutPolicy.Check(&lockout, now)
	if !check.Allowed {
		// Rejected attempts during the window are audited but do not
		// consume another attempt slot.
		s.audit(user, "blocked", "attempt during lockout")
		return nil, &LockedError{MinutesRemaining: check.MinutesRemaining}
	}
	if check.Cleared {
		s.log.Info("lockout expired, cleared lazily", zap.Uint("user_id", user.ID))
		user.SetLoginLockout(lockout)
		if err := s.saveLoginLockout(ctx, user.ID, lockout); err != nil {
			return nil, err
		}
	}

	if !s.CheckPasswordHash(password, user.PasswordHash) {
		result := loginLockoutPolicy.RecordFailure(&lockout, now)
		user.SetLoginLockout(lockout)
		if err := s.saveLoginLockout(ctx, user.ID, lockout); err != nil {
			s.log.Error("failed to persist login attempt", zap.Error(err))
		}

		if result.Locked {
			s.audit(user, "blocked", fmt.Sprintf("locked for %d minutes", int(result.LockDuration.Minutes())))
			s.log.Warn("account locked",
				zap.Uint("user_id", user.ID),
				zap.Duration("duration", result.LockDuration),
				zap.Int("total_lockouts", lockout.TotalLockouts))
		} else {
			s.audit(user, "failed", fmt.Sprintf("attempt %d/%d", lockout.FailedCount, loginLockoutPolicy.Threshold))
		}
		return nil, &InvalidPasswordError{AttemptsRemaining: result.AttemptsRemaining}
	}

	// Correct password: the counter resets even when a second factor
	// still stands between the caller and a session.
	if lockout.FailedCount > 0 {
		loginLockoutPolicy.RecordSuccess(&lockout)
		user.SetLoginLockout(lockout)
		if err := s.saveLoginLockout(ctx, user.ID, lockout); err != nil {
			s.log.Error("failed to reset login counter", zap.Error(err))
		}
	}

	switch user.Status {
	case StatusActive:
	case StatusPending:
		return nil, ErrAccountPending
	default:
		return nil, ErrAccountSuspended
	}

	method := user.TwoFactorMethod
	if method == TwoFactorTOTP && !user.TOTPConfirmed {
		// An enrollment the user never confirmed is not an active second
		// factor; the password alone still signs in.
		method = TwoFactorNone
	}

	switch method {
	case TwoFactorNone, "":
		token, err := s.establishSession(user, meta)
		if err != nil {
			return nil, err
		}
		s.audit(user, "success", "direct login")
		return &LoginResult{Token: token, User: user}, nil

	case TwoFactorEmailOTP:
		code, err := s.issueVerificationCode(user.ID, PurposeLogin2FA, emailCodeTTL)
		if err != nil {
			return nil, err
		}
		if err := s.mail.SendLoginCode(ctx, user.Email, code); err != nil {
			return nil, fmt.Errorf("sending login code: %w", err)
		}
		s.audit(user, "success", "email code dispatched")
		return &LoginResult{RequiresTwoFactor: true, Method: TwoFactorEmailOTP, User: user}, nil

	case TwoFactorTOTP:
		s.audit(user, "success", "totp required")
		return &LoginResult{RequiresTwoFactor: true, Method: TwoFactorTOTP, User: user}, nil

	default:
		// Fail closed: an unrecognized method must never bypass the
		// second factor. Reset it pending support contact.
		if err := s.repository.SetTwoFactor(user.ID, TwoFactorNone, "", false); err != nil {
			s.log.Error("failed to reset 2fa method", zap.Error(err))
		}
		s.audit(user, "failed", "unrecognized 2fa method")
		return nil, ErrTwoFactorMisconfigured
	}
}

// LoginWithTOTP completes a TOTP-gated login.
func (s *Service) LoginWithTOTP(ctx context.Context, email, code string, meta ClientMeta) (*LoginResult, error) {
	user, err := s.repository.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user.TwoFactorMethod != TwoFactorTOTP || user.TOTPSecret == "" || !user.TOTPConfirmed {
		return nil, ErrTwoFactorNotEnabled
	}

	if !verifyTOTP(code, user.TOTPSecret, time.Now()) {
		s.audit(user, "failed", "totp rejected")
		return nil, ErrInvalidCode
	}

	return s.completeSecondFactor(ctx, user, meta, "totp login")
}

// LoginWithEmailCode completes an email-OTP-gated login. The code is
// single use: acceptance burns it immediately, replays are rejected.
func (s *Service) LoginWithEmailCode(ctx context.Context, email, code string, meta ClientMeta) (*LoginResult, error) {
	user, err := s.repository.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user.TwoFactorMethod != TwoFactorEmailOTP {
		return nil, ErrTwoFactorNotEnabled
	}

	if err := s.consumeVerificationCode(user.ID, PurposeLogin2FA, code); err != nil {
		s.audit(user, "failed", "email code rejected")
		return nil, err
	}

	return s.completeSecondFactor(ctx, user, meta, "email code login")
}

func (s *Service) completeSecondFactor(ctx context.Context, user *User, meta ClientMeta, reason string) (*LoginResult, error) {
	switch user.Status {
	case StatusActive:
	case StatusPending:
		return nil, ErrAccountPending
	default:
		return nil, ErrAccountSuspended
	}

	lockout := user.LoginLockout()
	if lockout.FailedCount > 0 {
		loginLockoutPolicy.RecordSuccess(&lockout)
		if err := s.saveLoginLockout(ctx, user.ID, lockout); err != nil {
			s.log.Error("failed to reset login counter", zap.Error(err))
		}
	}

	token, err := s.establishSession(user, meta)
	if err != nil {
		return nil, err
	}
	s.audit(user, "success", reason)
	return &LoginResult{Token: token, User: user}, nil
}

func (s *Service) establishSession(user *User, meta ClientMeta) (string, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", err
	}
	if err := s.sessions.Save(user.ID, token, meta); err != nil {
		return "", err
	}
	return token, nil
}

// Logout removes the caller's session from the whitelist.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	return s.sessions.RevokeOne(rawToken)
}

// CloseOtherSessions revokes every session of the user except the one
// behind rawToken and reports how many were removed.
func (s *Service) CloseOtherSessions(ctx context.Context, userID uint, rawToken string) (int64, error) {
	revoked, err := s.sessions.RevokeAllExcept(userID, rawToken)
	if err != nil {
		return 0, err
	}
	s.log.Info("other sessions revoked", zap.Uint("user_id", userID), zap.Int64("count", revoked))
	return revoked, nil
}

// audit records a login event. Best effort: a failed insert is logged
// and swallowed.
func (s *Service) audit(user *User, outcome, reason string) {
	event := &LoginAudit{Email: user.Email, Outcome: outcome, Reason: reason}
	if user.ID != 0 {
		id := user.ID
		event.UserID = &id
	}
	if err := s.repository.RecordLoginEvent(event); err != nil {
		s.log.Warn("failed to record login event", zap.Error(err))
	}
}

// saveLoginLockout persists the counter with bounded exponential
// backoff. Re-running the UPDATE is safe, the write is absolute.
func (s *Service) saveLoginLockout(ctx context.Context, userID uint, state LockoutState) error {
	return s.withRetry(ctx, func() error {
		return s.repository.SaveLoginLockout(userID, state)
	})
}

func (s *Service) saveRecoveryLockout(ctx context.Context, userID uint, state LockoutState) error {
	return s.withRetry(ctx, func() error {
		return s.repository.SaveRecoveryLockout(userID, state)
	})
}

func (s *Service) withRetry(ctx context.Context, op func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := op(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
