package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/nubstudio/galeria-backend/internal/config"
)

func newTestLogger(t *testing.T) *zap.Logger {
	logger, err := zap.NewDevelopment()
	assert.NoError(t, err)
	return logger
}

func newTestConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:            "test-secret-key",
		TokenExpiration:      time.Hour,
		SessionSweepInterval: time.Hour,
	}
}

// recordingSender captures what the service tried to mail so tests can
// pull codes out instead of parsing an inbox.
type recordingSender struct {
	mu sync.Mutex

	verificationCodes map[string]string
	loginCodes        map[string]string
	recoveryCodes     map[string]string
	welcomes          []string

	failNext error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		verificationCodes: make(map[string]string),
		loginCodes:        make(map[string]string),
		recoveryCodes:     make(map[string]string),
	}
}

func (s *recordingSender) consumeFailure() error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	return nil
}

func (s *recordingSender) SendVerificationCode(ctx context.Context, to, name, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.consumeFailure(); err != nil {
		return err
	}
	s.verificationCodes[to] = code
	return nil
}

func (s *recordingSender) SendLoginCode(ctx context.Context, to, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.consumeFailure(); err != nil {
		return err
	}
	s.loginCodes[to] = code
	return nil
}

func (s *recordingSender) SendRecoveryCode(ctx context.Context, to, name, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.consumeFailure(); err != nil {
		return err
	}
	s.recoveryCodes[to] = code
	return nil
}

func (s *recordingSender) SendWelcome(ctx context.Context, to, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.consumeFailure(); err != nil {
		return err
	}
	s.welcomes = append(s.welcomes, to)
	return nil
}

func (s *recordingSender) recoveryCode(to string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recoveryCodes[to]
}

func (s *recordingSender) loginCode(to string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCodes[to]
}

func (s *recordingSender) verificationCode(to string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verificationCodes[to]
}

type testEnv struct {
	service  *Service
	repo     *mockRepository
	mail     *recordingSender
	tokens   *TokenIssuer
	sessions *SessionRegistry
}

func newTestEnv(t *testing.T) *testEnv {
	cfg := newTestConfig()
	log := newTestLogger(t)
	repo := newMockRepository()
	tokens := NewTokenIssuer(cfg)
	sessions := NewSessionRegistry(cfg, log, repo)
	mail := newRecordingSender()

	return &testEnv{
		service:  NewService(cfg, log, repo, tokens, sessions, mail),
		repo:     repo,
		mail:     mail,
		tokens:   tokens,
		sessions: sessions,
	}
}

// seedActiveUser inserts a verified account ready to log in.
func (e *testEnv) seedActiveUser(t *testing.T, email, password string) *User {
	hash, err := e.service.HashPassword(password)
	assert.NoError(t, err)

	user := &User{
		Name:            "Test User",
		Email:           email,
		PasswordHash:    hash,
		Status:          StatusActive,
		TwoFactorMethod: TwoFactorNone,
	}
	assert.NoError(t, e.repo.CreateUser(user))
	return user
}

var errSendFailed = errors.New("smtp unavailable")
