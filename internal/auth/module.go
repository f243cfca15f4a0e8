package auth

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nubstudio/galeria-backend/internal/config"
	"github.com/nubstudio/galeria-backend/internal/mailer"
)

// NewModule returns the auth module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			// Provide repository
			fx.Annotate(
				func(db *gorm.DB) Repository {
					return NewRepository(db)
				},
			),
			// Provide token issuer
			fx.Annotate(
				func(config *config.AppConfig) *TokenIssuer {
					return NewTokenIssuer(&config.Auth)
				},
			),
			// Provide session registry
			fx.Annotate(
				func(config *config.AppConfig, log *zap.Logger, repo Repository) *SessionRegistry {
					return NewSessionRegistry(&config.Auth, log, repo)
				},
			),
			// Provide service
			fx.Annotate(
				func(config *config.AppConfig, log *zap.Logger, repo Repository,
					tokens *TokenIssuer, sessions *SessionRegistry, mail mailer.Sender) *Service {
					return NewService(&config.Auth, log, repo, tokens, sessions, mail)
				},
			),
			// Provide handler
			fx.Annotate(
				func(svc *Service, log *zap.Logger) *Handler {
					return NewHandler(svc, log)
				},
			),
			// Provide middleware
			fx.Annotate(
				func(tokens *TokenIssuer, sessions *SessionRegistry, log *zap.Logger) *Middleware {
					return NewMiddleware(tokens, sessions, log)
				},
			),
		),
		fx.Invoke(registerSweeper),
	)
}

// registerSweeper runs the periodic purge of expired sessions and spent
// recovery codes. Validity never depends on the sweep, it only reclaims
// rows.
func registerSweeper(
	lifecycle fx.Lifecycle,
	config *config.AppConfig,
	sessions *SessionRegistry,
	svc *Service,
	log *zap.Logger,
) {
	interval := config.Auth.SessionSweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	done := make(chan struct{})

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ticker := time.NewTicker(interval)
			go func() {
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						if n, err := sessions.SweepExpired(); err != nil {
							log.Warn("session sweep failed", zap.Error(err))
						} else if n > 0 {
							log.Info("expired sessions purged", zap.Int64("count", n))
						}
						if n, err := svc.CleanupSpentRecoveryCodes(); err != nil {
							log.Warn("recovery code sweep failed", zap.Error(err))
						} else if n > 0 {
							log.Info("spent recovery codes purged", zap.Int64("count", n))
						}
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})
}
