package app

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nubstudio/galeria-backend/internal/auth"
	"github.com/nubstudio/galeria-backend/internal/catalog"
	"github.com/nubstudio/galeria-backend/internal/database"
	"github.com/nubstudio/galeria-backend/internal/mailer"
	"github.com/nubstudio/galeria-backend/internal/migration"
	"github.com/nubstudio/galeria-backend/internal/server"
	"github.com/nubstudio/galeria-backend/internal/storage"
)

// Module combines all application modules
func Module() fx.Option {
	return fx.Options(
		// Logger
		fx.Provide(newLogger),

		// Configuration
		fx.Provide(server.LoadConfig),

		// Database and schema
		database.Module(),
		migration.Module(),

		// Outbound services
		mailer.NewModule(),
		storage.NewModule(),

		// Domain modules
		auth.NewModule(),
		catalog.NewModule(),

		// Server
		fx.Provide(server.NewServer),

		// Start the server
		fx.Invoke(registerHooks),
	)
}

func newLogger() (*zap.Logger, error) {
	env := os.Getenv("APP_ENV")
	return server.NewLogger(env)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	srv *server.Server,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("failed to start server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server...")
			srv.Stop()
			return nil
		},
	})
}
