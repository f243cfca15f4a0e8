package storage

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nubstudio/galeria-backend/internal/config"
)

// NewModule returns the storage module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(config *config.AppConfig, log *zap.Logger) (ImageStore, error) {
					return NewS3Store(context.Background(), &config.Storage, log)
				},
			),
		),
	)
}
