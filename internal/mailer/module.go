package mailer

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nubstudio/galeria-backend/internal/config"
)

// NewModule returns the mailer module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(config *config.AppConfig, log *zap.Logger) Sender {
					if !config.Mail.Enabled {
						log.Warn("mail delivery disabled, codes will not be sent")
						return NewLogSender(log)
					}
					return NewSMTPSender(&config.Mail, log)
				},
			),
		),
	)
}
