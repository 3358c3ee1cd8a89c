package mail

import (
	"github.com/smallbiznis/bootcamp/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("mail",
	fx.Provide(NewFromConfig),
	fx.Provide(func(p Provider, cfg config.Config, log *zap.Logger) *Mailer {
		return NewMailer(p, log, cfg.Mail.BatchChunkSize, cfg.Mail.RecipientOverride)
	}),
)

func NewFromConfig(cfg config.Config) Provider {
	switch cfg.Mail.Transport {
	case "smtp":
		return NewSMTP(SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
		})
	case "none":
		return &NoOpProvider{}
	}
	if cfg.Mail.URL == "" {
		return &NoOpProvider{}
	}
	return NewHTTP(cfg.Mail.URL, cfg.Mail.Key, cfg.Mail.From, nil)
}
