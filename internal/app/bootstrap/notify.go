package bootstrap

import (
	"context"
	"strings"

	appconfig "github.com/wolfman30/inlane-funnel/internal/config"
	"github.com/wolfman30/inlane-funnel/internal/notify"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

const (
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSES      = "ses"
	EmailProviderStub     = "stub"
)

// BuildEmailSender picks SendGrid or SES per EMAIL_PROVIDER and falls back
// to the logging stub when the chosen provider is not configured.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger), EmailProviderStub
	}

	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case EmailProviderSES:
		if cfg.SendGridFromEmail == "" {
			logger.Warn("ses selected but no from address configured; using stub")
			break
		}
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Warn("ses unavailable; using stub", "error", err)
			break
		}
		sender := notify.NewSESSender(BuildSESClient(awsCfg, cfg), notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		return sender, EmailProviderSES
	case EmailProviderSendGrid, "":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender, EmailProviderSendGrid
		}
		logger.Warn("SENDGRID_API_KEY not set; using stub email sender")
	case EmailProviderStub:
	default:
		logger.Warn("unknown email provider; using stub", "provider", cfg.EmailProvider)
	}
	return notify.NewStubEmailSender(logger), EmailProviderStub
}

// NotifyRecipients splits LEAD_NOTIFY_EMAIL on commas.
func NotifyRecipients(cfg *appconfig.Config) []string {
	if cfg == nil {
		return nil
	}
	var out []string
	for _, part := range strings.Split(cfg.LeadNotifyEmail, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
