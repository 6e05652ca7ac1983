package bootstrap

import (
	"strings"

	appconfig "github.com/wolfman30/inlane-funnel/internal/config"
	"github.com/wolfman30/inlane-funnel/internal/functions"
	"github.com/wolfman30/inlane-funnel/internal/messaging"
	"github.com/wolfman30/inlane-funnel/internal/observability/metrics"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

// BuildFunctionsClient returns nil when FUNCTIONS_BASE_URL is unset.
func BuildFunctionsClient(cfg *appconfig.Config, m *metrics.FunnelMetrics, logger *logging.Logger) functions.Invoker {
	if cfg == nil || strings.TrimSpace(cfg.FunctionsBaseURL) == "" {
		return nil
	}
	return functions.NewClient(cfg.FunctionsBaseURL, cfg.FunctionsAPIKey, cfg.FunctionsTimeout, logger).WithMetrics(m)
}

// BuildOTPSender selects the OTP delivery provider from config.
func BuildOTPSender(cfg *appconfig.Config, invoker functions.Invoker, logger *logging.Logger) (messaging.OTPSender, string, string) {
	if cfg == nil {
		return nil, "", "missing config"
	}
	return messaging.BuildOTPSender(messaging.ProviderSelectionConfig{
		Preference:       cfg.OTPProvider,
		FunctionsBaseURL: cfg.FunctionsBaseURL,
		FunctionsAPIKey:  cfg.FunctionsAPIKey,
		FunctionsTimeout: cfg.FunctionsTimeout,
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TwilioFromNumber: cfg.TwilioFromNumber,
		CountryCode:      cfg.PhoneCountryCode,
		CodeTTL:          cfg.OTPTTL,
	}, invoker, logger)
}
