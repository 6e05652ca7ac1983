package messaging

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/wolfman30/inlane-funnel/internal/functions"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

const (
	// OTPProviderAuto prefers the hosted messaging function, then Twilio.
	OTPProviderAuto = "auto"
	// OTPProviderFunction forces the hosted send-message function.
	OTPProviderFunction = "function"
	// OTPProviderTwilio forces direct Twilio SMS.
	OTPProviderTwilio = "twilio"
	// OTPProviderLog logs codes instead of sending them. Development only.
	OTPProviderLog = "log"
)

// OTPSender delivers a one-time code to a phone and returns the code that was sent.
type OTPSender interface {
	SendOTP(ctx context.Context, phone string) (string, error)
}

// OTPSenderFunc adapts a function to OTPSender.
type OTPSenderFunc func(ctx context.Context, phone string) (string, error)

func (fn OTPSenderFunc) SendOTP(ctx context.Context, phone string) (string, error) {
	return fn(ctx, phone)
}

// ProviderSelectionConfig captures what is needed to build an OTP sender.
type ProviderSelectionConfig struct {
	Preference       string
	FunctionsBaseURL string
	FunctionsAPIKey  string
	FunctionsTimeout time.Duration
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	CountryCode      string
	CodeTTL          time.Duration
}

// BuildOTPSender instantiates an OTPSender based on the preferred provider.
// It returns the sender, the provider that was selected, and a reason when no provider could be initialized.
func BuildOTPSender(cfg ProviderSelectionConfig, invoker functions.Invoker, logger *logging.Logger) (OTPSender, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = OTPProviderAuto
	}

	missing := map[string]string{}
	var functionSender OTPSender
	var twilioSender OTPSender

	if invoker == nil && cfg.FunctionsBaseURL != "" {
		invoker = functions.NewClient(cfg.FunctionsBaseURL, cfg.FunctionsAPIKey, cfg.FunctionsTimeout, logger)
	}
	if invoker != nil {
		functionSender = NewFunctionSender(invoker, logger)
	} else {
		missing[OTPProviderFunction] = "FUNCTIONS_BASE_URL missing"
	}

	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
		twilioSender = NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger).
			WithCountryCode(cfg.CountryCode).
			WithCodeTTL(cfg.CodeTTL)
	} else {
		var reasons []string
		if cfg.TwilioAccountSID == "" {
			reasons = append(reasons, "TWILIO_ACCOUNT_SID missing")
		}
		if cfg.TwilioAuthToken == "" {
			reasons = append(reasons, "TWILIO_AUTH_TOKEN missing")
		}
		if cfg.TwilioFromNumber == "" {
			reasons = append(reasons, "TWILIO_FROM_NUMBER missing")
		}
		missing[OTPProviderTwilio] = strings.Join(reasons, ", ")
	}

	switch preference {
	case OTPProviderLog:
		return NewLogSender(logger), OTPProviderLog, ""
	case OTPProviderFunction:
		if functionSender != nil {
			return functionSender, OTPProviderFunction, ""
		}
		return nil, "", missing[OTPProviderFunction]
	case OTPProviderTwilio:
		if twilioSender != nil {
			return twilioSender, OTPProviderTwilio, ""
		}
		return nil, "", missing[OTPProviderTwilio]
	case OTPProviderAuto:
	default:
		return nil, "", fmt.Sprintf("unknown OTP provider %q", preference)
	}

	if functionSender != nil && twilioSender != nil {
		return NewFailoverSender(functionSender, OTPProviderFunction, twilioSender, OTPProviderTwilio, logger), OTPProviderFunction + "+" + OTPProviderTwilio, ""
	}
	if functionSender != nil {
		return functionSender, OTPProviderFunction, ""
	}
	if twilioSender != nil {
		return twilioSender, OTPProviderTwilio, ""
	}
	return nil, "", fmt.Sprintf("%s: %s; %s: %s",
		OTPProviderFunction, missing[OTPProviderFunction],
		OTPProviderTwilio, missing[OTPProviderTwilio])
}

// GenerateCode returns a uniformly random numeric code of the given length.
func GenerateCode(digits int) (string, error) {
	if digits <= 0 {
		digits = 6
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("messaging: generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
