package messaging

import (
	"context"
	"errors"

	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

// FailoverSender attempts a primary send, then falls back to a secondary provider on error.
type FailoverSender struct {
	primary       OTPSender
	secondary     OTPSender
	primaryName   string
	secondaryName string
	logger        *logging.Logger
}

// NewFailoverSender builds a failover sender with named providers.
func NewFailoverSender(primary OTPSender, primaryName string, secondary OTPSender, secondaryName string, logger *logging.Logger) *FailoverSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &FailoverSender{
		primary:       primary,
		secondary:     secondary,
		primaryName:   primaryName,
		secondaryName: secondaryName,
		logger:        logger,
	}
}

var _ OTPSender = (*FailoverSender)(nil)

// SendOTP tries the primary provider first, then the secondary. The returned
// code is whichever provider actually delivered.
func (f *FailoverSender) SendOTP(ctx context.Context, phone string) (string, error) {
	if f == nil || f.primary == nil {
		return "", errors.New("messaging: failover primary sender not configured")
	}
	code, err := f.primary.SendOTP(ctx, phone)
	if err == nil {
		return code, nil
	}
	if f.secondary == nil {
		return "", err
	}
	f.logger.Warn("primary otp send failed; attempting fallback",
		"provider", f.primaryName,
		"fallback", f.secondaryName,
		"error", err,
		"to", MaskPhone(phone),
	)
	code, fallbackErr := f.secondary.SendOTP(ctx, phone)
	if fallbackErr != nil {
		f.logger.Error("fallback otp send failed",
			"provider", f.secondaryName,
			"error", fallbackErr,
			"to", MaskPhone(phone),
		)
		return "", fallbackErr
	}
	return code, nil
}
