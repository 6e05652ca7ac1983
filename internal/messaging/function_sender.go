package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/inlane-funnel/internal/functions"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

var functionSendTracer = otel.Tracer("inlane.internal.messaging.function_send")

const (
	sendMessageFunction  = "send-message"
	phoneVerificationOTP = "PHONE_VERIFICATION_OTP"
)

// ErrCodeMissing is returned when the messaging function reply has no code.
var ErrCodeMissing = errors.New("messaging: otp code missing from response")

// FunctionSender asks the hosted send-message function to deliver a WhatsApp/SMS
// template carrying the OTP. The function picks the code and echoes it back.
// It receives the stored national number as digits; the function owns any
// country prefixing.
type FunctionSender struct {
	invoker functions.Invoker
	logger  *logging.Logger
}

func NewFunctionSender(invoker functions.Invoker, logger *logging.Logger) *FunctionSender {
	if invoker == nil {
		panic("messaging: functions invoker required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FunctionSender{invoker: invoker, logger: logger}
}

var _ OTPSender = (*FunctionSender)(nil)

type sendMessageRequest struct {
	MessageType string `json:"message_type"`
	Phone       string `json:"phone"`
}

func (s *FunctionSender) SendOTP(ctx context.Context, phone string) (string, error) {
	to := sanitizePhone(phone)
	if to == "" {
		return "", errors.New("messaging: phone required")
	}

	ctx, span := functionSendTracer.Start(ctx, "messaging.function.send_otp")
	defer span.End()
	span.SetAttributes(attribute.String("inlane.to", MaskPhone(to)))

	var raw json.RawMessage
	if err := s.invoker.Invoke(ctx, sendMessageFunction, sendMessageRequest{
		MessageType: phoneVerificationOTP,
		Phone:       to,
	}, &raw); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("messaging: send otp: %w", err)
	}

	code, err := ExtractOTP(raw)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	s.logger.Info("otp sent", "provider", OTPProviderFunction, "to", MaskPhone(to))
	return code, nil
}

type sendMessageResponse struct {
	Result struct {
		MessagePayload struct {
			Messages []struct {
				Variables []templateVariable `json:"variables"`
			} `json:"messages"`
		} `json:"messagePayload"`
	} `json:"result"`
}

type templateVariable struct {
	Type       string `json:"type"`
	Parameters []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"parameters"`
}

// ExtractOTP pulls the code out of the template payload: first message, the
// "body" variable, its "text" parameter.
func ExtractOTP(raw []byte) (string, error) {
	var resp sendMessageResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("messaging: decode send-message response: %w", err)
	}
	messages := resp.Result.MessagePayload.Messages
	if len(messages) == 0 {
		return "", ErrCodeMissing
	}
	for _, v := range messages[0].Variables {
		if v.Type != "body" {
			continue
		}
		for _, p := range v.Parameters {
			if p.Type == "text" {
				if code := strings.TrimSpace(p.Text); code != "" {
					return code, nil
				}
			}
		}
		break
	}
	return "", ErrCodeMissing
}
