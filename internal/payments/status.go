package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/inlane-funnel/internal/observability/metrics"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

// ResultPublisher announces verified payment results.
type ResultPublisher interface {
	PublishPaymentRecorded(ctx context.Context, transactionID, status, message string) error
}

// StatusService verifies provider callbacks and records the outcome.
type StatusService struct {
	gateway   Gateway
	repo      Repository
	publisher ResultPublisher
	metrics   *metrics.FunnelMetrics
	logger    *logging.Logger
}

func NewStatusService(gateway Gateway, repo Repository, logger *logging.Logger) *StatusService {
	if gateway == nil {
		panic("payments: gateway required")
	}
	if repo == nil {
		repo = NewMemoryRepository()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StatusService{gateway: gateway, repo: repo, logger: logger}
}

func (s *StatusService) WithMetrics(m *metrics.FunnelMetrics) *StatusService {
	s.metrics = m
	return s
}

func (s *StatusService) WithPublisher(p ResultPublisher) *StatusService {
	s.publisher = p
	return s
}

type paymentResponse struct {
	EncData string `json:"EncData"`
}

// HandleCallback decodes the raw paymentResponse, verifies it and records
// done or failed. A recording failure is logged and does not change the outcome.
func (s *StatusService) HandleCallback(ctx context.Context, raw string) (*StatusOutcome, error) {
	var pr paymentResponse
	if err := json.Unmarshal([]byte(raw), &pr); err != nil {
		s.metrics.ObservePayment("callback", "malformed")
		return nil, fmt.Errorf("payments: decode payment response: %w", err)
	}
	if strings.TrimSpace(pr.EncData) == "" {
		s.metrics.ObservePayment("callback", "missing_enc_data")
		return nil, ErrMissingEncData
	}

	verified, err := s.gateway.Verify(ctx, pr.EncData)
	if err != nil {
		s.metrics.ObservePayment("callback", "verify_error")
		s.logger.Error("payment verification failed", "error", err)
		return nil, &VerificationFailedError{Err: err}
	}

	outcome := &StatusOutcome{
		Success:       verified.ResponseCode == SuccessResponseCode,
		TransactionID: verified.TransactionID,
		Message:       verified.ResponseMessage,
	}
	status := StatusFailed
	if outcome.Success {
		status = StatusDone
	}

	if outcome.TransactionID != "" {
		if err := s.repo.RecordResult(ctx, outcome.TransactionID, status, outcome.Message); err != nil {
			s.logger.Error("failed to record payment result", "error", err, "transaction_id", outcome.TransactionID)
		}
		if s.publisher != nil {
			if err := s.publisher.PublishPaymentRecorded(ctx, outcome.TransactionID, status, outcome.Message); err != nil {
				s.logger.Warn("failed to publish payment result", "error", err, "transaction_id", outcome.TransactionID)
			}
		}
	} else {
		s.logger.Warn("payment callback without transaction id", "response_code", verified.ResponseCode)
	}

	s.metrics.ObservePayment("callback", status)
	s.logger.Info("payment callback processed", "transaction_id", outcome.TransactionID, "status", status)
	return outcome, nil
}
