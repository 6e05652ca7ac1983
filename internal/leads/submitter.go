package leads

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfman30/inlane-funnel/internal/observability/metrics"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

// Submitter persists a validated lead.
type Submitter interface {
	Submit(ctx context.Context, lead NewLead) (*Lead, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, lead NewLead) (*Lead, error)

func (fn SubmitterFunc) Submit(ctx context.Context, lead NewLead) (*Lead, error) {
	return fn(ctx, lead)
}

// EventPublisher is notified after a lead is stored.
type EventPublisher interface {
	PublishLeadCreated(ctx context.Context, lead *Lead) error
}

// RepositorySubmitter inserts leads with a single bounded attempt.
type RepositorySubmitter struct {
	repo    Repository
	events  EventPublisher
	timeout time.Duration
	metrics *metrics.FunnelMetrics
	logger  *logging.Logger
}

// SubmitterOption customizes a RepositorySubmitter.
type SubmitterOption func(*RepositorySubmitter)

// WithEventPublisher publishes lead.created after each insert.
func WithEventPublisher(p EventPublisher) SubmitterOption {
	return func(s *RepositorySubmitter) { s.events = p }
}

// WithSubmitTimeout bounds each insert.
func WithSubmitTimeout(d time.Duration) SubmitterOption {
	return func(s *RepositorySubmitter) { s.timeout = d }
}

func WithSubmitMetrics(m *metrics.FunnelMetrics) SubmitterOption {
	return func(s *RepositorySubmitter) { s.metrics = m }
}

func NewRepositorySubmitter(repo Repository, logger *logging.Logger, opts ...SubmitterOption) *RepositorySubmitter {
	if repo == nil {
		panic("leads: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &RepositorySubmitter{repo: repo, logger: logger, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit inserts the lead. Data-store rejections keep their message; every
// other failure is reported as a network error.
func (s *RepositorySubmitter) Submit(ctx context.Context, in NewLead) (*Lead, error) {
	insertCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		insertCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	lead, err := s.repo.Create(insertCtx, in)
	if err != nil {
		subErr := classifySubmitError(err)
		s.metrics.ObserveSubmitLatency(string(subErr.Kind), time.Since(start).Seconds())
		s.logger.Error("lead insert failed", "error", err, "kind", subErr.Kind, "area", in.Area)
		return nil, subErr
	}
	s.metrics.ObserveSubmitLatency("success", time.Since(start).Seconds())
	s.logger.Info("lead created", "lead_id", lead.ID, "area", lead.Area)

	if s.events != nil {
		if err := s.events.PublishLeadCreated(ctx, lead); err != nil {
			s.logger.Warn("failed to publish lead event", "error", err, "lead_id", lead.ID)
		}
	}
	return lead, nil
}

func classifySubmitError(err error) *SubmissionError {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		msg := strings.TrimSpace(pgErr.Message)
		if msg == "" {
			msg = "Submission rejected"
		}
		return &SubmissionError{Kind: SubmissionRejected, Message: msg, Err: err}
	}
	return &SubmissionError{Kind: SubmissionNetwork, Message: networkErrorMessage, Err: err}
}
