package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/inlane-funnel/internal/observability/metrics"
	"github.com/wolfman30/inlane-funnel/internal/session"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

const initiateLockTTL = 30 * time.Second

// Handoff turns a verified funnel session into a gateway form.
type Handoff struct {
	sessions session.Store
	gateway  Gateway
	repo     Repository
	locker   session.Locker
	amount   int
	metrics  *metrics.FunnelMetrics
	logger   *logging.Logger
}

func NewHandoff(sessions session.Store, gateway Gateway, repo Repository, locker session.Locker, amount int, logger *logging.Logger) *Handoff {
	if sessions == nil || gateway == nil {
		panic("payments: sessions and gateway required")
	}
	if repo == nil {
		repo = NewMemoryRepository()
	}
	if locker == nil {
		locker = session.NewMemoryLocker()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handoff{
		sessions: sessions,
		gateway:  gateway,
		repo:     repo,
		locker:   locker,
		amount:   amount,
		logger:   logger,
	}
}

func (h *Handoff) WithMetrics(m *metrics.FunnelMetrics) *Handoff {
	h.metrics = m
	return h
}

// Initiate requests a gateway handoff for the session's lead.
func (h *Handoff) Initiate(ctx context.Context, token string) (*GatewayForm, error) {
	sess, err := h.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if !sess.Verified {
		h.metrics.ObservePayment("initiate", "not_verified")
		return nil, ErrNotVerified
	}

	release, err := h.locker.Acquire(ctx, "payment:"+token, initiateLockTTL)
	if errors.Is(err, session.ErrLocked) {
		return nil, ErrInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("payments: lock: %w", err)
	}
	defer release()

	resp, err := h.gateway.Initiate(ctx, InitiateRequest{
		LeadID:            sess.LeadID,
		Name:              sess.Name,
		Phone:             sess.Phone,
		Email:             sess.Email,
		CustomerArea:      sess.CustomerArea(),
		HasDrivingLicense: sess.HasLicense,
		Amount:            h.amount,
	})
	if err != nil {
		h.metrics.ObservePayment("initiate", "error")
		h.logger.Error("payment initiation failed", "error", err, "lead_id", sess.LeadID)
		return nil, &InitiationError{Message: "payment service unavailable", Err: err}
	}
	if resp.GatewayURL == "" {
		h.metrics.ObservePayment("initiate", "no_gateway_url")
		return nil, &InitiationError{Message: "no gateway URL returned"}
	}

	if resp.TransactionID != "" {
		if err := h.repo.RecordPending(ctx, resp.TransactionID, sess.LeadID, h.amount); err != nil {
			h.logger.Warn("failed to record pending payment", "error", err, "transaction_id", resp.TransactionID)
		}
	}

	fields := make(map[string]string, len(resp.FormData))
	for k, v := range resp.FormData {
		fields[k] = v
	}
	h.metrics.ObservePayment("initiate", "ok")
	h.logger.Info("payment handoff ready", "lead_id", sess.LeadID, "transaction_id", resp.TransactionID)
	return &GatewayForm{URL: resp.GatewayURL, Fields: fields, TransactionID: resp.TransactionID}, nil
}
