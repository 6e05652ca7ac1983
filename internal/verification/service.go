package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/inlane-funnel/internal/messaging"
	"github.com/wolfman30/inlane-funnel/internal/observability/metrics"
	"github.com/wolfman30/inlane-funnel/internal/session"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

const sendLockTTL = 30 * time.Second

// Config tunes code lifetime and attempt limits.
type Config struct {
	CodeTTL     time.Duration
	MaxAttempts int
}

// Service runs phone verification for funnel sessions.
type Service struct {
	sessions   session.Store
	challenges ChallengeStore
	sender     messaging.OTPSender
	locker     session.Locker
	codeTTL    time.Duration
	maxTries   int
	now        func() time.Time
	metrics    *metrics.FunnelMetrics
	logger     *logging.Logger
}

func NewService(sessions session.Store, challenges ChallengeStore, sender messaging.OTPSender, locker session.Locker, cfg Config, logger *logging.Logger) *Service {
	if sessions == nil || challenges == nil || sender == nil {
		panic("verification: sessions, challenges and sender required")
	}
	if locker == nil {
		locker = session.NewMemoryLocker()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Service{
		sessions:   sessions,
		challenges: challenges,
		sender:     sender,
		locker:     locker,
		codeTTL:    cfg.CodeTTL,
		maxTries:   cfg.MaxAttempts,
		now:        time.Now,
		logger:     logger,
	}
}

// WithMetrics records send/verify outcomes.
func (s *Service) WithMetrics(m *metrics.FunnelMetrics) *Service {
	s.metrics = m
	return s
}

// Send delivers a new code to the session phone. Only the code hash is kept.
func (s *Service) Send(ctx context.Context, token string) error {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return err
	}
	if sess.Verified {
		return ErrAlreadyVerified
	}

	release, err := s.locker.Acquire(ctx, "otp:"+token, sendLockTTL)
	if errors.Is(err, session.ErrLocked) {
		return ErrInFlight
	}
	if err != nil {
		return fmt.Errorf("verification: lock: %w", err)
	}
	defer release()

	code, err := s.sender.SendOTP(ctx, sess.Phone)
	if err == nil && strings.TrimSpace(code) == "" {
		err = errors.New("empty code from sender")
	}
	if err != nil {
		s.metrics.ObserveOTP("send", "failed")
		s.logger.Error("otp send failed", "error", err, "lead_id", sess.LeadID, "to", messaging.MaskPhone(sess.Phone))
		return newError(KindSendFailed, err)
	}

	machine := NewSession(token, s.maxTries)
	if err := machine.Sent(code); err != nil {
		return err
	}
	now := s.now().UTC()
	ch := Challenge{
		CodeHash:  machine.expectedHash,
		SentAt:    now,
		ExpiresAt: now.Add(s.codeTTL),
	}
	// Retained past expiry so a late entry reports Expired instead of NotSent.
	if err := s.challenges.Save(ctx, token, ch, 2*s.codeTTL); err != nil {
		s.metrics.ObserveOTP("send", "store_error")
		return newError(KindSendFailed, err)
	}
	s.metrics.ObserveOTP("send", "ok")
	s.logger.Info("otp challenge issued", "lead_id", sess.LeadID)
	return nil
}

// Verify checks code for the session and marks it verified on a match.
func (s *Service) Verify(ctx context.Context, token, code string) error {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return err
	}
	if sess.Verified {
		return ErrAlreadyVerified
	}

	ch, err := s.challenges.Load(ctx, token)
	if err != nil {
		return err
	}
	if ch == nil {
		s.metrics.ObserveOTP("verify", "not_sent")
		return ErrNotSent
	}
	if ch.Expired(s.now()) {
		_ = s.challenges.Delete(ctx, token)
		s.metrics.ObserveOTP("verify", "expired")
		return newError(KindExpired, nil)
	}

	machine := restoreSession(token, s.maxTries, false, ch)
	verr := machine.Verify(code)
	switch {
	case verr == nil:
		if _, err := s.sessions.MarkVerified(ctx, token); err != nil {
			return fmt.Errorf("verification: mark verified: %w", err)
		}
		if err := s.challenges.Delete(ctx, token); err != nil {
			s.logger.Warn("failed to delete otp challenge", "error", err, "lead_id", sess.LeadID)
		}
		s.metrics.ObserveOTP("verify", "ok")
		s.logger.Info("phone verified", "lead_id", sess.LeadID)
		return nil
	case IsKind(verr, KindTooManyAttempts):
		_ = s.challenges.Delete(ctx, token)
		s.metrics.ObserveOTP("verify", "locked")
		return verr
	case IsKind(verr, KindInvalidCode):
		attempts, err := s.challenges.IncrementAttempts(ctx, token)
		if err != nil {
			return err
		}
		if attempts >= s.maxTries {
			_ = s.challenges.Delete(ctx, token)
			s.metrics.ObserveOTP("verify", "locked")
			return newError(KindTooManyAttempts, nil)
		}
		s.metrics.ObserveOTP("verify", "invalid")
		return verr
	default:
		return verr
	}
}

// Status reports where the session is in the verification flow.
func (s *Service) Status(ctx context.Context, token string) (State, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return "", err
	}
	if sess.Verified {
		return StateVerified, nil
	}
	ch, err := s.challenges.Load(ctx, token)
	if err != nil {
		return "", err
	}
	if ch == nil || ch.Expired(s.now()) {
		return StateUnsent, nil
	}
	return StateSent, nil
}
