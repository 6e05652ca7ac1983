package events

import (
	"context"
	"time"

	"github.com/wolfman30/inlane-funnel/internal/leads"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

// Publisher encodes funnel events onto a Queue.
type Publisher struct {
	queue  Queue
	now    func() time.Time
	logger *logging.Logger
}

func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("events: queue required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, now: time.Now, logger: logger}
}

// PublishLeadCreated satisfies leads.EventPublisher.
func (p *Publisher) PublishLeadCreated(ctx context.Context, lead *leads.Lead) error {
	evt := &LeadCreatedV1{
		LeadID:     lead.ID,
		Name:       lead.Name,
		Phone:      lead.Phone,
		Email:      lead.Email,
		Area:       lead.Area,
		HasLicense: lead.HasLicense,
		CreatedAt:  lead.CreatedAt,
	}
	if lead.CustomArea != nil {
		evt.CustomArea = *lead.CustomArea
	}
	return p.publish(ctx, Envelope{Kind: KindLeadCreated, LeadCreated: evt})
}

// PublishPaymentRecorded is called once a gateway callback has been verified.
func (p *Publisher) PublishPaymentRecorded(ctx context.Context, transactionID, status, message string) error {
	return p.publish(ctx, Envelope{
		Kind: KindPaymentRecorded,
		PaymentRecorded: &PaymentRecordedV1{
			TransactionID: transactionID,
			Status:        status,
			Message:       message,
			OccurredAt:    p.now().UTC(),
		},
	})
}

func (p *Publisher) publish(ctx context.Context, env Envelope) error {
	env, body, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return err
	}
	p.logger.Debug("event published", "event_id", env.ID, "kind", env.Kind)
	return nil
}
