package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the payload carried by an Envelope.
type Kind string

const (
	KindLeadCreated     Kind = "lead_created.v1"
	KindPaymentRecorded Kind = "payment_recorded.v1"
)

type LeadCreatedV1 struct {
	LeadID     string    `json:"lead_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
	Area       string    `json:"area"`
	CustomArea string    `json:"custom_area,omitempty"`
	HasLicense *bool     `json:"has_license"`
	CreatedAt  time.Time `json:"created_at"`
}

type PaymentRecordedV1 struct {
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"payment_status"`
	Message       string    `json:"payment_message,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Envelope is the queue message body.
type Envelope struct {
	ID              string             `json:"id"`
	Kind            Kind               `json:"kind"`
	LeadCreated     *LeadCreatedV1     `json:"lead_created,omitempty"`
	PaymentRecorded *PaymentRecordedV1 `json:"payment_recorded,omitempty"`
}

func encodeEnvelope(env Envelope) (Envelope, string, error) {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, "", fmt.Errorf("events: encode envelope: %w", err)
	}
	return env, string(body), nil
}

func decodeEnvelope(body string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return Envelope{}, fmt.Errorf("events: decode envelope: %w", err)
	}
	switch env.Kind {
	case KindLeadCreated:
		if env.LeadCreated == nil {
			return Envelope{}, fmt.Errorf("events: %s without payload", env.Kind)
		}
	case KindPaymentRecorded:
		if env.PaymentRecorded == nil {
			return Envelope{}, fmt.Errorf("events: %s without payload", env.Kind)
		}
	default:
		return Envelope{}, fmt.Errorf("events: unknown kind %q", env.Kind)
	}
	return env, nil
}
