package payments

import (
	"errors"
	"fmt"
	"time"
)

// Payment statuses stored in the payments table.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// SuccessResponseCode is the gateway code for an approved payment.
const SuccessResponseCode = "00"

var (
	// ErrNotVerified is returned when payment is attempted before OTP verification.
	ErrNotVerified = errors.New("payments: phone not verified")

	// ErrInFlight is returned while an initiation for the same session is running.
	ErrInFlight = errors.New("payments: initiation already in progress")

	// ErrMissingEncData is returned when the gateway callback has no EncData.
	ErrMissingEncData = errors.New("payments: EncData missing from payment response")

	// ErrPaymentNotFound is returned when no payment row matches.
	ErrPaymentNotFound = errors.New("payments: payment not found")
)

// InitiationError wraps a failed call to the payment-initiation function.
type InitiationError struct {
	Message string
	Err     error
}

func (e *InitiationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payments: initiation failed: %s: %v", e.Message, e.Err)
	}
	return "payments: initiation failed: " + e.Message
}

func (e *InitiationError) Unwrap() error { return e.Err }

// VerificationFailedError wraps a failed call to the verify-payment function.
type VerificationFailedError struct {
	Err error
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("payments: verify-payment failed: %v", e.Err)
}

func (e *VerificationFailedError) Unwrap() error { return e.Err }

// Record is a row in the payments table, keyed by the gateway transaction id.
type Record struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id,omitempty"`
	Amount    int       `json:"amount"`
	Status    string    `json:"payment_status"`
	Message   string    `json:"payment_message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GatewayForm is what the browser posts to the payment processor.
type GatewayForm struct {
	URL           string            `json:"url"`
	Fields        map[string]string `json:"fields"`
	TransactionID string            `json:"transaction_id,omitempty"`
}

// StatusOutcome is the verified result of a gateway callback.
type StatusOutcome struct {
	Success       bool
	TransactionID string
	Message       string
}
