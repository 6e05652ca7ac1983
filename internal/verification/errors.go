package verification

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyVerified is returned for any send or verify after success.
	ErrAlreadyVerified = errors.New("verification: phone already verified")

	// ErrInFlight is returned while a send for the same session is running.
	ErrInFlight = errors.New("verification: request already in progress")

	// ErrNotSent is returned when verifying without a live code.
	ErrNotSent = errors.New("verification: no code has been sent")
)

// ErrorKind categorizes user-facing verification failures.
type ErrorKind string

const (
	KindInvalidCode     ErrorKind = "invalid_code"
	KindSendFailed      ErrorKind = "send_failed"
	KindExpired         ErrorKind = "expired"
	KindTooManyAttempts ErrorKind = "too_many_attempts"
)

var kindMessages = map[ErrorKind]string{
	KindInvalidCode:     "Invalid OTP. Please try again.",
	KindSendFailed:      "Failed to send OTP. Please try again.",
	KindExpired:         "OTP has expired. Please request a new one.",
	KindTooManyAttempts: "Too many incorrect attempts. Please request a new OTP.",
}

// VerificationError carries the message shown to the visitor.
type VerificationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func newError(kind ErrorKind, cause error) *VerificationError {
	return &VerificationError{Kind: kind, Message: kindMessages[kind], Err: cause}
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verification: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("verification: %s", e.Kind)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// IsKind reports whether err is a VerificationError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ve *VerificationError
	return errors.As(err, &ve) && ve.Kind == kind
}
