package leads

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrRequired is returned when a mandatory field is empty.
	ErrRequired = errors.New("required")

	// ErrTooShort is returned when a name is shorter than two characters.
	ErrTooShort = errors.New("too short")

	// ErrInvalidFormat is returned when a phone or email has the wrong shape.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidOption is returned when an area is neither listed nor Other.
	ErrInvalidOption = errors.New("invalid option")

	// ErrUnknownField is returned for form inputs the controller does not own.
	ErrUnknownField = errors.New("unknown field")

	// ErrSubmitInFlight is returned while a previous submit has not settled.
	ErrSubmitInFlight = errors.New("submission already in progress")

	// ErrFormSubmitted is returned when a submitted form is touched again.
	ErrFormSubmitted = errors.New("form already submitted")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")
)

var fieldMessages = map[Field]map[error]string{
	FieldName: {
		ErrRequired: "Please enter your name",
		ErrTooShort: "Name must be at least 2 characters",
	},
	FieldPhone: {
		ErrRequired:      "Please enter your phone number",
		ErrInvalidFormat: "Please enter a valid 10-digit mobile number",
	},
	FieldEmail: {
		ErrRequired:      "Please enter your email",
		ErrInvalidFormat: "Please enter a valid email address",
	},
	FieldArea: {
		ErrRequired:      "Please select your area",
		ErrInvalidOption: "Please select an area from the list",
	},
	FieldCustomArea: {
		ErrRequired: "Please enter your custom area",
	},
}

// FieldError is a per-field validation failure.
type FieldError struct {
	Field Field
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Message is the inline text shown next to the field.
func (e *FieldError) Message() string {
	if msg, ok := fieldMessages[e.Field][e.Err]; ok {
		return msg
	}
	return fmt.Sprintf("Invalid %s", strings.ReplaceAll(string(e.Field), "_", " "))
}

// ErrorSet holds at most one error per field.
type ErrorSet map[Field]*FieldError

// Empty reports whether no field has an error.
func (s ErrorSet) Empty() bool { return len(s) == 0 }

// Messages flattens the set for JSON responses.
func (s ErrorSet) Messages() map[string]string {
	out := make(map[string]string, len(s))
	for field, err := range s {
		out[string(field)] = err.Message()
	}
	return out
}

func (s ErrorSet) clone() ErrorSet {
	out := make(ErrorSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ValidationErrors is returned by Submit when any field fails.
type ValidationErrors struct {
	Errors ErrorSet
}

func (e *ValidationErrors) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	return "leads: invalid fields: " + strings.Join(fields, ", ")
}

// SubmissionKind separates data-store rejections from transport failures.
type SubmissionKind string

const (
	SubmissionRejected SubmissionKind = "rejected"
	SubmissionNetwork  SubmissionKind = "network"
)

const networkErrorMessage = "Network error. Please check your connection and try again."

// SubmissionError wraps a failed insert with a user-facing message.
type SubmissionError struct {
	Kind    SubmissionKind
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("leads: submission %s: %s", e.Kind, e.Message)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
