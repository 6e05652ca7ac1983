package leads

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+'"-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateName requires at least two characters after trimming.
func ValidateName(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return &FieldError{Field: FieldName, Err: ErrRequired}
	}
	if utf8.RuneCountInString(trimmed) < 2 {
		return &FieldError{Field: FieldName, Err: ErrTooShort}
	}
	return nil
}

// ValidatePhone accepts Indian mobile numbers: 10 digits starting with 6-9,
// ignoring any separators.
func ValidatePhone(value string) error {
	digits := DigitsOnly(value)
	if digits == "" {
		return &FieldError{Field: FieldPhone, Err: ErrRequired}
	}
	if len(digits) != 10 || digits[0] < '6' {
		return &FieldError{Field: FieldPhone, Err: ErrInvalidFormat}
	}
	return nil
}

// ValidateEmail checks for a local@domain.tld shape.
func ValidateEmail(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return &FieldError{Field: FieldEmail, Err: ErrRequired}
	}
	if !emailPattern.MatchString(trimmed) {
		return &FieldError{Field: FieldEmail, Err: ErrInvalidFormat}
	}
	return nil
}

// ValidateArea only checks presence. AreaCatalog.ValidateArea also checks
// that the value is a listed option.
func ValidateArea(value string) error {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: FieldArea, Err: ErrRequired}
	}
	return nil
}

// ValidateCustomArea only applies when the selected area is Other.
func ValidateCustomArea(value, currentArea string) error {
	if strings.TrimSpace(currentArea) != AreaOther {
		return nil
	}
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: FieldCustomArea, Err: ErrRequired}
	}
	return nil
}

// ValidateField dispatches to the validator for field.
func ValidateField(field Field, value, currentArea string) error {
	switch field {
	case FieldName:
		return ValidateName(value)
	case FieldPhone:
		return ValidatePhone(value)
	case FieldEmail:
		return ValidateEmail(value)
	case FieldArea:
		return ValidateArea(value)
	case FieldCustomArea:
		return ValidateCustomArea(value, currentArea)
	default:
		return ErrUnknownField
	}
}

// ValidateRecord runs every validator and collects the failures.
func ValidateRecord(r Record) ErrorSet {
	errs := ErrorSet{}
	checks := []error{
		ValidateName(r.Name),
		ValidatePhone(r.Phone),
		ValidateEmail(r.Email),
		ValidateArea(r.Area),
		ValidateCustomArea(r.CustomArea, r.Area),
	}
	for _, err := range checks {
		if fe, ok := err.(*FieldError); ok {
			errs[fe.Field] = fe
		}
	}
	return errs
}

// ValidateArea rejects areas that are neither serviceable nor Other.
func (c AreaCatalog) ValidateArea(value string) error {
	if err := ValidateArea(value); err != nil {
		return err
	}
	area := strings.TrimSpace(value)
	if area != AreaOther && !c.IsServiceable(area) {
		return &FieldError{Field: FieldArea, Err: ErrInvalidOption}
	}
	return nil
}

// ValidateField is the package ValidateField with area membership applied.
func (c AreaCatalog) ValidateField(field Field, value, currentArea string) error {
	if field == FieldArea {
		return c.ValidateArea(value)
	}
	return ValidateField(field, value, currentArea)
}

// ValidateRecord is the package ValidateRecord with area membership applied.
func (c AreaCatalog) ValidateRecord(r Record) ErrorSet {
	errs := ValidateRecord(r)
	if _, ok := errs[FieldArea]; ok {
		return errs
	}
	var fe *FieldError
	if errors.As(c.ValidateArea(r.Area), &fe) {
		errs[FieldArea] = fe
	}
	return errs
}
