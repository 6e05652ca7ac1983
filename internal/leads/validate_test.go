package leads

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePhone(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"98765 43210", nil},
		{"9876543210", nil},
		{"(987) 654-3210", nil},
		{"6000000000", nil},
		{"1234567890", ErrInvalidFormat},
		{"5876543210", ErrInvalidFormat},
		{"987654321", ErrInvalidFormat},
		{"98765432101", ErrInvalidFormat},
		{"+91 98765 43210", ErrInvalidFormat},
		{"", ErrRequired},
		{"abc", ErrRequired},
	}
	for _, tc := range cases {
		err := ValidatePhone(tc.in)
		if tc.want == nil {
			assert.NoError(t, err, tc.in)
			continue
		}
		assert.ErrorIs(t, err, tc.want, tc.in)
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"a.b+c'd@sub.domain.co", "aditi@example.com", " Aditi@Example.COM "}
	for _, in := range valid {
		assert.NoError(t, ValidateEmail(in), in)
	}
	invalid := []string{"abc", "abc@", "abc@domain", "@domain.com", "a b@domain.com", "abc@domain.c"}
	for _, in := range invalid {
		assert.ErrorIs(t, ValidateEmail(in), ErrInvalidFormat, in)
	}
	assert.ErrorIs(t, ValidateEmail("   "), ErrRequired)
}

func TestValidateName(t *testing.T) {
	assert.ErrorIs(t, ValidateName(""), ErrRequired)
	assert.ErrorIs(t, ValidateName("   "), ErrRequired)
	assert.ErrorIs(t, ValidateName(" A "), ErrTooShort)
	assert.NoError(t, ValidateName("Al"))
	assert.NoError(t, ValidateName("अम"))
}

func TestValidateCustomAreaOnlyForOther(t *testing.T) {
	assert.NoError(t, ValidateCustomArea("", "HSR Layout"))
	assert.NoError(t, ValidateCustomArea("", ""))
	assert.ErrorIs(t, ValidateCustomArea("", AreaOther), ErrRequired)
	assert.ErrorIs(t, ValidateCustomArea("  ", AreaOther), ErrRequired)
	assert.NoError(t, ValidateCustomArea("Indiranagar", AreaOther))
}

func TestValidatorsAreIdempotent(t *testing.T) {
	inputs := []string{"", "a", "1234567890", "abc", "aditi@example.com"}
	for _, in := range inputs {
		for _, field := range Fields {
			first := ValidateField(field, in, AreaOther)
			second := ValidateField(field, in, AreaOther)
			if (first == nil) != (second == nil) {
				t.Fatalf("%s(%q) not idempotent: %v vs %v", field, in, first, second)
			}
			if first != nil && first.Error() != second.Error() {
				t.Fatalf("%s(%q) returned different errors: %v vs %v", field, in, first, second)
			}
		}
	}
}

func TestFieldErrorMessage(t *testing.T) {
	err := ValidatePhone("12345")
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FieldPhone, fe.Field)
	assert.Equal(t, "Please enter a valid 10-digit mobile number", fe.Message())
	assert.True(t, strings.HasPrefix(fe.Error(), "phone:"))
}

func TestValidateRecordCollectsEveryField(t *testing.T) {
	errs := ValidateRecord(Record{Area: AreaOther})
	assert.Len(t, errs, 4)
	for _, f := range []Field{FieldName, FieldPhone, FieldEmail, FieldCustomArea} {
		assert.Contains(t, errs, f)
	}
	assert.NotContains(t, errs, FieldArea)
}

func TestCatalogValidateArea(t *testing.T) {
	c := testCatalog()
	assert.NoError(t, c.ValidateArea("Koramangala"))
	assert.NoError(t, c.ValidateArea(" HSR Layout "))
	assert.NoError(t, c.ValidateArea(AreaOther))
	assert.ErrorIs(t, c.ValidateArea(""), ErrRequired)
	assert.ErrorIs(t, c.ValidateArea("Mars Colony"), ErrInvalidOption)
	assert.ErrorIs(t, c.ValidateArea("koramangala"), ErrInvalidOption)

	errs := c.ValidateRecord(Record{Name: "Aditi Rao", Phone: "9876543210", Email: "aditi@example.com", Area: "Mars Colony"})
	require.Contains(t, errs, FieldArea)
	assert.Equal(t, "Please select an area from the list", errs[FieldArea].Message())
	assert.Len(t, errs, 1)
}

func TestParseField(t *testing.T) {
	f, err := ParseField(" Custom_Area ")
	require.NoError(t, err)
	assert.Equal(t, FieldCustomArea, f)

	_, err = ParseField("age")
	assert.ErrorIs(t, err, ErrUnknownField)
}
