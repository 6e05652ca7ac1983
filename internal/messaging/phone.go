package messaging

import "strings"

// DefaultCountryCode is prefixed to 10-digit national numbers.
const DefaultCountryCode = "91"

func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeE164 returns +<country><number>. Ten-digit national numbers get the
// country code; anything already carrying a + is kept as dialed.
func NormalizeE164(value, countryCode string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(value, "+") {
		return "+" + digits
	}
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	if len(digits) == 10 {
		return "+" + countryCode + digits
	}
	if len(digits) == 11 && digits[0] == '0' {
		return "+" + countryCode + digits[1:]
	}
	return "+" + digits
}

// MaskPhone keeps the last four digits for logs.
func MaskPhone(value string) string {
	digits := sanitizePhone(value)
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
