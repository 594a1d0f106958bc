package domain

import (
	"strings"

	apperrors "github.com/utafrali/sixty60/pkg/errors"
)

const invalidPhoneMessage = "Invalid phone number. Use South African format like 0821234567 or +27821234567."

// NormalizePhone converts a South African mobile number into E.164 form.
// Every non-digit is dropped first, so "+27 82 123 4567" and "082-123-4567"
// both come out as +27821234567. Normalizing an E.164 value returns it unchanged.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "27") && len(digits) == 11:
		return "+" + digits, nil
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		return "+27" + digits[1:], nil
	case len(digits) == 9:
		return "+27" + digits, nil
	default:
		return "", apperrors.InvalidInput(invalidPhoneMessage)
	}
}
