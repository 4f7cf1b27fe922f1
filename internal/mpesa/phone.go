package mpesa

import (
	"fmt"
	"strings"
)

const countryCode = "254"

// subscriberDigits is the length of a Kenyan subscriber number without
// the country code or trunk prefix.
const subscriberDigits = 9

// FormatPhoneNumber normalizes a phone number to the canonical
// 254XXXXXXXXX form the gateway expects. Spaces, dashes and a leading
// plus are stripped; a leading trunk zero is replaced with the country
// code; a bare subscriber number gets the country code prepended.
// Input that cannot be reduced to a valid subscriber number fails with
// ErrInvalidPhoneNumber. Normalization is idempotent.
func FormatPhoneNumber(phone string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "+", "").Replace(phone)

	if cleaned == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidPhoneNumber)
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q contains non-digit characters", ErrInvalidPhoneNumber, phone)
		}
	}

	switch {
	case strings.HasPrefix(cleaned, "0"):
		cleaned = countryCode + cleaned[1:]
	case !strings.HasPrefix(cleaned, countryCode):
		cleaned = countryCode + cleaned
	}

	if len(cleaned) != len(countryCode)+subscriberDigits {
		return "", fmt.Errorf("%w: %q does not reduce to a %d-digit subscriber number", ErrInvalidPhoneNumber, phone, subscriberDigits)
	}

	return cleaned, nil
}
