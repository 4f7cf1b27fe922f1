package mpesa

import (
	"errors"
	"fmt"
)

var (
	// ErrCredential is returned when a bearer token could not be
	// acquired from the gateway's OAuth endpoint.
	ErrCredential = errors.New("failed to acquire gateway credential")

	// ErrUnreachable is returned on transport-level failures (timeout,
	// connection refused). No gateway-side state has changed and the
	// request is safe to retry.
	ErrUnreachable = errors.New("gateway unreachable")

	// ErrInvalidPhoneNumber is returned when a phone number cannot be
	// reduced to a valid subscriber number.
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
)

// GatewayError is returned when the gateway understood the push request
// and declined it, either with a non-2xx status or with an error code
// embedded in a 2xx body.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway rejected request: %s (%s)", e.Message, e.Code)
}

// friendlyMessages maps known gateway error codes to actionable text.
var friendlyMessages = map[string]string{
	"404.001.03": "Invalid M-Pesa credentials. Verify the consumer key, consumer secret and shortcode belong to the same app.",
	"500.001.1001": "A payment request for this number is already being processed. Wait for the prompt to expire and try again.",
}

// newGatewayError builds a GatewayError, substituting a friendlier
// message for codes we recognize.
func newGatewayError(code, message string) *GatewayError {
	if friendly, ok := friendlyMessages[code]; ok {
		message = friendly
	}
	if message == "" {
		message = "failed to initiate payment"
	}
	return &GatewayError{Code: code, Message: message}
}
