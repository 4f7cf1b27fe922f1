package service

import (
	"context"
	"time"

	"xangloans/internal/domain"
)

// StatusReader reads the current payment status of an application.
type StatusReader interface {
	PaymentStatus(ctx context.Context, loanID string) (domain.LoanStatus, error)
}

// StatusPoller waits for a payment to reach a terminal status by
// polling the record store at a fixed cadence. Polling is read-only:
// cancelling or timing out leaves the application untouched.
type StatusPoller struct {
	reader StatusReader
}

// NewStatusPoller creates a new StatusPoller.
func NewStatusPoller(reader StatusReader) *StatusPoller {
	return &StatusPoller{reader: reader}
}

// WaitForOutcome polls every interval until it observes paid or
// rejected, the context is cancelled, or maxDuration elapses. On
// timeout it returns the last observed status together with
// ErrPollTimeout, since the payment may still resolve later via
// callback. Cancellation takes effect at tick boundaries.
func (p *StatusPoller) WaitForOutcome(ctx context.Context, loanID string, interval, maxDuration time.Duration) (domain.LoanStatus, error) {
	if loanID == "" {
		return "", ErrInvalidLoanID
	}
	if interval <= 0 || maxDuration <= 0 {
		return "", ErrInvalidPollConfig
	}

	start := time.Now()

	status, err := p.reader.PaymentStatus(ctx, loanID)
	if err != nil {
		return "", err
	}
	if status.IsTerminal() {
		return status, nil
	}

	deadline := time.NewTimer(maxDuration)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-deadline.C:
			return status, ErrPollTimeout
		case <-ticker.C:
			// A tick can race the deadline; do not spend an extra
			// read past the ceiling.
			if time.Since(start) >= maxDuration {
				return status, ErrPollTimeout
			}
			status, err = p.reader.PaymentStatus(ctx, loanID)
			if err != nil {
				return "", err
			}
			if status.IsTerminal() {
				return status, nil
			}
		}
	}
}
