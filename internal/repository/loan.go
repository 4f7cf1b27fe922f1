package repository

import (
	"context"

	"xangloans/internal/domain"
)

// LoanRepository defines the persistence operations for loan
// applications. The conditional updates are the only cross-operation
// ordering the payment flow relies on: "update iff the row still
// matches the expected state" substitutes for coarse locking.
type LoanRepository interface {
	// Create persists a new loan application.
	Create(ctx context.Context, loan *domain.LoanApplication) error

	// GetByID retrieves a loan application by ID.
	GetByID(ctx context.Context, id string) (*domain.LoanApplication, error)

	// GetByCheckoutRequestID retrieves the loan application whose
	// current checkout reference equals the given correlation id.
	// Returns ErrNotFound if no application matches.
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.LoanApplication, error)

	// BeginPayment records a freshly issued checkout reference and
	// moves the application to pending_payment, but only if its status
	// is still the one observed before the push was submitted.
	// Returns ErrConflict if a concurrent initiation won the race.
	BeginPayment(ctx context.Context, id, checkoutRequestID string, expectedStatus domain.LoanStatus) error

	// ResolvePayment applies a terminal status from a gateway callback.
	// The write applies only if the row's checkout reference still
	// equals checkoutRequestID and its status is still pending_payment;
	// otherwise ErrConflict is returned and the caller treats the
	// callback as a duplicate.
	ResolvePayment(ctx context.Context, id, checkoutRequestID string, status domain.LoanStatus, receiptNumber string) error
}
