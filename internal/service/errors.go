package service

import "errors"

var (
	// ErrInvalidLoanID is returned when a loan application ID is empty.
	ErrInvalidLoanID = errors.New("invalid loan application id")

	// ErrInvalidApplicantName is returned when the applicant name is missing.
	ErrInvalidApplicantName = errors.New("invalid applicant name")

	// ErrInvalidIDNumber is returned when the national ID number is missing.
	ErrInvalidIDNumber = errors.New("invalid id number")

	// ErrInvalidLoanType is returned when the loan type is not a known product.
	ErrInvalidLoanType = errors.New("invalid loan type")

	// ErrInvalidLoanAmount is returned when the requested amount is not positive.
	ErrInvalidLoanAmount = errors.New("invalid loan amount")

	// ErrInvalidPaymentAmount is returned when the fee amount is negative.
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")

	// ErrAlreadyInitiated is returned when a push attempt is already
	// awaiting its callback for the application.
	ErrAlreadyInitiated = errors.New("payment already initiated")

	// ErrAlreadyPaid is returned when the application fee has already
	// been settled.
	ErrAlreadyPaid = errors.New("application fee already paid")

	// ErrPersistence is returned when the store write after a
	// successful push submission could not apply. The issued checkout
	// reference is orphaned and must not be treated as authoritative.
	ErrPersistence = errors.New("failed to persist payment state")

	// ErrReconciliationMiss is returned when a callback references a
	// checkout id no application holds. Logged and acknowledged,
	// never surfaced to the gateway.
	ErrReconciliationMiss = errors.New("callback references unknown checkout request id")

	// ErrDuplicateCallback is returned when a callback arrives for an
	// attempt that is already resolved or superseded. Idempotent no-op.
	ErrDuplicateCallback = errors.New("duplicate or stale callback")

	// ErrPollTimeout is returned when a status poll reaches its
	// wall-clock ceiling without observing a terminal status. The
	// payment may still resolve later via callback.
	ErrPollTimeout = errors.New("poll timed out before a terminal status")

	// ErrInvalidPollConfig is returned when the poll interval or
	// duration is not positive.
	ErrInvalidPollConfig = errors.New("invalid poll interval or duration")
)
