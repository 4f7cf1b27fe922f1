package domain

import "time"

// LoanStatus represents the current status of a loan application.
// Transitions are monotonic: created -> pending_payment -> paid | rejected.
type LoanStatus string

const (
	LoanStatusCreated        LoanStatus = "created"
	LoanStatusPendingPayment LoanStatus = "pending_payment"
	LoanStatusPaid           LoanStatus = "paid"
	LoanStatusRejected       LoanStatus = "rejected"
)

// IsTerminal reports whether no further status transition may occur.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusPaid || s == LoanStatusRejected
}

// LoanType represents the product variant applied for.
type LoanType string

const (
	LoanTypeQuick     LoanType = "quick"
	LoanTypeEmergency LoanType = "emergency"
	LoanTypeBusiness  LoanType = "business"
)

// ApplicationFee is the fixed fee (KES) charged for every application.
const ApplicationFee = 230

// LoanApplication represents one loan application and the state of its
// application-fee payment.
type LoanApplication struct {
	ID                    string
	FirstName             string
	SecondName            string
	IDNumber              string
	PhoneNumber           string
	MonthlyEarnings       string
	LoanType              LoanType
	LoanAmount            int64
	ApplicationFee        int64
	InterestRate          float64
	RepaymentPeriodMonths int
	Status                LoanStatus

	// CheckoutRequestID is the gateway correlation id for the current
	// push attempt. Empty until an initiation has completed.
	CheckoutRequestID string

	// MpesaReceiptNumber is the gateway settlement id, set only once
	// the application is paid.
	MpesaReceiptNumber string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasLivePushAttempt reports whether a push attempt is awaiting its
// callback, meaning a new initiation must be refused.
func (l *LoanApplication) HasLivePushAttempt() bool {
	return l.Status == LoanStatusPendingPayment && l.CheckoutRequestID != ""
}
