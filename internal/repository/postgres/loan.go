package postgres

import (
	"context"
	"database/sql"
	"errors"

	"xangloans/internal/domain"
	"xangloans/internal/repository"
)

// LoanRepository is a PostgreSQL implementation of repository.LoanRepository.
type LoanRepository struct {
	q Querier
}

// NewLoanRepository creates a new PostgreSQL loan repository.
func NewLoanRepository(db *sql.DB) *LoanRepository {
	return &LoanRepository{q: db}
}

// NewLoanRepositoryWithTx creates a loan repository using a transaction.
func NewLoanRepositoryWithTx(tx *sql.Tx) *LoanRepository {
	return &LoanRepository{q: tx}
}

const loanColumns = `id, first_name, second_name, id_number, phone_number, monthly_earnings, loan_type, loan_amount, application_fee, interest_rate, repayment_period_months, status, checkout_request_id, mpesa_receipt_number, created_at, updated_at`

// Create persists a new loan application.
func (r *LoanRepository) Create(ctx context.Context, loan *domain.LoanApplication) error {
	query := `
		INSERT INTO loan_applications (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	var checkoutRequestID sql.NullString
	if loan.CheckoutRequestID != "" {
		checkoutRequestID = sql.NullString{String: loan.CheckoutRequestID, Valid: true}
	}

	var receiptNumber sql.NullString
	if loan.MpesaReceiptNumber != "" {
		receiptNumber = sql.NullString{String: loan.MpesaReceiptNumber, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		loan.ID,
		loan.FirstName,
		loan.SecondName,
		loan.IDNumber,
		loan.PhoneNumber,
		loan.MonthlyEarnings,
		loan.LoanType,
		loan.LoanAmount,
		loan.ApplicationFee,
		loan.InterestRate,
		loan.RepaymentPeriodMonths,
		loan.Status,
		checkoutRequestID,
		receiptNumber,
		loan.CreatedAt,
		loan.UpdatedAt,
	)

	return err
}

// GetByID retrieves a loan application by ID.
func (r *LoanRepository) GetByID(ctx context.Context, id string) (*domain.LoanApplication, error) {
	query := `SELECT ` + loanColumns + ` FROM loan_applications WHERE id = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, id))
}

// GetByCheckoutRequestID retrieves the loan application holding the
// given checkout reference.
func (r *LoanRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.LoanApplication, error) {
	query := `SELECT ` + loanColumns + ` FROM loan_applications WHERE checkout_request_id = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, checkoutRequestID))
}

// BeginPayment records the checkout reference for a new push attempt
// and moves the application to pending_payment. The status predicate
// makes the write conditional: if another initiation (or a callback)
// changed the row since it was read, zero rows match and ErrConflict
// is returned.
func (r *LoanRepository) BeginPayment(ctx context.Context, id, checkoutRequestID string, expectedStatus domain.LoanStatus) error {
	query := `
		UPDATE loan_applications
		SET checkout_request_id = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.q.ExecContext(ctx, query,
		checkoutRequestID,
		domain.LoanStatusPendingPayment,
		id,
		expectedStatus,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrConflict
	}

	return nil
}

// ResolvePayment applies a terminal status for the push attempt
// identified by checkoutRequestID. The predicate enforces idempotency:
// a duplicate or stale callback matches zero rows.
func (r *LoanRepository) ResolvePayment(ctx context.Context, id, checkoutRequestID string, status domain.LoanStatus, receiptNumber string) error {
	query := `
		UPDATE loan_applications
		SET status = $1, mpesa_receipt_number = $2, updated_at = NOW()
		WHERE id = $3 AND checkout_request_id = $4 AND status = $5
	`

	var receipt sql.NullString
	if receiptNumber != "" {
		receipt = sql.NullString{String: receiptNumber, Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query,
		status,
		receipt,
		id,
		checkoutRequestID,
		domain.LoanStatusPendingPayment,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrConflict
	}

	return nil
}

func (r *LoanRepository) scanOne(row *sql.Row) (*domain.LoanApplication, error) {
	var loan domain.LoanApplication
	var checkoutRequestID sql.NullString
	var receiptNumber sql.NullString

	err := row.Scan(
		&loan.ID,
		&loan.FirstName,
		&loan.SecondName,
		&loan.IDNumber,
		&loan.PhoneNumber,
		&loan.MonthlyEarnings,
		&loan.LoanType,
		&loan.LoanAmount,
		&loan.ApplicationFee,
		&loan.InterestRate,
		&loan.RepaymentPeriodMonths,
		&loan.Status,
		&checkoutRequestID,
		&receiptNumber,
		&loan.CreatedAt,
		&loan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if checkoutRequestID.Valid {
		loan.CheckoutRequestID = checkoutRequestID.String
	}
	if receiptNumber.Valid {
		loan.MpesaReceiptNumber = receiptNumber.String
	}

	return &loan, nil
}
