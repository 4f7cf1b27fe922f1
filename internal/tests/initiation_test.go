package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"xangloans/internal/domain"
	"xangloans/internal/mpesa"
	"xangloans/internal/repository"
	"xangloans/internal/service"
)

// ──────────────────────────────────────────────
// 1. PAYMENT INITIATION
// ──────────────────────────────────────────────

func newCreatedLoan(id string) *domain.LoanApplication {
	now := time.Now()
	return &domain.LoanApplication{
		ID:             id,
		FirstName:      "Amina",
		SecondName:     "Wanjiru",
		IDNumber:       "12345678",
		PhoneNumber:    "254712345678",
		LoanType:       domain.LoanTypeQuick,
		LoanAmount:     5000,
		ApplicationFee: domain.ApplicationFee,
		Status:         domain.LoanStatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestInitiate_SubmitsPushAndRecordsCheckoutReference(t *testing.T) {
	t.Parallel()

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(newCreatedLoan("A1"))
	gateway := NewMockGateway("ws_1")

	paymentService := service.NewPaymentService(loanRepo, gateway, NewMockLockStore(), NewMockStatusCache(), nil)

	result, err := paymentService.Initiate(context.Background(), service.InitiateRequest{LoanID: "A1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.CheckoutRequestID != "ws_1" {
		t.Errorf("expected checkout ws_1, got %q", result.CheckoutRequestID)
	}

	loan := loanRepo.GetLoan("A1")
	if loan.Status != domain.LoanStatusPendingPayment {
		t.Errorf("expected pending_payment, got %s", loan.Status)
	}
	if loan.CheckoutRequestID != "ws_1" {
		t.Errorf("expected stored checkout ws_1, got %q", loan.CheckoutRequestID)
	}

	if gateway.LastAmount != domain.ApplicationFee {
		t.Errorf("expected the fixed fee %d, got %d", domain.ApplicationFee, gateway.LastAmount)
	}
	if gateway.LastAccountReference != "A1" {
		t.Errorf("expected account reference A1, got %q", gateway.LastAccountReference)
	}
}

func TestInitiate_NormalizesPhoneNumberBeforeAnyNetworkCall(t *testing.T) {
	t.Parallel()

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(newCreatedLoan("A1"))
	gateway := NewMockGateway("ws_1")

	paymentService := service.NewPaymentService(loanRepo, gateway, nil, nil, nil)

	_, err := paymentService.Initiate(context.Background(), service.InitiateRequest{
		LoanID:      "A1",
		PhoneNumber: "0712 345-678",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gateway.LastPhoneNumber != "254712345678" {
		t.Errorf("expected canonical number, got %q", gateway.LastPhoneNumber)
	}
}

func TestInitiate_MalformedPhoneNumberFailsWithoutPush(t *testing.T) {
	t.Parallel()

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(newCreatedLoan("A1"))
	gateway := NewMockGateway("ws_1")

	paymentService := service.NewPaymentService(loanRepo, gateway, nil, nil, nil)

	_, err := paymentService.Initiate(context.Background(), service.InitiateRequest{
		LoanID:      "A1",
		PhoneNumber: "not-a-number",
	})
	if !errors.Is(err, mpesa.ErrInvalidPhoneNumber) {
		t.Fatalf("expected ErrInvalidPhoneNumber, got %v", err)
	}
	if gateway.PushCallCount != 0 {
		t.Errorf("expected no push for malformed input, got %d", gateway.PushCallCount)
	}
	if loan := loanRepo.GetLoan("A1"); loan.Status != domain.LoanStatusCreated {
		t.Errorf("expected status unchanged, got %s", loan.Status)
	}
}

func TestInitiate_SecondAttemptWhilePendingIsRejected(t *testing.T) {
	t.Parallel()

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(newCreatedLoan("A1"))
	gateway := NewMockGateway("ws_1")

	paymentService := service.NewPaymentService(loanRepo, gateway, NewMockLockStore(), nil, nil)

	if _, err := paymentService.Initiate(context.Background(), service.InitiateRequest{LoanID: "A1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := paymentService.Initiate(context.Background(), service.InitiateRequest{LoanID: "A1"})
	if !errors.Is(err, service.ErrAlreadyInitiated) {
		t.Fatalf("expected ErrAlreadyInitiated, got %v", err)
	}

	// The live checkout reference was not replaced.
	if loan := loanRepo.GetLoan("A1"); loan.CheckoutRequestID != "ws_1" {
		t.Errorf("checkout reference replaced: %q", loan.CheckoutRequestID)
	}
	if gateway.PushCallCount != 1 {
		t.Errorf("expected a single push, got %d", gateway.PushCallCount)
	}
}

func TestInitiate_RejectedApplicationMayRetry(t *testing.T) {
	t.Parallel()

	loan := newCreatedLoan("A1")
	loan.Status = domain.LoanStatusRejected
	loan.CheckoutRequestID = "ws_old"

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(loan)
	gateway := NewMockGateway("ws_new")

	paymentService := service.NewPaymentService(loanRepo, gateway, NewMockLockStore(), nil, nil)

	result, err := paymentService.Initiate(context.Background(), service.InitiateRequest{LoanID: "A1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CheckoutRequestID != "ws_new" {
		t.Errorf("expected fresh checkout reference, got %q", result.CheckoutRequestID)
	}
	if stored := loanRepo.GetLoan("A1"); stored.Status != domain.LoanStatusPendingPayment {
		t.Errorf("expected pending_payment, got %s", stored.Status)
	}
}

func TestInitiate_PaidApplicationIsRefused(t *testing.T) {
	t.Parallel()

	loan := newCreatedLoan("A1")
	loan.Status = domain.LoanStatusPaid
	loan.CheckoutRequestID = "ws_1"
	loan.MpesaReceiptNumber = "QCE123"

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(loan)
	gateway := NewMockGateway("ws_2")

	paymentService := service.NewPaymentService(loanRepo, gateway, nil, nil, nil)

	_, err := paymentService.Initiate(context.Background(), service.InitiateRequest{LoanID: "A1"})
	if !errors.Is(err, service.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
	if gateway.PushCallCount != 0 {
		t.Errorf("expected no push for a paid application, got %d", gateway.PushCallCount)
	}
}

func TestInitiate_GatewayRejectionLeavesStatusUnchanged(t *testing.T) {
	t.Parallel()

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(newCreatedLoan("A1"))
	gateway := NewMockGateway("ws_1")
	gateway.Err = &mpesa.GatewayError{Code: "400.002.02", Message: "Bad Request - Invalid Amount"}

	paymentService := service.NewPaymentService(loanRepo, gateway, NewMockLockStore(), nil, nil)

	_, err := paymentService.Initiate(context.Background(), service.InitiateRequest{LoanID: "A1"})
	var gatewayErr *mpesa.GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}

	loan := loanRepo.GetLoan("A1")
	if loan.Status != domain.LoanStatusCreated {
		t.Errorf("expected status unchanged, got %s", loan.Status)
	}
	if loan.CheckoutRequestID != "" {
		t.Errorf("expected no checkout reference, got %q", loan.CheckoutRequestID)
	}
}

func TestInitiate_UnreachableGatewayAllowsRetry(t *testing.T) {
	t.Parallel()

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(newCreatedLoan("A1"))
	gateway := NewMockGateway("ws_1")
	gateway.Err = mpesa.ErrUnreachable

	paymentService := service.NewPaymentService(loanRepo, gateway, NewMockLockStore(), nil, nil)

	_, err := paymentService.Initiate(context.Background(), service.InitiateRequest{LoanID: "A1"})
	if !errors.Is(err, mpesa.ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}

	// Pre-initiation state preserved; a retry succeeds.
	gateway.Err = nil
	if _, err := paymentService.Initiate(context.Background(), service.InitiateRequest{LoanID: "A1"}); err != nil {
		t.Fatalf("retry after transport failure failed: %v", err)
	}
}

func TestInitiate_LostConditionalWriteIsPersistenceError(t *testing.T) {
	t.Parallel()

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(newCreatedLoan("A1"))
	gateway := NewMockGateway("ws_1")
	lockStore := NewMockLockStore()

	paymentService := service.NewPaymentService(loanRepo, gateway, lockStore, nil, nil)

	// Simulate a concurrent initiation winning the race between our
	// precondition read and the conditional write.
	loanRepo.BeginPaymentError = repository.ErrConflict

	_, err := paymentService.Initiate(context.Background(), service.InitiateRequest{LoanID: "A1"})
	if !errors.Is(err, service.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if gateway.PushCallCount != 1 {
		t.Errorf("expected the push to have been submitted before the write, got %d", gateway.PushCallCount)
	}
}
