package tests

import (
	"context"
	"errors"
	"testing"

	"xangloans/internal/domain"
	"xangloans/internal/mpesa"
	"xangloans/internal/service"
)

// ──────────────────────────────────────────────
// 2. CALLBACK RECONCILIATION
// ──────────────────────────────────────────────

func successCallback(checkoutRequestID, receipt string) mpesa.StkCallback {
	return mpesa.StkCallback{
		MerchantRequestID: "mr_1",
		CheckoutRequestID: checkoutRequestID,
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		CallbackMetadata: &mpesa.CallbackMetadata{
			Item: []mpesa.MetadataItem{
				{Name: "Amount", Value: float64(230)},
				{Name: "MpesaReceiptNumber", Value: receipt},
				{Name: "PhoneNumber", Value: float64(254712345678)},
			},
		},
	}
}

// pendingLoan returns a loan mid-payment, awaiting callback ws_1.
func pendingLoan(id string) *domain.LoanApplication {
	loan := newCreatedLoan(id)
	loan.Status = domain.LoanStatusPendingPayment
	loan.CheckoutRequestID = "ws_1"
	return loan
}

func TestCallback_SuccessfulPaymentResolvesToPaid(t *testing.T) {
	t.Parallel()

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(pendingLoan("A1"))
	cache := NewMockStatusCache()

	paymentService := service.NewPaymentService(loanRepo, nil, nil, cache, service.NewNotificationService())

	err := paymentService.HandleCallback(context.Background(), successCallback("ws_1", "QCE123"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loan := loanRepo.GetLoan("A1")
	if loan.Status != domain.LoanStatusPaid {
		t.Errorf("expected paid, got %s", loan.Status)
	}
	if loan.MpesaReceiptNumber != "QCE123" {
		t.Errorf("expected receipt QCE123, got %q", loan.MpesaReceiptNumber)
	}
	if cache.InvalidateCallCount != 1 {
		t.Errorf("expected the status cache to be invalidated once, got %d", cache.InvalidateCallCount)
	}
}

func TestCallback_CancellationResolvesToRejected(t *testing.T) {
	t.Parallel()

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(pendingLoan("A1"))

	paymentService := service.NewPaymentService(loanRepo, nil, nil, nil, nil)

	err := paymentService.HandleCallback(context.Background(), mpesa.StkCallback{
		CheckoutRequestID: "ws_1",
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loan := loanRepo.GetLoan("A1")
	if loan.Status != domain.LoanStatusRejected {
		t.Errorf("expected rejected, got %s", loan.Status)
	}
	if loan.MpesaReceiptNumber != "" {
		t.Errorf("expected no receipt on rejection, got %q", loan.MpesaReceiptNumber)
	}
}

func TestCallback_DuplicateDeliveryIsIdempotent(t *testing.T) {
	t.Parallel()

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(pendingLoan("A1"))

	paymentService := service.NewPaymentService(loanRepo, nil, nil, nil, nil)

	cb := successCallback("ws_1", "QCE123")
	if err := paymentService.HandleCallback(context.Background(), cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Exact same payload delivered again.
	err := paymentService.HandleCallback(context.Background(), cb)
	if !errors.Is(err, service.ErrDuplicateCallback) {
		t.Fatalf("expected ErrDuplicateCallback, got %v", err)
	}

	// Exactly one resolution happened.
	if loanRepo.ResolvePaymentCallCount != 1 {
		t.Errorf("expected 1 resolve, got %d", loanRepo.ResolvePaymentCallCount)
	}
	if loan := loanRepo.GetLoan("A1"); loan.Status != domain.LoanStatusPaid {
		t.Errorf("status changed by duplicate, got %s", loan.Status)
	}
}

func TestCallback_ConflictingDuplicateAfterRejection(t *testing.T) {
	t.Parallel()

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(pendingLoan("A1"))

	paymentService := service.NewPaymentService(loanRepo, nil, nil, nil, nil)

	// Cancellation lands first, a success for the same reference
	// arrives out of order afterwards.
	if err := paymentService.HandleCallback(context.Background(), mpesa.StkCallback{
		CheckoutRequestID: "ws_1",
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := paymentService.HandleCallback(context.Background(), successCallback("ws_1", "QCE123"))
	if !errors.Is(err, service.ErrDuplicateCallback) {
		t.Fatalf("expected ErrDuplicateCallback, got %v", err)
	}

	// The terminal status is never moved.
	loan := loanRepo.GetLoan("A1")
	if loan.Status != domain.LoanStatusRejected {
		t.Errorf("terminal status mutated, got %s", loan.Status)
	}
	if loan.MpesaReceiptNumber != "" {
		t.Errorf("receipt written by stale callback: %q", loan.MpesaReceiptNumber)
	}
}

func TestCallback_UnknownReferenceIsReconciliationMiss(t *testing.T) {
	t.Parallel()

	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(pendingLoan("A1"))

	paymentService := service.NewPaymentService(loanRepo, nil, nil, nil, nil)

	err := paymentService.HandleCallback(context.Background(), successCallback("ws_unknown", "QCE999"))
	if !errors.Is(err, service.ErrReconciliationMiss) {
		t.Fatalf("expected ErrReconciliationMiss, got %v", err)
	}

	// No record was mutated.
	if loanRepo.ResolvePaymentCallCount != 0 {
		t.Errorf("expected no resolve attempts, got %d", loanRepo.ResolvePaymentCallCount)
	}
	if loan := loanRepo.GetLoan("A1"); loan.Status != domain.LoanStatusPendingPayment {
		t.Errorf("unrelated record mutated, got %s", loan.Status)
	}
}

func TestCallback_StaleReferenceNeverMutates(t *testing.T) {
	t.Parallel()

	// The application was re-initiated: ws_old was superseded by ws_1.
	loan := pendingLoan("A1")
	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(loan)

	paymentService := service.NewPaymentService(loanRepo, nil, nil, nil, nil)

	err := paymentService.HandleCallback(context.Background(), successCallback("ws_old", "QCE123"))
	if !errors.Is(err, service.ErrReconciliationMiss) {
		t.Fatalf("expected ErrReconciliationMiss for superseded reference, got %v", err)
	}
	if stored := loanRepo.GetLoan("A1"); stored.Status != domain.LoanStatusPendingPayment {
		t.Errorf("record mutated by stale callback, got %s", stored.Status)
	}
}

func TestCallback_EndToEndPaidScenario(t *testing.T) {
	t.Parallel()

	loanRepo := NewMockLoanRepository()
	loan := newCreatedLoan("A1")
	loan.ApplicationFee = 230
	loanRepo.AddLoan(loan)
	gateway := NewMockGateway("ws_1")
	cache := NewMockStatusCache()

	paymentService := service.NewPaymentService(loanRepo, gateway, NewMockLockStore(), cache, nil)

	result, err := paymentService.Initiate(context.Background(), service.InitiateRequest{LoanID: "A1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CheckoutRequestID != "ws_1" {
		t.Fatalf("expected ws_1, got %q", result.CheckoutRequestID)
	}
	if status, _ := paymentService.PaymentStatus(context.Background(), "A1"); status != domain.LoanStatusPendingPayment {
		t.Fatalf("expected pending_payment after initiation, got %s", status)
	}

	if err := paymentService.HandleCallback(context.Background(), successCallback("ws_1", "QCE123")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, err := paymentService.PaymentStatus(context.Background(), "A1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != domain.LoanStatusPaid {
		t.Errorf("expected paid, got %s", status)
	}
	if stored := loanRepo.GetLoan("A1"); stored.MpesaReceiptNumber != "QCE123" {
		t.Errorf("expected receipt QCE123, got %q", stored.MpesaReceiptNumber)
	}
}
