package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"xangloans/internal/domain"
	"xangloans/internal/mpesa"
	"xangloans/internal/redis"
	"xangloans/internal/repository"
)

// initiationLockTTL bounds how long a crashed initiation can hold the
// per-loan lock.
const initiationLockTTL = 30 * time.Second

// transactionDesc labels the push on the payer's statement.
const transactionDesc = "Xangloans Application Fee"

// Gateway is the interface to the mobile-money provider.
type Gateway interface {
	STKPush(ctx context.Context, phoneNumber string, amount int64, accountReference, description string) (*mpesa.STKPushResponse, error)
}

// PaymentService orchestrates fee payments: push initiation, callback
// reconciliation and status reads.
type PaymentService struct {
	loanRepo            repository.LoanRepository
	gateway             Gateway
	lockStore           redis.LockStoreInterface
	statusCache         redis.StatusCacheInterface
	notificationService *NotificationService
}

// NewPaymentService creates a new PaymentService. lockStore,
// statusCache and notificationService are optional.
func NewPaymentService(
	loanRepo repository.LoanRepository,
	gateway Gateway,
	lockStore redis.LockStoreInterface,
	statusCache redis.StatusCacheInterface,
	notificationService *NotificationService,
) *PaymentService {
	return &PaymentService{
		loanRepo:            loanRepo,
		gateway:             gateway,
		lockStore:           lockStore,
		statusCache:         statusCache,
		notificationService: notificationService,
	}
}

// InitiateRequest contains the parameters for initiating a fee payment.
type InitiateRequest struct {
	LoanID string

	// PhoneNumber overrides the number on the application. Optional.
	PhoneNumber string

	// Amount overrides the application fee. Zero means charge the fee.
	Amount int64
}

// InitiateResult reports a successfully submitted push.
type InitiateResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	CustomerMessage   string
}

// Initiate submits one STK push for the application fee. At most one
// push attempt may be live per application: a second initiation while
// one is pending_payment fails with ErrAlreadyInitiated rather than
// silently replacing the checkout reference. A rejected application
// may be re-initiated; a paid one may not.
func (s *PaymentService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if req.LoanID == "" {
		return nil, ErrInvalidLoanID
	}
	if req.Amount < 0 {
		return nil, ErrInvalidPaymentAmount
	}

	loan, err := s.loanRepo.GetByID(ctx, req.LoanID)
	if err != nil {
		return nil, err
	}

	if loan.HasLivePushAttempt() {
		return nil, ErrAlreadyInitiated
	}
	if loan.Status == domain.LoanStatusPaid {
		return nil, ErrAlreadyPaid
	}

	phone := req.PhoneNumber
	if phone == "" {
		phone = loan.PhoneNumber
	}
	formattedPhone, err := mpesa.FormatPhoneNumber(phone)
	if err != nil {
		return nil, err
	}

	amount := req.Amount
	if amount == 0 {
		amount = loan.ApplicationFee
	}

	// The lock narrows the race window before the push is submitted;
	// the conditional BeginPayment write is still the authority.
	if s.lockStore != nil {
		acquired, lockErr := s.lockStore.AcquireInitiationLock(ctx, loan.ID, initiationLockTTL)
		if lockErr != nil {
			// Redis being down must not block payments.
			log.Printf("initiation lock unavailable for loan %s: %v", loan.ID, lockErr)
		} else if !acquired {
			return nil, ErrAlreadyInitiated
		} else {
			defer func() {
				if relErr := s.lockStore.ReleaseInitiationLock(ctx, loan.ID); relErr != nil {
					log.Printf("failed to release initiation lock for loan %s: %v", loan.ID, relErr)
				}
			}()
		}
	}

	pushResp, err := s.gateway.STKPush(ctx, formattedPhone, amount, loan.ID, transactionDesc)
	if err != nil {
		return nil, err
	}

	if err := s.loanRepo.BeginPayment(ctx, loan.ID, pushResp.CheckoutRequestID, loan.Status); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// The gateway may still deliver a callback for this
			// reference with no row to resolve it against.
			log.Printf("reconciliation risk: checkout request %s for loan %s orphaned by a lost conditional write", pushResp.CheckoutRequestID, loan.ID)
			return nil, fmt.Errorf("%w: concurrent initiation won the race", ErrPersistence)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.invalidateStatus(ctx, loan.ID)

	if s.notificationService != nil {
		_ = s.notificationService.NotifyPaymentRequested(ctx, loan, formattedPhone)
	}

	return &InitiateResult{
		CheckoutRequestID: pushResp.CheckoutRequestID,
		MerchantRequestID: pushResp.MerchantRequestID,
		CustomerMessage:   "Payment request sent. Please check your phone.",
	}, nil
}

// HandleCallback reconciles one gateway callback into the loan record.
// It is idempotent under duplicate and out-of-order delivery: only the
// first callback for a live checkout reference transitions the status.
// The returned error is for operators only; the webhook handler
// acknowledges the gateway regardless.
func (s *PaymentService) HandleCallback(ctx context.Context, cb mpesa.StkCallback) error {
	if cb.CheckoutRequestID == "" {
		return ErrReconciliationMiss
	}

	loan, err := s.loanRepo.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrReconciliationMiss, cb.CheckoutRequestID)
		}
		return err
	}

	if loan.Status != domain.LoanStatusPendingPayment {
		return fmt.Errorf("%w: loan %s already %s", ErrDuplicateCallback, loan.ID, loan.Status)
	}

	status := domain.LoanStatusRejected
	receipt := ""
	if cb.ResultCode == 0 {
		status = domain.LoanStatusPaid
		receipt = cb.ReceiptNumber()
		if receipt == "" {
			log.Printf("callback for loan %s succeeded without an MpesaReceiptNumber", loan.ID)
		}
	}

	err = s.loanRepo.ResolvePayment(ctx, loan.ID, cb.CheckoutRequestID, status, receipt)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost the race to a concurrent duplicate delivery.
			return fmt.Errorf("%w: loan %s", ErrDuplicateCallback, loan.ID)
		}
		return err
	}

	s.invalidateStatus(ctx, loan.ID)

	log.Printf("loan %s resolved to %s (result code %d: %s)", loan.ID, status, cb.ResultCode, cb.ResultDesc)

	if s.notificationService != nil {
		if status == domain.LoanStatusPaid {
			_ = s.notificationService.NotifyPaymentReceived(ctx, loan, receipt)
		} else {
			_ = s.notificationService.NotifyPaymentFailed(ctx, loan, cb.ResultDesc)
		}
	}

	return nil
}

// PaymentStatus returns the current payment status of an application.
// A plain lookup, never a mutation; reads go through the short-lived
// status cache to absorb poll traffic.
func (s *PaymentService) PaymentStatus(ctx context.Context, loanID string) (domain.LoanStatus, error) {
	if loanID == "" {
		return "", ErrInvalidLoanID
	}

	if s.statusCache != nil {
		if cached, err := s.statusCache.Get(ctx, loanID); err == nil && cached != "" {
			return domain.LoanStatus(cached), nil
		}
	}

	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return "", err
	}

	if s.statusCache != nil {
		if err := s.statusCache.Set(ctx, loanID, string(loan.Status)); err != nil {
			log.Printf("failed to cache status for loan %s: %v", loanID, err)
		}
	}

	return loan.Status, nil
}

func (s *PaymentService) invalidateStatus(ctx context.Context, loanID string) {
	if s.statusCache == nil {
		return
	}
	if err := s.statusCache.Invalidate(ctx, loanID); err != nil {
		log.Printf("failed to invalidate status cache for loan %s: %v", loanID, err)
	}
}
