package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"xangloans/internal/domain"
	"xangloans/internal/mpesa"
	"xangloans/internal/repository"
)

// loanTerms holds the per-product interest rate and repayment period
// applied on approval.
var loanTerms = map[domain.LoanType]struct {
	interestRate    float64
	repaymentMonths int
}{
	domain.LoanTypeQuick:     {interestRate: 10.0, repaymentMonths: 1},
	domain.LoanTypeEmergency: {interestRate: 15.0, repaymentMonths: 2},
	domain.LoanTypeBusiness:  {interestRate: 12.0, repaymentMonths: 6},
}

// LoanService handles loan application intake.
type LoanService struct {
	loanRepo            repository.LoanRepository
	notificationService *NotificationService
}

// NewLoanService creates a new LoanService.
func NewLoanService(loanRepo repository.LoanRepository, notificationService *NotificationService) *LoanService {
	return &LoanService{
		loanRepo:            loanRepo,
		notificationService: notificationService,
	}
}

// CreateApplicationRequest contains the parameters for a new loan
// application.
type CreateApplicationRequest struct {
	FirstName       string
	SecondName      string
	IDNumber        string
	PhoneNumber     string
	MonthlyEarnings string
	LoanType        domain.LoanType
	LoanAmount      int64
}

// CreateApplication validates the intake fields and persists a new
// application in created status. Eligibility is a simulated,
// unconditional approval: every valid application proceeds straight to
// the fee-payment step.
func (s *LoanService) CreateApplication(ctx context.Context, req CreateApplicationRequest) (*domain.LoanApplication, error) {
	if req.FirstName == "" {
		return nil, ErrInvalidApplicantName
	}
	if req.IDNumber == "" {
		return nil, ErrInvalidIDNumber
	}

	terms, ok := loanTerms[req.LoanType]
	if !ok {
		return nil, ErrInvalidLoanType
	}

	if req.LoanAmount <= 0 {
		return nil, ErrInvalidLoanAmount
	}

	phone, err := mpesa.FormatPhoneNumber(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	loan := &domain.LoanApplication{
		ID:                    uuid.New().String(),
		FirstName:             req.FirstName,
		SecondName:            req.SecondName,
		IDNumber:              req.IDNumber,
		PhoneNumber:           phone,
		MonthlyEarnings:       req.MonthlyEarnings,
		LoanType:              req.LoanType,
		LoanAmount:            req.LoanAmount,
		ApplicationFee:        domain.ApplicationFee,
		InterestRate:          terms.interestRate,
		RepaymentPeriodMonths: terms.repaymentMonths,
		Status:                domain.LoanStatusCreated,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.loanRepo.Create(ctx, loan); err != nil {
		return nil, err
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyLoanApproved(ctx, loan)
	}

	return loan, nil
}

// GetApplication retrieves a loan application by ID.
func (s *LoanService) GetApplication(ctx context.Context, loanID string) (*domain.LoanApplication, error) {
	if loanID == "" {
		return nil, ErrInvalidLoanID
	}

	return s.loanRepo.GetByID(ctx, loanID)
}
