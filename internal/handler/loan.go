package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"xangloans/internal/domain"
	"xangloans/internal/service"
)

// LoanHandler handles HTTP requests for loan applications.
type LoanHandler struct {
	loanService *service.LoanService
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(loanService *service.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// CreateLoanRequest is the HTTP request body for a new application.
type CreateLoanRequest struct {
	FirstName       string `json:"first_name"`
	SecondName      string `json:"second_name"`
	IDNumber        string `json:"id_number"`
	PhoneNumber     string `json:"phone_number"`
	MonthlyEarnings string `json:"monthly_earnings"`
	LoanType        string `json:"loan_type"`
	LoanAmount      int64  `json:"loan_amount"`
}

// LoanResponse is the HTTP response for loan application operations.
type LoanResponse struct {
	ID                    string    `json:"id"`
	FirstName             string    `json:"first_name"`
	SecondName            string    `json:"second_name"`
	PhoneNumber           string    `json:"phone_number"`
	LoanType              string    `json:"loan_type"`
	LoanAmount            int64     `json:"loan_amount"`
	ApplicationFee        int64     `json:"application_fee"`
	InterestRate          float64   `json:"interest_rate"`
	RepaymentPeriodMonths int       `json:"repayment_period_months"`
	Status                string    `json:"status"`
	CheckoutRequestID     string    `json:"checkout_request_id,omitempty"`
	MpesaReceiptNumber    string    `json:"mpesa_receipt_number,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func toLoanResponse(loan *domain.LoanApplication) LoanResponse {
	return LoanResponse{
		ID:                    loan.ID,
		FirstName:             loan.FirstName,
		SecondName:            loan.SecondName,
		PhoneNumber:           loan.PhoneNumber,
		LoanType:              string(loan.LoanType),
		LoanAmount:            loan.LoanAmount,
		ApplicationFee:        loan.ApplicationFee,
		InterestRate:          loan.InterestRate,
		RepaymentPeriodMonths: loan.RepaymentPeriodMonths,
		Status:                string(loan.Status),
		CheckoutRequestID:     loan.CheckoutRequestID,
		MpesaReceiptNumber:    loan.MpesaReceiptNumber,
		CreatedAt:             loan.CreatedAt,
		UpdatedAt:             loan.UpdatedAt,
	}
}

// CreateLoan handles POST /v1/loans
func (h *LoanHandler) CreateLoan(c *gin.Context) {
	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	loan, err := h.loanService.CreateApplication(c.Request.Context(), service.CreateApplicationRequest{
		FirstName:       req.FirstName,
		SecondName:      req.SecondName,
		IDNumber:        req.IDNumber,
		PhoneNumber:     req.PhoneNumber,
		MonthlyEarnings: req.MonthlyEarnings,
		LoanType:        domain.LoanType(req.LoanType),
		LoanAmount:      req.LoanAmount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toLoanResponse(loan))
}

// GetLoan handles GET /v1/loans/:id
func (h *LoanHandler) GetLoan(c *gin.Context) {
	loan, err := h.loanService.GetApplication(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toLoanResponse(loan))
}
