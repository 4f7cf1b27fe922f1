package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"xangloans/internal/mpesa"
	"xangloans/internal/service"
)

// Default polling cadence for the waiting variant of the status
// endpoint.
const (
	defaultPollInterval = 3 * time.Second
	maxPollWait         = 2 * time.Minute

	// pollWriteMargin is how much of the server's write timeout is
	// reserved for serializing the response after a poll finishes.
	pollWriteMargin = time.Second
)

// PaymentHandler handles HTTP requests for fee payments, including the
// gateway webhook.
type PaymentHandler struct {
	paymentService *service.PaymentService
	statusPoller   *service.StatusPoller
	waitCeiling    time.Duration
}

// NewPaymentHandler creates a new PaymentHandler. writeTimeout is the
// server's write timeout; long polls are capped below it so the
// response can still be written once the poll completes. Zero means the
// server imposes no write deadline.
func NewPaymentHandler(paymentService *service.PaymentService, statusPoller *service.StatusPoller, writeTimeout time.Duration) *PaymentHandler {
	ceiling := maxPollWait
	if writeTimeout > 0 {
		budget := writeTimeout - pollWriteMargin
		if budget < pollWriteMargin {
			budget = pollWriteMargin
		}
		if budget < ceiling {
			ceiling = budget
		}
	}
	return &PaymentHandler{
		paymentService: paymentService,
		statusPoller:   statusPoller,
		waitCeiling:    ceiling,
	}
}

// InitiatePaymentRequest is the HTTP request body for initiating a
// fee payment.
type InitiatePaymentRequest struct {
	PhoneNumber string `json:"phone_number"`
	Amount      int64  `json:"amount"`
}

// InitiatePaymentResponse reports a submitted push.
type InitiatePaymentResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	CheckoutRequestID string `json:"checkoutRequestId,omitempty"`
	MerchantRequestID string `json:"merchantRequestId,omitempty"`
}

// InitiatePayment handles POST /v1/loans/:id/payments
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.paymentService.Initiate(c.Request.Context(), service.InitiateRequest{
		LoanID:      c.Param("id"),
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, InitiatePaymentResponse{
		Success:           true,
		Message:           result.CustomerMessage,
		CheckoutRequestID: result.CheckoutRequestID,
		MerchantRequestID: result.MerchantRequestID,
	})
}

// PaymentStatusResponse reports the current payment status.
type PaymentStatusResponse struct {
	LoanID  string `json:"loan_id"`
	Status  string `json:"status"`
	Pending bool   `json:"pending"`
}

// GetPaymentStatus handles GET /v1/loans/:id/payments/status
//
// Without query parameters it returns the current status immediately.
// With ?wait=30s (and optional &interval=3s) it polls until a terminal
// status or the wait ceiling; a timeout answers 202 with the
// still-pending status, which is distinct from a failed payment. The
// effective wait is capped below the server's write timeout so the 202
// is always delivered rather than lost to a dead connection.
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	loanID := c.Param("id")

	waitParam := c.Query("wait")
	if waitParam == "" {
		status, err := h.paymentService.PaymentStatus(c.Request.Context(), loanID)
		if err != nil {
			respondError(c, err)
			return
		}
		respondJSON(c, http.StatusOK, PaymentStatusResponse{
			LoanID:  loanID,
			Status:  string(status),
			Pending: !status.IsTerminal(),
		})
		return
	}

	wait, err := time.ParseDuration(waitParam)
	if err != nil || wait <= 0 || wait > maxPollWait {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid wait duration"})
		return
	}
	if wait > h.waitCeiling {
		wait = h.waitCeiling
	}

	interval := defaultPollInterval
	if intervalParam := c.Query("interval"); intervalParam != "" {
		interval, err = time.ParseDuration(intervalParam)
		if err != nil || interval <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid poll interval"})
			return
		}
	}

	status, err := h.statusPoller.WaitForOutcome(c.Request.Context(), loanID, interval, wait)
	switch {
	case err == nil:
		respondJSON(c, http.StatusOK, PaymentStatusResponse{
			LoanID: loanID,
			Status: string(status),
		})
	case errors.Is(err, service.ErrPollTimeout):
		respondJSON(c, http.StatusAccepted, PaymentStatusResponse{
			LoanID:  loanID,
			Status:  string(status),
			Pending: true,
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client gave up; nothing useful to write.
		c.Abort()
	default:
		respondError(c, err)
	}
}

// MpesaCallback handles POST /v1/payments/mpesa/callback
//
// The gateway retries deliveries that are not acknowledged, so this
// handler always answers 200 with ResultCode 0. Internal outcomes are
// logged, never surfaced in the response.
func (h *PaymentHandler) MpesaCallback(c *gin.Context) {
	ack := mpesa.AcknowledgeResponse{ResultCode: 0, ResultDesc: "Callback processed successfully"}

	var envelope mpesa.CallbackEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		log.Printf("mpesa callback: undecodable payload: %v", err)
		c.JSON(http.StatusOK, mpesa.AcknowledgeResponse{ResultCode: 0, ResultDesc: "Callback received"})
		return
	}

	if err := h.paymentService.HandleCallback(c.Request.Context(), envelope.Body.StkCallback); err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateCallback):
			log.Printf("mpesa callback: %v", err)
		case errors.Is(err, service.ErrReconciliationMiss):
			log.Printf("mpesa callback: reconciliation miss: %v", err)
		default:
			log.Printf("mpesa callback: processing failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, ack)
}
