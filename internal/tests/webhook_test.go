package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"xangloans/internal/domain"
	"xangloans/internal/handler"
	"xangloans/internal/service"
)

// ──────────────────────────────────────────────
// 5. WEBHOOK ALWAYS-ACKNOWLEDGE CONTRACT
// ──────────────────────────────────────────────

func newWebhookRouter(paymentService *service.PaymentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	paymentHandler := handler.NewPaymentHandler(paymentService, service.NewStatusPoller(paymentService), 0)
	router.POST("/v1/payments/mpesa/callback", paymentHandler.MpesaCallback)
	return router
}

func postCallback(t *testing.T, router *gin.Engine, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/mpesa/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func assertAcknowledged(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("gateway must always get 200, got %d", rec.Code)
	}
	var ack struct {
		ResultCode int    `json:"ResultCode"`
		ResultDesc string `json:"ResultDesc"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("undecodable acknowledgment: %v", err)
	}
	if ack.ResultCode != 0 {
		t.Errorf("expected ResultCode 0, got %d", ack.ResultCode)
	}
}

func callbackBody(t *testing.T, checkoutRequestID string, resultCode int, items []map[string]any) []byte {
	t.Helper()
	stk := map[string]any{
		"MerchantRequestID": "mr_1",
		"CheckoutRequestID": checkoutRequestID,
		"ResultCode":        resultCode,
		"ResultDesc":        "desc",
	}
	if items != nil {
		stk["CallbackMetadata"] = map[string]any{"Item": items}
	}
	body, err := json.Marshal(map[string]any{"Body": map[string]any{"stkCallback": stk}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return body
}

func TestWebhook_AcknowledgesSuccessfulResolution(t *testing.T) {
	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(pendingLoan("A1"))
	router := newWebhookRouter(service.NewPaymentService(loanRepo, nil, nil, nil, nil))

	body := callbackBody(t, "ws_1", 0, []map[string]any{
		{"Name": "MpesaReceiptNumber", "Value": "QCE123"},
	})
	assertAcknowledged(t, postCallback(t, router, body))

	if loan := loanRepo.GetLoan("A1"); loan.Status != domain.LoanStatusPaid {
		t.Errorf("expected paid, got %s", loan.Status)
	}
}

func TestWebhook_AcknowledgesUnknownReference(t *testing.T) {
	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(pendingLoan("A1"))
	router := newWebhookRouter(service.NewPaymentService(loanRepo, nil, nil, nil, nil))

	assertAcknowledged(t, postCallback(t, router, callbackBody(t, "ws_unknown", 0, nil)))

	if loan := loanRepo.GetLoan("A1"); loan.Status != domain.LoanStatusPendingPayment {
		t.Errorf("unrelated record mutated, got %s", loan.Status)
	}
}

func TestWebhook_AcknowledgesDuplicateDelivery(t *testing.T) {
	loanRepo := NewMockLoanRepository()
	loanRepo.AddLoan(pendingLoan("A1"))
	router := newWebhookRouter(service.NewPaymentService(loanRepo, nil, nil, nil, nil))

	body := callbackBody(t, "ws_1", 1032, nil)
	assertAcknowledged(t, postCallback(t, router, body))
	assertAcknowledged(t, postCallback(t, router, body))

	if loanRepo.ResolvePaymentCallCount != 1 {
		t.Errorf("expected exactly one resolution, got %d", loanRepo.ResolvePaymentCallCount)
	}
}

func TestWebhook_AcknowledgesUndecodablePayload(t *testing.T) {
	loanRepo := NewMockLoanRepository()
	router := newWebhookRouter(service.NewPaymentService(loanRepo, nil, nil, nil, nil))

	assertAcknowledged(t, postCallback(t, router, []byte("not json")))
}
