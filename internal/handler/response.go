package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"xangloans/internal/config"
	"xangloans/internal/mpesa"
	"xangloans/internal/repository"
	"xangloans/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Success: false, Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository/gateway errors to HTTP
// status codes.
func mapErrorToHTTPStatus(err error) int {
	var gatewayErr *mpesa.GatewayError

	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidLoanID),
		errors.Is(err, service.ErrInvalidApplicantName),
		errors.Is(err, service.ErrInvalidIDNumber),
		errors.Is(err, service.ErrInvalidLoanType),
		errors.Is(err, service.ErrInvalidLoanAmount),
		errors.Is(err, service.ErrInvalidPaymentAmount),
		errors.Is(err, service.ErrInvalidPollConfig),
		errors.Is(err, mpesa.ErrInvalidPhoneNumber):
		return http.StatusBadRequest

	// Precondition violations - Conflict
	case errors.Is(err, service.ErrAlreadyInitiated),
		errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrPersistence):
		return http.StatusConflict

	// The gateway understood and declined the push.
	case errors.As(err, &gatewayErr):
		return http.StatusBadGateway

	// Transport and credential failures - retryable by the client.
	case errors.Is(err, mpesa.ErrUnreachable),
		errors.Is(err, mpesa.ErrCredential):
		return http.StatusServiceUnavailable

	// Missing configuration is fatal to the operation.
	case errors.Is(err, config.ErrConfiguration):
		return http.StatusInternalServerError

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
