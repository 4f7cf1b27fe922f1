package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"xangloans/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationLoanApproved     NotificationType = "LOAN_APPROVED"
	NotificationPaymentRequested NotificationType = "PAYMENT_REQUESTED"
	NotificationPaymentReceived  NotificationType = "PAYMENT_RECEIVED"
	NotificationPaymentFailed    NotificationType = "PAYMENT_FAILED"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type        NotificationType
	RecipientID string // loan application ID
	PhoneNumber string
	Title       string
	Message     string
	Data        map[string]interface{}
	CreatedAt   time.Time
}

// NotificationService handles notification delivery.
type NotificationService struct {
	// In a real deployment this would hold an SMS client; borrowers
	// track their loan status via SMS updates.
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifyLoanApproved informs the applicant that the application passed
// the (simulated) eligibility check and awaits the fee payment.
func (s *NotificationService) NotifyLoanApproved(ctx context.Context, loan *domain.LoanApplication) error {
	notification := Notification{
		Type:        NotificationLoanApproved,
		RecipientID: loan.ID,
		PhoneNumber: loan.PhoneNumber,
		Title:       "Loan Approved",
		Message:     fmt.Sprintf("You're eligible for a KES %d %s loan. Pay the KES %d application fee to proceed.", loan.LoanAmount, loan.LoanType, loan.ApplicationFee),
		Data: map[string]interface{}{
			"loan_id":     loan.ID,
			"loan_amount": loan.LoanAmount,
			"fee":         loan.ApplicationFee,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyPaymentRequested informs the applicant that a PIN prompt is on
// its way to their phone.
func (s *NotificationService) NotifyPaymentRequested(ctx context.Context, loan *domain.LoanApplication, phoneNumber string) error {
	notification := Notification{
		Type:        NotificationPaymentRequested,
		RecipientID: loan.ID,
		PhoneNumber: phoneNumber,
		Title:       "Payment Requested",
		Message:     fmt.Sprintf("Enter your M-Pesa PIN on %s to pay the KES %d application fee.", phoneNumber, loan.ApplicationFee),
		Data: map[string]interface{}{
			"loan_id": loan.ID,
			"fee":     loan.ApplicationFee,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyPaymentReceived confirms the fee payment with its receipt.
func (s *NotificationService) NotifyPaymentReceived(ctx context.Context, loan *domain.LoanApplication, receiptNumber string) error {
	notification := Notification{
		Type:        NotificationPaymentReceived,
		RecipientID: loan.ID,
		PhoneNumber: loan.PhoneNumber,
		Title:       "Payment Received",
		Message:     fmt.Sprintf("Application fee received. M-Pesa receipt %s. Your loan is being processed.", receiptNumber),
		Data: map[string]interface{}{
			"loan_id": loan.ID,
			"receipt": receiptNumber,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// NotifyPaymentFailed informs the applicant the payment did not go
// through and can be retried.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, loan *domain.LoanApplication, reason string) error {
	notification := Notification{
		Type:        NotificationPaymentFailed,
		RecipientID: loan.ID,
		PhoneNumber: loan.PhoneNumber,
		Title:       "Payment Failed",
		Message:     fmt.Sprintf("Your application fee payment was not completed: %s. You can try again from the app.", reason),
		Data: map[string]interface{}{
			"loan_id": loan.ID,
			"reason":  reason,
		},
		CreatedAt: time.Now(),
	}
	return s.send(ctx, notification)
}

// send delivers a notification. Current implementation logs it.
func (s *NotificationService) send(ctx context.Context, n Notification) error {
	log.Printf("[NOTIFICATION] type=%s recipient=%s phone=%s title=%q message=%q",
		n.Type, n.RecipientID, n.PhoneNumber, n.Title, n.Message)
	return nil
}
