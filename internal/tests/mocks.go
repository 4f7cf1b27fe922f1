package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"xangloans/internal/domain"
	"xangloans/internal/mpesa"
	"xangloans/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK LOAN REPOSITORY
// ──────────────────────────────────────────────

// MockLoanRepository is a mock implementation of LoanRepository. The
// conditional updates mirror the row-predicate semantics of the
// postgres implementation: zero matching rows means ErrConflict.
type MockLoanRepository struct {
	mu    sync.RWMutex
	loans map[string]*domain.LoanApplication

	// Counters for verification
	GetByIDCallCount        int32
	BeginPaymentCallCount   int32
	ResolvePaymentCallCount int32

	// Error injection
	CreateError         error
	GetByIDError        error
	BeginPaymentError   error
	ResolvePaymentError error
}

// NewMockLoanRepository creates a new mock loan repository.
func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{
		loans: make(map[string]*domain.LoanApplication),
	}
}

// AddLoan adds a loan application to the mock repository.
func (m *MockLoanRepository) AddLoan(loan *domain.LoanApplication) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[loan.ID] = loan
}

// GetLoan returns the stored loan for test assertions.
func (m *MockLoanRepository) GetLoan(id string) *domain.LoanApplication {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if loan, ok := m.loans[id]; ok {
		copy := *loan
		return &copy
	}
	return nil
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.LoanApplication) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *loan
	m.loans[loan.ID] = &copy
	return nil
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id string) (*domain.LoanApplication, error) {
	atomic.AddInt32(&m.GetByIDCallCount, 1)
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	loan, ok := m.loans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *loan
	return &copy, nil
}

func (m *MockLoanRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.LoanApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, loan := range m.loans {
		if loan.CheckoutRequestID == checkoutRequestID && checkoutRequestID != "" {
			copy := *loan
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockLoanRepository) BeginPayment(ctx context.Context, id, checkoutRequestID string, expectedStatus domain.LoanStatus) error {
	atomic.AddInt32(&m.BeginPaymentCallCount, 1)
	if m.BeginPaymentError != nil {
		return m.BeginPaymentError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[id]
	if !ok || loan.Status != expectedStatus {
		return repository.ErrConflict
	}
	loan.CheckoutRequestID = checkoutRequestID
	loan.Status = domain.LoanStatusPendingPayment
	loan.UpdatedAt = time.Now()
	return nil
}

func (m *MockLoanRepository) ResolvePayment(ctx context.Context, id, checkoutRequestID string, status domain.LoanStatus, receiptNumber string) error {
	atomic.AddInt32(&m.ResolvePaymentCallCount, 1)
	if m.ResolvePaymentError != nil {
		return m.ResolvePaymentError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[id]
	if !ok || loan.CheckoutRequestID != checkoutRequestID || loan.Status != domain.LoanStatusPendingPayment {
		return repository.ErrConflict
	}
	loan.Status = status
	loan.MpesaReceiptNumber = receiptNumber
	loan.UpdatedAt = time.Now()
	return nil
}

// ──────────────────────────────────────────────
// MOCK GATEWAY
// ──────────────────────────────────────────────

// MockGateway is a mock implementation of the payment gateway.
type MockGateway struct {
	mu sync.Mutex

	PushCallCount int32

	// Response returned on success. Err, when set, is returned instead.
	Response *mpesa.STKPushResponse
	Err      error

	// Captured arguments of the last push.
	LastPhoneNumber      string
	LastAmount           int64
	LastAccountReference string
}

// NewMockGateway creates a mock gateway that issues the given checkout
// reference.
func NewMockGateway(checkoutRequestID string) *MockGateway {
	return &MockGateway{
		Response: &mpesa.STKPushResponse{
			MerchantRequestID: "mr_" + checkoutRequestID,
			CheckoutRequestID: checkoutRequestID,
			ResponseCode:      "0",
		},
	}
}

func (m *MockGateway) STKPush(ctx context.Context, phoneNumber string, amount int64, accountReference, description string) (*mpesa.STKPushResponse, error) {
	atomic.AddInt32(&m.PushCallCount, 1)
	m.mu.Lock()
	m.LastPhoneNumber = phoneNumber
	m.LastAmount = amount
	m.LastAccountReference = accountReference
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory implementation of the initiation lock.
type MockLockStore struct {
	mu    sync.Mutex
	held  map[string]bool
	Error error
}

// NewMockLockStore creates a new MockLockStore.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{held: make(map[string]bool)}
}

func (m *MockLockStore) AcquireInitiationLock(ctx context.Context, loanID string, ttl time.Duration) (bool, error) {
	if m.Error != nil {
		return false, m.Error
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[loanID] {
		return false, nil
	}
	m.held[loanID] = true
	return true, nil
}

func (m *MockLockStore) ReleaseInitiationLock(ctx context.Context, loanID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, loanID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK STATUS CACHE
// ──────────────────────────────────────────────

// MockStatusCache is an in-memory payment status cache.
type MockStatusCache struct {
	mu       sync.Mutex
	statuses map[string]string

	SetCallCount        int32
	InvalidateCallCount int32
}

// NewMockStatusCache creates a new MockStatusCache.
func NewMockStatusCache() *MockStatusCache {
	return &MockStatusCache{statuses: make(map[string]string)}
}

func (m *MockStatusCache) Get(ctx context.Context, loanID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[loanID], nil
}

func (m *MockStatusCache) Set(ctx context.Context, loanID, status string) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[loanID] = status
	return nil
}

func (m *MockStatusCache) Invalidate(ctx context.Context, loanID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, loanID)
	return nil
}

// ──────────────────────────────────────────────
// SCRIPTED STATUS READER
// ──────────────────────────────────────────────

// ScriptedStatusReader returns a fixed sequence of statuses, repeating
// the last one, and counts reads. Used to drive the status poller.
type ScriptedStatusReader struct {
	mu       sync.Mutex
	statuses []domain.LoanStatus
	reads    int
}

// NewScriptedStatusReader creates a reader that serves the given
// statuses in order.
func NewScriptedStatusReader(statuses ...domain.LoanStatus) *ScriptedStatusReader {
	return &ScriptedStatusReader{statuses: statuses}
}

func (r *ScriptedStatusReader) PaymentStatus(ctx context.Context, loanID string) (domain.LoanStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.reads
	if idx >= len(r.statuses) {
		idx = len(r.statuses) - 1
	}
	r.reads++
	return r.statuses[idx], nil
}

// Reads returns how many times the status was read.
func (r *ScriptedStatusReader) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}
