package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finci-square/cash-ap-exemplar/internal/domain"
)

// paymentRepositoryInMemory is the in-memory payment ledger. Entries are only
// ever appended; status is the single mutable field.
type paymentRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Payment
}

// NewPaymentRepository returns the in-memory PaymentRepository implementation.
func NewPaymentRepository() domain.PaymentRepository {
	return &paymentRepositoryInMemory{
		items: make(map[string]domain.Payment),
	}
}

// Create records a new PENDING payment with a snapshot of amount and currency.
func (r *paymentRepositoryInMemory) Create(cartID string, typ domain.PaymentType, amountMinor int64, currency, providerTransactionID string, metadata map[string]string) (domain.Payment, error) {
	now := time.Now().UTC()
	payment := domain.Payment{
		ID:                    uuid.NewString(),
		CartID:                cartID,
		Type:                  typ,
		Status:                domain.PaymentStatusPending,
		AmountMinor:           amountMinor,
		Currency:              currency,
		ProviderTransactionID: providerTransactionID,
		Metadata:              metadata,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if errs := payment.Validate(); len(errs) > 0 {
		return domain.Payment{}, errs[0]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[payment.ID] = clonePayment(payment)
	return clonePayment(payment), nil
}

// UpdateStatus moves the payment through its state machine.
func (r *paymentRepositoryInMemory) UpdateStatus(paymentID string, status domain.PaymentStatus) (domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.items[paymentID]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	if !payment.Status.CanTransitionTo(status) {
		return domain.Payment{}, domain.ErrPaymentTransition
	}

	payment.Status = status
	payment.UpdatedAt = time.Now().UTC()
	r.items[payment.ID] = payment

	return clonePayment(payment), nil
}

func (r *paymentRepositoryInMemory) Get(paymentID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.items[paymentID]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return clonePayment(payment), nil
}

// ListByCart returns every attempt recorded for a cart, newest first.
func (r *paymentRepositoryInMemory) ListByCart(cartID string) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Payment, 0, 4)
	for _, payment := range r.items {
		if payment.CartID != cartID {
			continue
		}
		result = append(result, clonePayment(payment))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

func clonePayment(src domain.Payment) domain.Payment {
	dst := src
	if src.Metadata != nil {
		dst.Metadata = make(map[string]string, len(src.Metadata))
		for k, v := range src.Metadata {
			dst.Metadata[k] = v
		}
	}
	return dst
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
