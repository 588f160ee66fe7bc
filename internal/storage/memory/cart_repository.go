package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finci-square/cash-ap-exemplar/internal/domain"
)

// cartRepositoryInMemory is the in-memory cart store. Every read-modify-write
// runs under one mutex, so concurrent requests for the same session cannot
// interleave between reading a cart and writing it back.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
	// openBySession indexes the at-most-one OPEN cart per session.
	openBySession map[string]string
}

// NewCartRepository returns the in-memory CartRepository implementation.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{
		carts:         make(map[string]domain.Cart),
		openBySession: make(map[string]string),
	}
}

func (r *cartRepositoryInMemory) GetOrCreateOpen(sessionID string) (domain.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Cart{}, domain.ErrSessionRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cart, err := r.getOrCreateOpenLocked(sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	return cloneCart(cart), nil
}

func (r *cartRepositoryInMemory) AddItem(sessionID string, item domain.Item) (domain.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Cart{}, domain.ErrSessionRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cart, err := r.getOrCreateOpenLocked(sessionID)
	if err != nil {
		return domain.Cart{}, err
	}

	found := false
	for i := range cart.Lines {
		if cart.Lines[i].ItemID == item.ID {
			// The captured unit price stays as it was on first addition.
			cart.Lines[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ItemID:     item.ID,
			Quantity:   1,
			PriceMinor: item.PriceMinor,
		})
	}

	r.saveLocked(&cart)
	return cloneCart(cart), nil
}

func (r *cartRepositoryInMemory) SetLineQuantity(sessionID, itemID string, quantity int) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, err := r.openBySessionLocked(sessionID)
	if err != nil {
		return domain.Cart{}, err
	}

	idx := -1
	for i := range cart.Lines {
		if cart.Lines[i].ItemID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Cart{}, domain.ErrLineNotFound
	}

	if quantity <= 0 {
		cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
	} else {
		cart.Lines[idx].Quantity = quantity
	}

	r.saveLocked(&cart)
	return cloneCart(cart), nil
}

func (r *cartRepositoryInMemory) RemoveLine(sessionID, itemID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, err := r.openBySessionLocked(sessionID)
	if err != nil {
		return domain.Cart{}, err
	}

	// An absent line is a no-op, not an error.
	lines := cart.Lines[:0:0]
	for _, line := range cart.Lines {
		if line.ItemID != itemID {
			lines = append(lines, line)
		}
	}
	cart.Lines = lines

	r.saveLocked(&cart)
	return cloneCart(cart), nil
}

func (r *cartRepositoryInMemory) Transition(cartID string, status domain.CartStatus, paymentID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[cartID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	if !cart.Status.CanTransitionTo(status) {
		return domain.Cart{}, domain.ErrCartTransition
	}

	cart.Status = status
	if paymentID != "" {
		cart.PaymentID = paymentID
	}
	cart.UpdatedAt = time.Now().UTC()
	r.carts[cart.ID] = cart

	// Once a cart leaves OPEN its session may start a fresh one.
	if r.openBySession[cart.SessionID] == cart.ID {
		delete(r.openBySession, cart.SessionID)
	}

	return cloneCart(cart), nil
}

func (r *cartRepositoryInMemory) Get(cartID string) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[cartID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (r *cartRepositoryInMemory) GetOpenBySession(sessionID string) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.openBySession[sessionID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cloneCart(r.carts[id]), nil
}

func (r *cartRepositoryInMemory) CountOpen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.openBySession)
}

// DeleteExpired removes OPEN carts whose last update is not after before,
// stopping at limit when limit > 0. Removed carts are returned so callers can
// emit eviction events.
func (r *cartRepositoryInMemory) DeleteExpired(before time.Time, limit int) ([]domain.Cart, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []domain.Cart
	for sessionID, cartID := range r.openBySession {
		cart, ok := r.carts[cartID]
		if !ok || cart.UpdatedAt.After(before) {
			continue
		}

		delete(r.carts, cartID)
		delete(r.openBySession, sessionID)
		removed = append(removed, cloneCart(cart))
		if limit > 0 && len(removed) >= limit {
			break
		}
	}

	return removed, nil
}

// getOrCreateOpenLocked resolves or creates the session's OPEN cart. Callers
// hold r.mu.
func (r *cartRepositoryInMemory) getOrCreateOpenLocked(sessionID string) (domain.Cart, error) {
	if id, ok := r.openBySession[sessionID]; ok {
		return r.carts[id], nil
	}

	now := time.Now().UTC()
	cart := domain.Cart{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Lines:      nil,
		TotalMinor: 0,
		Status:     domain.CartStatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, exists := r.carts[cart.ID]; exists {
		return domain.Cart{}, domain.ErrCartConflict
	}

	r.carts[cart.ID] = cart
	r.openBySession[sessionID] = cart.ID
	return cart, nil
}

func (r *cartRepositoryInMemory) openBySessionLocked(sessionID string) (domain.Cart, error) {
	id, ok := r.openBySession[sessionID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return r.carts[id], nil
}

// saveLocked recomputes the total from the lines and writes the cart back.
// The total is never accepted from a caller.
func (r *cartRepositoryInMemory) saveLocked(cart *domain.Cart) {
	cart.TotalMinor = domain.LinesTotal(cart.Lines)
	cart.UpdatedAt = time.Now().UTC()
	r.carts[cart.ID] = *cart
}

// cloneCart copies the cart and its lines so callers cannot mutate stored
// state through the returned value.
func cloneCart(src domain.Cart) domain.Cart {
	dst := src
	if src.Lines != nil {
		dst.Lines = make([]domain.CartLine, len(src.Lines))
		copy(dst.Lines, src.Lines)
	}
	return dst
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
