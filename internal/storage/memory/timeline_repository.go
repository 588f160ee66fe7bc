package memory

import (
	"sort"
	"sync"

	"github.com/finci-square/cash-ap-exemplar/internal/domain"
)

// timelineRepositoryInMemory keeps per-cart lifecycle events in memory.
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository returns the in-memory TimelineRepository implementation.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]domain.TimelineEvent)}
}

// Append adds an event to the cart's history.
func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	if event.CartID == "" {
		return domain.ErrCartIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.CartID] = append(r.events[event.CartID], event)

	sort.Slice(r.events[event.CartID], func(i, j int) bool {
		return r.events[event.CartID][i].Occurred.Before(r.events[event.CartID][j].Occurred)
	})

	return nil
}

// List returns the cart's events in chronological order.
func (r *timelineRepositoryInMemory) List(cartID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[cartID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
