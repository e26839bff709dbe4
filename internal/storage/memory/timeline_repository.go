package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// TimelineRepository хранит события заказа в памяти (для разработки/тестов).
type TimelineRepository struct {
	store *Store
}

// Append добавляет событие в хранилище.
func (r *TimelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	defer r.store.lockWrite(ctx)()

	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	events := append(r.store.data.timeline[event.OrderID], event)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Occurred.Before(events[j].Occurred)
	})
	r.store.data.timeline[event.OrderID] = events
	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *TimelineRepository) List(_ context.Context, orderID string) ([]domain.TimelineEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	events := r.store.data.timeline[orderID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
