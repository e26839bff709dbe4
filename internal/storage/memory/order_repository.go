package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// OrderRepository — in-memory реализация domain.OrderRepository.
type OrderRepository struct {
	store *Store
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	defer r.store.lockWrite(ctx)()

	if _, exists := r.store.data.orders[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	// Номер счёта не хранится в заказе, он берётся из Account.
	order.AccountNumber = ""
	r.store.data.orders[order.ID] = order
	return nil
}

// Get возвращает заказ с номером счёта клиента или ErrOrderNotFound.
func (r *OrderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.data.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if account, ok := r.store.data.accounts[order.AccountID]; ok {
		order.AccountNumber = account.AccountNumber
	}
	return order, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *OrderRepository) Save(ctx context.Context, order domain.Order) error {
	defer r.store.lockWrite(ctx)()

	current, ok := r.store.data.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	if _, ok := r.store.data.priceBooks[order.PriceBookID]; order.PriceBookID != "" && !ok {
		return fmt.Errorf("save order %s: unknown price book %s", order.ID, order.PriceBookID)
	}
	order.Version++
	order.AccountNumber = ""
	r.store.data.orders[order.ID] = order
	return nil
}

// OrderLineRepository — in-memory позиции заказов.
type OrderLineRepository struct {
	store *Store
}

// ListByOrder возвращает позиции заказа по возрастанию цены.
func (r *OrderLineRepository) ListByOrder(_ context.Context, orderID string, limit int) ([]domain.OrderLine, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.OrderLine, 0)
	for _, line := range r.store.data.lines {
		if line.OrderID == orderID {
			result = append(result, line)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].UnitPrice != result[j].UnitPrice {
			return result[i].UnitPrice < result[j].UnitPrice
		}
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// InsertBatch вставляет позиции. Прайс-лист заказа обязан совпадать с прайс-листом записи каталога.
// Пачка применяется целиком или не применяется вовсе.
func (r *OrderLineRepository) InsertBatch(ctx context.Context, lines []domain.OrderLine) error {
	defer r.store.lockWrite(ctx)()

	for _, line := range lines {
		if _, exists := r.store.data.lines[line.ID]; exists {
			return fmt.Errorf("insert order line %s: duplicate id", line.ID)
		}
		order, ok := r.store.data.orders[line.OrderID]
		if !ok {
			return domain.ErrOrderNotFound
		}
		entry, ok := r.store.data.entries[line.CatalogEntryID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrCatalogEntryNotFound, line.CatalogEntryID)
		}
		if entry.PriceBookID != order.PriceBookID {
			return domain.ErrPriceBookMismatch
		}
	}

	for _, line := range lines {
		r.store.data.lines[line.ID] = line
	}
	return nil
}

// UpdateBatch обновляет существующие позиции.
func (r *OrderLineRepository) UpdateBatch(ctx context.Context, lines []domain.OrderLine) error {
	defer r.store.lockWrite(ctx)()

	for _, line := range lines {
		if _, ok := r.store.data.lines[line.ID]; !ok {
			return fmt.Errorf("update order line %s: not found", line.ID)
		}
	}
	for _, line := range lines {
		current := r.store.data.lines[line.ID]
		current.Quantity = line.Quantity
		current.UpdatedAt = line.UpdatedAt
		r.store.data.lines[line.ID] = current
	}
	return nil
}

// AccountRepository — in-memory клиенты.
type AccountRepository struct {
	store *Store
}

// Create сохраняет клиента.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	defer r.store.lockWrite(ctx)()

	r.store.data.accounts[account.ID] = account
	return nil
}

var (
	_ domain.OrderRepository     = (*OrderRepository)(nil)
	_ domain.OrderLineRepository = (*OrderLineRepository)(nil)
	_ domain.AccountRepository   = (*AccountRepository)(nil)
)
