package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// CatalogRepository — in-memory прайс-листы, товары и записи каталога.
type CatalogRepository struct {
	store *Store
}

// StandardPriceBook возвращает стандартный прайс-лист.
func (r *CatalogRepository) StandardPriceBook(_ context.Context) (domain.PriceBook, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, book := range r.store.data.priceBooks {
		if book.IsStandard {
			return book, nil
		}
	}
	return domain.PriceBook{}, domain.ErrStandardPriceBookNotFound
}

// ListActiveEntries возвращает активные записи прайс-листа по возрастанию цены.
func (r *CatalogRepository) ListActiveEntries(_ context.Context, priceBookID string, limit int) ([]domain.CatalogEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.CatalogEntry, 0)
	for _, entry := range r.store.data.entries {
		if entry.PriceBookID != priceBookID || !entry.IsActive {
			continue
		}
		result = append(result, r.withProduct(entry))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].UnitPrice != result[j].UnitPrice {
			return result[i].UnitPrice < result[j].UnitPrice
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetEntries возвращает активные записи по идентификаторам в порядке запроса.
func (r *CatalogRepository) GetEntries(_ context.Context, ids []string) ([]domain.CatalogEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.CatalogEntry, 0, len(ids))
	for _, id := range ids {
		entry, ok := r.store.data.entries[id]
		if !ok || !entry.IsActive {
			return nil, fmt.Errorf("%w: %s", domain.ErrCatalogEntryNotFound, id)
		}
		result = append(result, r.withProduct(entry))
	}
	return result, nil
}

// CreatePriceBook сохраняет прайс-лист.
func (r *CatalogRepository) CreatePriceBook(ctx context.Context, book domain.PriceBook) error {
	defer r.store.lockWrite(ctx)()

	r.store.data.priceBooks[book.ID] = book
	return nil
}

// CreateProduct сохраняет товар.
func (r *CatalogRepository) CreateProduct(ctx context.Context, product domain.Product) error {
	defer r.store.lockWrite(ctx)()

	r.store.data.products[product.ID] = product
	return nil
}

// CreateEntry сохраняет запись каталога; прайс-лист должен существовать.
func (r *CatalogRepository) CreateEntry(ctx context.Context, entry domain.CatalogEntry) error {
	defer r.store.lockWrite(ctx)()

	if _, ok := r.store.data.priceBooks[entry.PriceBookID]; !ok {
		return fmt.Errorf("create catalog entry %s: unknown price book %s", entry.ID, entry.PriceBookID)
	}
	r.store.data.entries[entry.ID] = entry
	return nil
}

// withProduct подставляет имя и код товара, как это делает join в SQL-хранилище.
func (r *CatalogRepository) withProduct(entry domain.CatalogEntry) domain.CatalogEntry {
	if product, ok := r.store.data.products[entry.ProductID]; ok {
		entry.ProductName = product.Name
		entry.ProductCode = product.ProductCode
	}
	return entry
}

var (
	_ domain.CatalogRepository = (*CatalogRepository)(nil)
	_ domain.CatalogWriter     = (*CatalogRepository)(nil)
)
