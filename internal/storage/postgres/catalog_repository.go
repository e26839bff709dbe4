package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const catalogEntryColumns = `
	e.id, e.price_book_id, e.product_id, p.name, p.product_code, e.unit_price, e.is_active`

// CatalogRepository — PostgreSQL-реализация каталога.
type CatalogRepository struct {
	store *Store
}

// StandardPriceBook возвращает стандартный прайс-лист.
func (r *CatalogRepository) StandardPriceBook(ctx context.Context) (domain.PriceBook, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var book domain.PriceBook
	err := r.store.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, is_standard, is_active
		FROM price_books
		WHERE is_standard
		LIMIT 1
	`).Scan(&book.ID, &book.Name, &book.IsStandard, &book.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PriceBook{}, domain.ErrStandardPriceBookNotFound
		}
		return domain.PriceBook{}, fmt.Errorf("select standard price book: %w", err)
	}
	return book, nil
}

// ListActiveEntries возвращает активные записи прайс-листа по возрастанию цены.
func (r *CatalogRepository) ListActiveEntries(ctx context.Context, priceBookID string, limit int) ([]domain.CatalogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT` + catalogEntryColumns + `
		FROM catalog_entries e
		JOIN products p ON p.id = e.product_id
		WHERE e.price_book_id = $1 AND e.is_active
		ORDER BY e.unit_price ASC, e.id ASC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.store.conn(ctx).QueryContext(ctx, query+" LIMIT $2", priceBookID, limit)
	} else {
		rows, err = r.store.conn(ctx).QueryContext(ctx, query, priceBookID)
	}
	if err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetEntries возвращает активные записи по идентификаторам в порядке запроса.
func (r *CatalogRepository) GetEntries(ctx context.Context, ids []string) ([]domain.CatalogEntry, error) {
	if len(ids) == 0 {
		return []domain.CatalogEntry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.store.conn(ctx).QueryContext(ctx, `
		SELECT`+catalogEntryColumns+`
		FROM catalog_entries e
		JOIN products p ON p.id = e.product_id
		WHERE e.id = ANY($1) AND e.is_active
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("get catalog entries: %w", err)
	}
	defer rows.Close()

	found, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.CatalogEntry, len(found))
	for _, entry := range found {
		byID[entry.ID] = entry
	}

	result := make([]domain.CatalogEntry, 0, len(ids))
	for _, id := range ids {
		entry, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrCatalogEntryNotFound, id)
		}
		result = append(result, entry)
	}
	return result, nil
}

// CreatePriceBook сохраняет прайс-лист.
func (r *CatalogRepository) CreatePriceBook(ctx context.Context, book domain.PriceBook) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO price_books (id, name, is_standard, is_active)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, is_standard = EXCLUDED.is_standard, is_active = EXCLUDED.is_active
	`, book.ID, book.Name, book.IsStandard, book.IsActive); err != nil {
		return fmt.Errorf("insert price book: %w", err)
	}
	return nil
}

// CreateProduct сохраняет товар.
func (r *CatalogRepository) CreateProduct(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO products (id, name, product_code, is_active)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, product_code = EXCLUDED.product_code, is_active = EXCLUDED.is_active
	`, product.ID, product.Name, product.ProductCode, product.IsActive); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// CreateEntry сохраняет запись каталога; прайс-лист и товар должны существовать.
func (r *CatalogRepository) CreateEntry(ctx context.Context, entry domain.CatalogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO catalog_entries (id, price_book_id, product_id, unit_price, is_active)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE
		SET unit_price = EXCLUDED.unit_price, is_active = EXCLUDED.is_active
	`, entry.ID, entry.PriceBookID, entry.ProductID, entry.UnitPrice, entry.IsActive); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("create catalog entry %s: unknown price book or product: %w", entry.ID, err)
		}
		return fmt.Errorf("insert catalog entry: %w", err)
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]domain.CatalogEntry, error) {
	entries := make([]domain.CatalogEntry, 0)
	for rows.Next() {
		var entry domain.CatalogEntry
		if err := rows.Scan(
			&entry.ID, &entry.PriceBookID, &entry.ProductID, &entry.ProductName,
			&entry.ProductCode, &entry.UnitPrice, &entry.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog entries: %w", err)
	}
	return entries, nil
}

var (
	_ domain.CatalogRepository = (*CatalogRepository)(nil)
	_ domain.CatalogWriter     = (*CatalogRepository)(nil)
)
