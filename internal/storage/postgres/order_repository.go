package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// OrderRepository — PostgreSQL-реализация domain.OrderRepository.
type OrderRepository struct {
	store *Store
}

// Create сохраняет новый заказ.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, account_id, type, status, price_book_id, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		order.ID, order.OrderNumber, nullString(order.AccountID), order.Type, string(order.Status),
		nullString(order.PriceBookID), order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// Get возвращает заказ с номером счёта клиента.
func (r *OrderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		order         domain.Order
		status        string
		accountID     sql.NullString
		accountNumber sql.NullString
		priceBookID   sql.NullString
	)
	err := r.store.conn(ctx).QueryRowContext(ctx, `
		SELECT o.id, o.order_number, o.account_id, a.account_number, o.type, o.status,
		       o.price_book_id, o.version, o.created_at, o.updated_at
		FROM orders o
		LEFT JOIN accounts a ON a.id = o.account_id
		WHERE o.id = $1
	`, id).Scan(
		&order.ID, &order.OrderNumber, &accountID, &accountNumber, &order.Type, &status,
		&priceBookID, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	order.AccountID = accountID.String
	order.AccountNumber = accountNumber.String
	order.PriceBookID = priceBookID.String
	return order, nil
}

// Save применяет обновления заказа с проверкой версии.
func (r *OrderRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	q := r.store.conn(ctx)
	res, err := q.ExecContext(ctx, `
		UPDATE orders
		SET order_number = $1,
		    account_id = $2,
		    type = $3,
		    status = $4,
		    price_book_id = $5,
		    version = version + 1,
		    updated_at = $6
		WHERE id = $7
		  AND version = $8
	`,
		order.OrderNumber, nullString(order.AccountID), order.Type, string(order.Status),
		nullString(order.PriceBookID), order.UpdatedAt, order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := rowExists(ctx, q, `SELECT 1 FROM orders WHERE id = $1`, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}
	return nil
}

// OrderLineRepository — PostgreSQL-реализация позиций заказа.
type OrderLineRepository struct {
	store *Store
}

// ListByOrder возвращает позиции заказа по возрастанию цены вместе с данными товара.
func (r *OrderLineRepository) ListByOrder(ctx context.Context, orderID string, limit int) ([]domain.OrderLine, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT l.id, l.order_id, l.catalog_entry_id, e.product_id, p.name, p.product_code,
		       l.unit_price, l.quantity, l.created_at, l.updated_at
		FROM order_lines l
		JOIN catalog_entries e ON e.id = l.catalog_entry_id
		JOIN products p ON p.id = e.product_id
		WHERE l.order_id = $1
		ORDER BY l.unit_price ASC, l.created_at ASC, l.id ASC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.store.conn(ctx).QueryContext(ctx, query+" LIMIT $2", orderID, limit)
	} else {
		rows, err = r.store.conn(ctx).QueryContext(ctx, query, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ID, &line.OrderID, &line.CatalogEntryID, &line.ProductID, &line.ProductName,
			&line.ProductCode, &line.UnitPrice, &line.Quantity, &line.CreatedAt, &line.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	return lines, nil
}

// InsertBatch вставляет позиции одной транзакцией. Вставка проходит только
// если прайс-лист записи каталога совпадает с прайс-листом заказа.
func (r *OrderLineRepository) InsertBatch(ctx context.Context, lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()

		q := r.store.conn(ctx)
		for _, line := range lines {
			res, err := q.ExecContext(ctx, `
				INSERT INTO order_lines (
					id, order_id, catalog_entry_id, unit_price, quantity, created_at, updated_at
				)
				SELECT $1::text, o.id, e.id, $4::double precision, $5::double precision, $6::timestamptz, $7::timestamptz
				FROM orders o
				JOIN catalog_entries e ON e.id = $3 AND e.price_book_id = o.price_book_id
				WHERE o.id = $2
			`,
				line.ID, line.OrderID, line.CatalogEntryID, line.UnitPrice, line.Quantity,
				line.CreatedAt, line.UpdatedAt,
			)
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("insert order line %s: duplicate id", line.ID)
				}
				return fmt.Errorf("insert order line: %w", err)
			}

			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if affected == 0 {
				return r.explainRejectedInsert(ctx, q, line)
			}
		}
		return nil
	})
}

func (r *OrderLineRepository) explainRejectedInsert(ctx context.Context, q executor, line domain.OrderLine) error {
	exists, err := rowExists(ctx, q, `SELECT 1 FROM orders WHERE id = $1`, line.OrderID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrOrderNotFound
	}
	exists, err = rowExists(ctx, q, `SELECT 1 FROM catalog_entries WHERE id = $1`, line.CatalogEntryID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrCatalogEntryNotFound, line.CatalogEntryID)
	}
	return domain.ErrPriceBookMismatch
}

// UpdateBatch обновляет количество позиций одной транзакцией.
func (r *OrderLineRepository) UpdateBatch(ctx context.Context, lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()

		q := r.store.conn(ctx)
		for _, line := range lines {
			res, err := q.ExecContext(ctx, `
				UPDATE order_lines
				SET quantity = $2, updated_at = $3
				WHERE id = $1
			`, line.ID, line.Quantity, line.UpdatedAt)
			if err != nil {
				return fmt.Errorf("update order line: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("update order line %s: not found", line.ID)
			}
		}
		return nil
	})
}

// AccountRepository — PostgreSQL-реализация клиентов.
type AccountRepository struct {
	store *Store
}

// Create сохраняет клиента.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO accounts (id, name, account_number)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, account_number = EXCLUDED.account_number
	`, account.ID, account.Name, account.AccountNumber); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func rowExists(ctx context.Context, q executor, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check row exists: %w", err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var (
	_ domain.OrderRepository     = (*OrderRepository)(nil)
	_ domain.OrderLineRepository = (*OrderLineRepository)(nil)
	_ domain.AccountRepository   = (*AccountRepository)(nil)
)
