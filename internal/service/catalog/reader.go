// Package catalog отдаёт доступные записи каталога и позиции заказа с проверкой прав на чтение.
package catalog

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/access"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// Reader — операции чтения для панелей и API. Побочных эффектов нет.
type Reader struct {
	catalog     domain.CatalogRepository
	orders      domain.OrderRepository
	lines       domain.OrderLineRepository
	permissions domain.PermissionChecker
	logger      *log.Entry
}

// NewReader создаёт Reader. logger может быть nil.
func NewReader(
	catalog domain.CatalogRepository,
	orders domain.OrderRepository,
	lines domain.OrderLineRepository,
	permissions domain.PermissionChecker,
	logger *log.Entry,
) *Reader {
	if logger == nil {
		logger = log.New().WithField("component", "catalog-reader")
	}
	return &Reader{
		catalog:     catalog,
		orders:      orders,
		lines:       lines,
		permissions: permissions,
		logger:      logger,
	}
}

// ListAvailableCatalogEntries возвращает активные записи стандартного прайс-листа по возрастанию цены.
func (r *Reader) ListAvailableCatalogEntries(ctx context.Context) ([]domain.CatalogEntry, error) {
	if err := access.Require(ctx, r.permissions, domain.ActionRead, domain.RecordKindCatalogEntry, domain.RecordKindPriceBook); err != nil {
		return nil, err
	}

	book, err := r.catalog.StandardPriceBook(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve standard price book: %w", err)
	}

	entries, err := r.catalog.ListActiveEntries(ctx, book.ID, domain.MaxRecords)
	if err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}

	r.logger.WithFields(log.Fields{
		"price_book_id": book.ID,
		"entries":       len(entries),
	}).Debug("catalog entries listed")
	return entries, nil
}

// ListOrderLines возвращает позиции заказа по возрастанию цены.
func (r *Reader) ListOrderLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	if err := access.Require(ctx, r.permissions, domain.ActionRead, domain.RecordKindOrderLine); err != nil {
		return nil, err
	}

	lines, err := r.lines.ListByOrder(ctx, orderID, domain.MaxRecords)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	return lines, nil
}

// GetOrder читает заказ напрямую (панели узнают статус Activated именно так).
func (r *Reader) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if err := access.Require(ctx, r.permissions, domain.ActionRead, domain.RecordKindOrder); err != nil {
		return domain.Order{}, err
	}

	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return order, nil
}
