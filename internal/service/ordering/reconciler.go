package ordering

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/access"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// AddToOrder добавляет выбранные записи каталога в заказ.
// Возвращает false при любой ошибке; подробности пишутся в лог и метрики.
func (s *Service) AddToOrder(ctx context.Context, selected []domain.CatalogEntry, orderID string) bool {
	return s.AddToOrderDetailed(ctx, selected, orderID).OK()
}

// AddToOrderDetailed — AddToOrder с подробным итогом. Все записи выполняются в одной транзакции.
func (s *Service) AddToOrderDetailed(ctx context.Context, selected []domain.CatalogEntry, orderID string) Result {
	start := time.Now()

	var skipped []Step
	err := s.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		skipped, err = s.reconcile(ctx, selected, orderID)
		return err
	})

	result := completed(skipped)
	if err != nil {
		result = failed(err)
	}
	s.finishAdd(orderID, len(selected), result, time.Since(start))
	return result
}

// AddEntriesToOrder разрешает идентификаторы записей каталога и вызывает AddToOrderDetailed.
// Используется транспортами, которые получают только идентификаторы.
func (s *Service) AddEntriesToOrder(ctx context.Context, entryIDs []string, orderID string) Result {
	if len(entryIDs) == 0 {
		result := failed(domain.ErrEmptySelection)
		s.finishAdd(orderID, 0, result, 0)
		return result
	}
	if err := access.Require(ctx, s.deps.Permissions, domain.ActionRead, domain.RecordKindCatalogEntry); err != nil {
		result := failed(err)
		s.finishAdd(orderID, len(entryIDs), result, 0)
		return result
	}

	entries, err := s.deps.Catalog.GetEntries(ctx, entryIDs)
	if err != nil {
		result := failed(fmt.Errorf("resolve catalog entries: %w", err))
		s.finishAdd(orderID, len(entryIDs), result, 0)
		return result
	}
	return s.AddToOrderDetailed(ctx, entries, orderID)
}

// lineChange — позиция, которую нужно вставить или обновить.
type lineChange struct {
	line    domain.OrderLine
	isNew   bool
	touched bool
}

func (s *Service) reconcile(ctx context.Context, selected []domain.CatalogEntry, orderID string) ([]Step, error) {
	if err := access.Require(ctx, s.deps.Permissions, domain.ActionRead,
		domain.RecordKindPriceBook, domain.RecordKindOrder, domain.RecordKindOrderLine); err != nil {
		return nil, err
	}

	standard, err := s.deps.Catalog.StandardPriceBook(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve standard price book: %w", err)
	}
	order, err := s.deps.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if s.guardActivated && order.Status.IsTerminal() {
		return nil, domain.ErrOrderActivated
	}

	now := s.now()
	var skipped []Step

	if order.PriceBookID != standard.ID {
		if s.deps.Permissions.Can(ctx, domain.RecordKindOrder, domain.ActionUpdate) {
			previous := order.PriceBookID
			order.PriceBookID = standard.ID
			order.UpdatedAt = now
			if err := s.deps.Orders.Save(ctx, order); err != nil {
				return nil, fmt.Errorf("reassign price book: %w", err)
			}
			if s.deps.Timeline != nil {
				if err := s.deps.Timeline.Append(ctx, domain.TimelineEvent{
					OrderID:  orderID,
					Type:     domain.TimelineOrderPriceBookFixed,
					Reason:   fmt.Sprintf("%s -> %s", previous, standard.ID),
					Occurred: now,
				}); err != nil {
					return nil, fmt.Errorf("append timeline event: %w", err)
				}
			}
		} else {
			skipped = append(skipped, StepReassignPriceBook)
			s.recordSkipped(orderID, StepReassignPriceBook)
		}
	}

	existing, err := s.deps.Lines.ListByOrder(ctx, orderID, 0)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}

	index := make(map[string]*lineChange, len(existing))
	for _, line := range existing {
		index[line.CatalogEntryID] = &lineChange{line: line}
	}

	var created, incremented []*lineChange
	for _, entry := range selected {
		if change, ok := index[entry.ID]; ok {
			change.line.Quantity++
			change.line.UpdatedAt = now
			if !change.isNew && !change.touched {
				change.touched = true
				incremented = append(incremented, change)
			}
			continue
		}
		change := &lineChange{line: domain.NewOrderLine(s.newID(), orderID, entry, now), isNew: true}
		index[entry.ID] = change
		created = append(created, change)
	}

	applied := LinesAddedEvent{OrderID: orderID, PriceBookID: order.PriceBookID}

	if len(created) > 0 {
		if s.deps.Permissions.Can(ctx, domain.RecordKindOrderLine, domain.ActionCreate) {
			if err := s.deps.Lines.InsertBatch(ctx, collectLines(created)); err != nil {
				return nil, fmt.Errorf("insert order lines: %w", err)
			}
			applied.Created = len(created)
		} else {
			skipped = append(skipped, StepCreateLines)
			s.recordSkipped(orderID, StepCreateLines)
		}
	}

	if len(incremented) > 0 {
		if s.deps.Permissions.Can(ctx, domain.RecordKindOrderLine, domain.ActionUpdate) {
			if err := s.deps.Lines.UpdateBatch(ctx, collectLines(incremented)); err != nil {
				return nil, fmt.Errorf("update order lines: %w", err)
			}
			applied.Incremented = len(incremented)
		} else {
			skipped = append(skipped, StepUpdateLines)
			s.recordSkipped(orderID, StepUpdateLines)
		}
	}

	if applied.Created+applied.Incremented > 0 {
		applied.Skipped = skipped
		applied.OccurredAt = now
		reason := fmt.Sprintf("created=%d incremented=%d", applied.Created, applied.Incremented)
		if err := s.emitEvent(ctx, orderID, domain.TimelineOrderLinesAdded, domain.EventTypeOrderLinesAdded, reason, applied); err != nil {
			return nil, err
		}
	}
	return skipped, nil
}

func collectLines(changes []*lineChange) []domain.OrderLine {
	lines := make([]domain.OrderLine, 0, len(changes))
	for _, change := range changes {
		lines = append(lines, change.line)
	}
	return lines
}

func (s *Service) finishAdd(orderID string, selected int, result Result, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordAddToOrder(string(result.Outcome), elapsed)
	}

	entry := s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"selected": selected,
		"outcome":  result.Outcome,
	})
	if result.Err != nil {
		entry.WithError(result.Err).Warn("add to order failed")
		return
	}
	if len(result.Skipped) > 0 {
		entry = entry.WithField("skipped", result.Skipped)
	}
	entry.Debug("add to order completed")
}
