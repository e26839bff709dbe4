package ordering

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/access"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// ConfirmOrder отправляет заказ во внешнюю систему и активирует его при ответе 200.
// Любой другой исход даёт false; статус заказа при этом не меняется.
func (s *Service) ConfirmOrder(ctx context.Context, orderID string) bool {
	return s.ConfirmOrderDetailed(ctx, orderID).OK()
}

// ConfirmOrderDetailed — ConfirmOrder с подробным итогом.
// Одновременные вызовы для одного заказа в процессе схлопываются: внешний запрос уходит один раз,
// результат получают все ожидающие.
func (s *Service) ConfirmOrderDetailed(ctx context.Context, orderID string) Result {
	v, _, shared := s.confirmations.Do(orderID, func() (any, error) {
		return s.confirm(ctx, orderID), nil
	})
	result := v.(Result)
	if shared {
		s.logger.WithField("order_id", orderID).Debug("confirmation shared with concurrent caller")
	}
	return result
}

func (s *Service) confirm(ctx context.Context, orderID string) Result {
	start := time.Now()
	result := s.runConfirmation(ctx, orderID)

	if s.metrics != nil {
		s.metrics.RecordConfirmOrder(string(result.Outcome), time.Since(start))
	}
	entry := s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"outcome":  result.Outcome,
	})
	if result.Err != nil {
		entry.WithError(result.Err).Warn("confirm order failed")
	} else {
		entry.Info("order confirmed")
	}
	return result
}

func (s *Service) runConfirmation(ctx context.Context, orderID string) Result {
	if s.deps.Sender == nil {
		return failed(fmt.Errorf("%w: sender is not configured", domain.ErrConfirmationTransport))
	}
	if err := access.Require(ctx, s.deps.Permissions, domain.ActionRead, domain.RecordKindOrder, domain.RecordKindOrderLine); err != nil {
		return failed(err)
	}

	order, err := s.deps.Orders.Get(ctx, orderID)
	if err != nil {
		return failed(fmt.Errorf("load order %s: %w", orderID, err))
	}
	if s.guardActivated && order.Status.IsTerminal() {
		return failed(domain.ErrOrderActivated)
	}

	lines, err := s.deps.Lines.ListByOrder(ctx, orderID, 0)
	if err != nil {
		return failed(fmt.Errorf("load order lines: %w", err))
	}

	body, err := domain.NewConfirmationPayload(order, lines).Marshal()
	if err != nil {
		return failed(fmt.Errorf("marshal confirmation payload: %w", err))
	}

	status, err := s.send(ctx, orderID, body)
	if err != nil {
		return failed(err)
	}
	if status != http.StatusOK {
		s.appendRejection(ctx, orderID, status)
		return failed(fmt.Errorf("%w: status %d", domain.ErrConfirmationRejected, status))
	}

	if !s.deps.Permissions.Can(ctx, domain.RecordKindOrder, domain.ActionUpdate) {
		s.recordSkipped(orderID, StepActivateOrder)
		return completed([]Step{StepActivateOrder})
	}

	// Заказ перечитывается: за время внешнего вызова его могли изменить.
	err = s.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.deps.Orders.Get(ctx, orderID)
		if err != nil {
			return fmt.Errorf("reload order %s: %w", orderID, err)
		}
		if current.Status == domain.OrderStatusActivated && order.Status != domain.OrderStatusActivated {
			return fmt.Errorf("activate order: %w: activated concurrently", domain.ErrOrderVersionConflict)
		}
		now := s.now()
		current.Status = domain.OrderStatusActivated
		current.UpdatedAt = now
		if err := s.deps.Orders.Save(ctx, current); err != nil {
			return fmt.Errorf("activate order: %w", err)
		}
		return s.emitEvent(ctx, orderID, domain.TimelineOrderActivated, domain.EventTypeOrderActivated, "", ActivatedEvent{
			OrderID:     orderID,
			OrderNumber: current.OrderNumber,
			Lines:       len(lines),
			OccurredAt:  now,
		})
	})
	if err != nil {
		return failed(err)
	}
	return completed(nil)
}

// send выполняет внешний вызов и пишет попытку в журнал.
func (s *Service) send(ctx context.Context, orderID string, body []byte) (int, error) {
	attempt := domain.ConfirmationAttempt{
		ID:          newAttemptID(),
		OrderID:     orderID,
		RequestBody: string(body),
		StartedAt:   s.now(),
	}

	if s.metrics != nil {
		s.metrics.ConfirmationStarted()
	}
	callStart := time.Now()
	status, err := s.deps.Sender.Send(ctx, body)
	elapsed := time.Since(callStart)
	if s.metrics != nil {
		s.metrics.ConfirmationFinished()
	}

	attempt.DurationMs = elapsed.Milliseconds()
	switch {
	case err != nil:
		if !errors.Is(err, domain.ErrConfirmationTransport) {
			err = fmt.Errorf("%w: %w", domain.ErrConfirmationTransport, err)
		}
		status = 0
		attempt.Outcome = domain.ConfirmationOutcomeTransport
		attempt.Error = err.Error()
	case status == http.StatusOK:
		attempt.StatusCode = status
		attempt.Outcome = domain.ConfirmationOutcomeAccepted
	default:
		attempt.StatusCode = status
		attempt.Outcome = domain.ConfirmationOutcomeRejected
	}
	if s.metrics != nil {
		s.metrics.RecordConfirmationResponse(status, elapsed)
	}

	s.recordAttempt(ctx, attempt)
	return status, err
}

// recordAttempt пишет попытку в журнал. Ошибка журнала не влияет на результат.
func (s *Service) recordAttempt(ctx context.Context, attempt domain.ConfirmationAttempt) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Record(context.WithoutCancel(ctx), attempt); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":   attempt.OrderID,
			"attempt_id": attempt.ID,
		}).Warn("record confirmation attempt failed")
	}
}

func (s *Service) appendRejection(ctx context.Context, orderID string, status int) {
	if s.deps.Timeline == nil {
		return
	}
	if err := s.deps.Timeline.Append(ctx, domain.TimelineEvent{
		OrderID:  orderID,
		Type:     domain.TimelineConfirmationRejected,
		Reason:   fmt.Sprintf("status %d", status),
		Occurred: s.now(),
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("append rejection event failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTimelineEvent()
	}
}

// newAttemptID возвращает UUIDv7: идентификаторы попыток сортируются по времени.
func newAttemptID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
