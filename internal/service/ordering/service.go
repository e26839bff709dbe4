// Package ordering добавляет записи каталога в заказ и подтверждает заказ во внешней системе.
package ordering

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// Dependencies — хранилища и внешние порты, нужные сервису.
// Audit и Sender нужны только подтверждению; Audit может быть nil.
type Dependencies struct {
	Tx          domain.Transactor
	Catalog     domain.CatalogRepository
	Orders      domain.OrderRepository
	Lines       domain.OrderLineRepository
	Outbox      domain.OutboxRepository
	Timeline    domain.TimelineRepository
	Sender      domain.ConfirmationSender
	Audit       domain.ConfirmationAuditRepository
	Permissions domain.PermissionChecker
}

// Service реализует рабочие процессы AddToOrder и ConfirmOrder.
type Service struct {
	deps Dependencies

	logger         *log.Entry
	metrics        *metrics.WorkflowMetrics
	guardActivated bool
	now            func() time.Time
	newID          func() string

	confirmations singleflight.Group
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт логгер сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics включает prometheus-метрики рабочих процессов.
func WithMetrics(m *metrics.WorkflowMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithGuardActivated запрещает изменять и повторно подтверждать активированный заказ.
func WithGuardActivated(enabled bool) Option {
	return func(s *Service) {
		s.guardActivated = enabled
	}
}

// WithClock подменяет источник времени (тесты).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов новых позиций.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService создаёт сервис. Без WithMetrics метрики не пишутся.
func NewService(deps Dependencies, opts ...Option) (*Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("ordering: transactor is required")
	case deps.Catalog == nil || deps.Orders == nil || deps.Lines == nil:
		return nil, fmt.Errorf("ordering: catalog, order and line repositories are required")
	case deps.Permissions == nil:
		return nil, fmt.Errorf("ordering: permission checker is required")
	}

	s := &Service{
		deps:   deps,
		logger: log.New().WithField("component", "ordering"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GuardActivated сообщает, включена ли защита активированных заказов.
func (s *Service) GuardActivated() bool {
	return s.guardActivated
}

// recordSkipped пишет пропущенный шаг в лог и метрики.
func (s *Service) recordSkipped(orderID string, step Step) {
	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"step":     step,
	}).Info("step skipped: permission not granted")
	if s.metrics != nil {
		s.metrics.RecordSkippedStep(string(step))
	}
}

// emitEvent пишет событие в timeline и outbox. Вызывается внутри транзакции,
// поэтому ошибка откатывает весь рабочий процесс.
func (s *Service) emitEvent(ctx context.Context, orderID, timelineType, eventType, reason string, payload any) error {
	occurred := s.now()

	if s.deps.Timeline != nil {
		if err := s.deps.Timeline.Append(ctx, domain.TimelineEvent{
			OrderID:  orderID,
			Type:     timelineType,
			Reason:   reason,
			Occurred: occurred,
		}); err != nil {
			return fmt.Errorf("append timeline event %s: %w", timelineType, err)
		}
		if s.metrics != nil {
			s.metrics.RecordTimelineEvent()
		}
	}

	if s.deps.Outbox != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		if _, err := s.deps.Outbox.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   orderID,
			EventType:     eventType,
			Payload:       data,
		}); err != nil {
			return fmt.Errorf("enqueue %s: %w", eventType, err)
		}
		if s.metrics != nil {
			s.metrics.RecordOutboxEvent()
		}
	}
	return nil
}
