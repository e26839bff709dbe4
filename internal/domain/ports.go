package domain

import (
	"context"
	"time"
)

// RecordKind — тип записи, на который выдаются права.
type RecordKind string

const (
	RecordKindOrder        RecordKind = "order"
	RecordKindOrderLine    RecordKind = "order_line"
	RecordKindCatalogEntry RecordKind = "catalog_entry"
	RecordKindPriceBook    RecordKind = "price_book"
)

// Action — операция над записью.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// PermissionChecker отвечает на вопрос, разрешено ли действие в текущем контексте авторизации.
type PermissionChecker interface {
	Can(ctx context.Context, kind RecordKind, action Action) bool
}

// ConfirmationSender выполняет синхронный внешний вызов подтверждения заказа.
type ConfirmationSender interface {
	// Send отправляет тело запроса и возвращает HTTP-статус ответа.
	Send(ctx context.Context, body []byte) (int, error)
}

// ConfirmationAuditRepository хранит попытки внешнего подтверждения для диагностики.
type ConfirmationAuditRepository interface {
	Record(ctx context.Context, attempt ConfirmationAttempt) error
	ListByOrder(ctx context.Context, orderID string) ([]ConfirmationAttempt, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
// Enqueue участвует в транзакции, переданной через ctx.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxPruner удаляет обработанные (sent и failed) сообщения outbox.
type OutboxPruner interface {
	// DeleteProcessedBefore удаляет до limit сообщений, обновлённых раньше before, и возвращает их число.
	DeleteProcessedBefore(ctx context.Context, before time.Time, limit int) (int, error)
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// Outbox event types.
const (
	EventTypeOrderLinesAdded = "order.lines_added"
	EventTypeOrderActivated  = "order.activated"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
