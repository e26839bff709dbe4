package ordering

import "time"

// LinesAddedEvent — payload outbox-события order.lines_added.
type LinesAddedEvent struct {
	OrderID     string    `json:"order_id"`
	PriceBookID string    `json:"price_book_id"`
	Created     int       `json:"created"`
	Incremented int       `json:"incremented"`
	Skipped     []Step    `json:"skipped,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ActivatedEvent — payload outbox-события order.activated.
type ActivatedEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Lines       int       `json:"lines"`
	OccurredAt  time.Time `json:"occurred_at"`
}
