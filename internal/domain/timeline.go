package domain

import "time"

// Timeline event types.
const (
	TimelineOrderLinesAdded      = "OrderLinesAdded"
	TimelineOrderPriceBookFixed  = "OrderPriceBookReassigned"
	TimelineOrderActivated       = "OrderActivated"
	TimelineConfirmationRejected = "OrderConfirmationRejected"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string    `json:"orderId"`
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}
