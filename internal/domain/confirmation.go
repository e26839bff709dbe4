package domain

import (
	"encoding/json"
	"math"
	"time"
)

// ConfirmationLine — одна позиция в теле запроса подтверждения.
type ConfirmationLine struct {
	Name      string  `json:"name"`
	Code      string  `json:"code"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int64   `json:"quantity"`
}

// ConfirmationPayload — временная проекция заказа для внешнего вызова. Не сохраняется.
type ConfirmationPayload struct {
	AccountNumber string             `json:"accountNumber"`
	OrderNumber   string             `json:"orderNumber"`
	Type          string             `json:"type"`
	Status        string             `json:"status"`
	Lines         []ConfirmationLine `json:"orderProducts"`
}

// NewConfirmationPayload строит payload из заказа и его позиций.
// Количество отбрасывает дробную часть (2.7 -> 2).
func NewConfirmationPayload(order Order, lines []OrderLine) ConfirmationPayload {
	payload := ConfirmationPayload{
		AccountNumber: order.AccountNumber,
		OrderNumber:   order.OrderNumber,
		Type:          order.Type,
		Status:        string(order.Status),
		Lines:         make([]ConfirmationLine, 0, len(lines)),
	}
	for _, line := range lines {
		payload.Lines = append(payload.Lines, ConfirmationLine{
			Name:      line.ProductName,
			Code:      line.ProductCode,
			UnitPrice: line.UnitPrice,
			Quantity:  int64(math.Trunc(line.Quantity)),
		})
	}
	return payload
}

// Marshal сериализует payload в JSON фиксированной формы.
func (p ConfirmationPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// ConfirmationOutcome — итог одного внешнего вызова.
type ConfirmationOutcome string

const (
	ConfirmationOutcomeAccepted  ConfirmationOutcome = "accepted"
	ConfirmationOutcomeRejected  ConfirmationOutcome = "rejected"
	ConfirmationOutcomeTransport ConfirmationOutcome = "transport_error"
)

// ConfirmationAttempt — диагностическая запись о внешнем вызове.
type ConfirmationAttempt struct {
	ID          string              `json:"id"`
	OrderID     string              `json:"orderId"`
	RequestBody string              `json:"requestBody"`
	StatusCode  int                 `json:"statusCode"`
	Outcome     ConfirmationOutcome `json:"outcome"`
	Error       string              `json:"error,omitempty"`
	StartedAt   time.Time           `json:"startedAt"`
	DurationMs  int64               `json:"durationMs"`
}
