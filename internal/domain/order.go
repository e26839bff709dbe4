package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusDraft — черновик, позиции можно добавлять.
	OrderStatusDraft OrderStatus = "Draft"
	// OrderStatusActivated — заказ подтверждён внешней системой и заморожен.
	OrderStatusActivated OrderStatus = "Activated"
)

// IsTerminal сообщает, что дальнейшие изменения позиций и повторное подтверждение запрещены.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusActivated
}

// Account — клиент, которому принадлежит заказ.
type Account struct {
	ID            string
	Name          string
	AccountNumber string
}

// Order агрегирует заголовок заказа. Позиции хранятся отдельно (OrderLine).
type Order struct {
	ID          string
	OrderNumber string
	AccountID   string
	// AccountNumber подтягивается из Account при чтении и не хранится в заказе.
	AccountNumber string
	Type          string
	Status        OrderStatus
	PriceBookID   string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderLine — количество одного товара каталога в одном заказе.
type OrderLine struct {
	ID             string
	OrderID        string
	CatalogEntryID string
	ProductID      string
	ProductName    string
	ProductCode    string
	UnitPrice      float64
	// Quantity дробное: хранилище допускает нецелые количества.
	Quantity  float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalPrice вычисляется из цены и количества и не хранится.
func (l OrderLine) TotalPrice() float64 {
	return l.UnitPrice * l.Quantity
}

// NewOrderLine создаёт позицию с количеством 1 по цене записи каталога.
func NewOrderLine(id, orderID string, entry CatalogEntry, now time.Time) OrderLine {
	return OrderLine{
		ID:             id,
		OrderID:        orderID,
		CatalogEntryID: entry.ID,
		ProductID:      entry.ProductID,
		ProductName:    entry.ProductName,
		ProductCode:    entry.ProductCode,
		UnitPrice:      entry.UnitPrice,
		Quantity:       1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
