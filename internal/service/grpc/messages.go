package grpcsvc

import "time"

type ListCatalogEntriesRequest struct{}

type CatalogEntry struct {
	ID          string  `json:"id"`
	PriceBookID string  `json:"price_book_id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	ProductCode string  `json:"product_code"`
	UnitPrice   float64 `json:"unit_price"`
}

type ListCatalogEntriesResponse struct {
	Entries []CatalogEntry `json:"entries"`
}

type ListOrderLinesRequest struct {
	OrderID string `json:"order_id"`
}

type OrderLine struct {
	ID             string    `json:"id"`
	CatalogEntryID string    `json:"catalog_entry_id"`
	ProductName    string    `json:"product_name"`
	ProductCode    string    `json:"product_code"`
	UnitPrice      float64   `json:"unit_price"`
	Quantity       float64   `json:"quantity"`
	TotalPrice     float64   `json:"total_price"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ListOrderLinesResponse struct {
	OrderID     string      `json:"order_id"`
	OrderStatus string      `json:"order_status"`
	Lines       []OrderLine `json:"lines"`
}

type AddToOrderRequest struct {
	OrderID  string   `json:"order_id"`
	EntryIDs []string `json:"entry_ids"`
}

type ConfirmOrderRequest struct {
	OrderID string `json:"order_id"`
}

// WorkflowResponse — итог AddToOrder и ConfirmOrder. Success=true и при частичном выполнении.
type WorkflowResponse struct {
	Success bool     `json:"success"`
	Outcome string   `json:"outcome"`
	Skipped []string `json:"skipped,omitempty"`
}
