package rest

import (
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/ordering"
	"github.com/vladislavdragonenkov/orderdesk/internal/ui"
)

type catalogEntryResponse struct {
	ID          string  `json:"id"`
	PriceBookID string  `json:"priceBookId"`
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	ProductCode string  `json:"productCode"`
	UnitPrice   float64 `json:"unitPrice"`
}

type orderResponse struct {
	ID            string    `json:"id"`
	OrderNumber   string    `json:"orderNumber"`
	AccountID     string    `json:"accountId"`
	AccountNumber string    `json:"accountNumber,omitempty"`
	Type          string    `json:"type,omitempty"`
	Status        string    `json:"status"`
	PriceBookID   string    `json:"priceBookId"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type orderLineResponse struct {
	ID             string    `json:"id"`
	CatalogEntryID string    `json:"catalogEntryId"`
	ProductID      string    `json:"productId"`
	ProductName    string    `json:"productName"`
	ProductCode    string    `json:"productCode"`
	UnitPrice      float64   `json:"unitPrice"`
	Quantity       float64   `json:"quantity"`
	TotalPrice     float64   `json:"totalPrice"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type resultResponse struct {
	Success bool            `json:"success"`
	Outcome string          `json:"outcome"`
	Skipped []ordering.Step `json:"skipped"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

type panelResponse[T any] struct {
	State   ui.State `json:"state"`
	Message string   `json:"message,omitempty"`
	Rows    []T      `json:"rows"`
	HasMore bool     `json:"hasMore"`
	Total   int      `json:"total"`
}

type sessionResponse struct {
	ID      string                              `json:"id"`
	OrderID string                              `json:"orderId"`
	Picker  panelResponse[catalogEntryResponse] `json:"picker"`
	Lines   panelResponse[orderLineResponse]    `json:"lines"`
}

type selectionRequest struct {
	EntryIDs []string `json:"entryIds"`
}

type createSessionRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

func fromEntry(e domain.CatalogEntry) catalogEntryResponse {
	return catalogEntryResponse{
		ID:          e.ID,
		PriceBookID: e.PriceBookID,
		ProductID:   e.ProductID,
		ProductName: e.ProductName,
		ProductCode: e.ProductCode,
		UnitPrice:   e.UnitPrice,
	}
}

func fromOrder(o domain.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		AccountID:     o.AccountID,
		AccountNumber: o.AccountNumber,
		Type:          o.Type,
		Status:        string(o.Status),
		PriceBookID:   o.PriceBookID,
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func fromLine(l domain.OrderLine) orderLineResponse {
	return orderLineResponse{
		ID:             l.ID,
		CatalogEntryID: l.CatalogEntryID,
		ProductID:      l.ProductID,
		ProductName:    l.ProductName,
		ProductCode:    l.ProductCode,
		UnitPrice:      l.UnitPrice,
		Quantity:       l.Quantity,
		TotalPrice:     l.TotalPrice(),
		UpdatedAt:      l.UpdatedAt,
	}
}

func mapSlice[S, D any](items []S, fn func(S) D) []D {
	out := make([]D, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}

func fromView[S, D any](v ui.View[S], fn func(S) D) panelResponse[D] {
	return panelResponse[D]{
		State:   v.State,
		Message: v.Message,
		Rows:    mapSlice(v.Rows, fn),
		HasMore: v.HasMore,
		Total:   v.Total,
	}
}

func fromSession(s *ui.Session) sessionResponse {
	return sessionResponse{
		ID:      s.ID,
		OrderID: s.OrderID,
		Picker:  fromView(s.Picker.View(), fromEntry),
		Lines:   fromView(s.Lines.View(), fromLine),
	}
}

func fromResult(r ordering.Result) resultResponse {
	resp := resultResponse{
		Success: r.OK(),
		Outcome: string(r.Outcome),
		Skipped: r.Skipped,
	}
	if resp.Skipped == nil {
		resp.Skipped = []ordering.Step{}
	}
	if r.Err != nil {
		apiErr := mapError(r.Err)
		resp.Code = apiErr.Code
		resp.Message = apiErr.Message
	}
	return resp
}
