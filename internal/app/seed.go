package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// Demo identifiers.
const (
	DemoPriceBookID = "pb-standard"
	DemoAccountID   = "acc-demo"
	DemoOrderID     = "order-demo"
)

// SeedStore — то, что нужно для демо-данных.
type SeedStore struct {
	Catalog  domain.CatalogRepository
	Writer   domain.CatalogWriter
	Accounts domain.AccountRepository
	Orders   domain.OrderRepository
}

var demoProducts = []struct {
	id, name, code string
	price          float64
}{
	{"prod-gen", "Generator 5kW", "GEN-5000", 1250},
	{"prod-cbl", "Power cable 10m", "CBL-10", 18.5},
	{"prod-ups", "UPS 1500VA", "UPS-1500", 320},
	{"prod-rck", "Server rack 42U", "RCK-42", 890},
	{"prod-pdu", "Rack PDU", "PDU-8", 145},
}

// SeedDemo создаёт стандартный прайс-лист, товары, клиента и черновик заказа.
// false — стандартный прайс-лист уже есть и данные не менялись.
func SeedDemo(ctx context.Context, s SeedStore) (bool, error) {
	if _, err := s.Catalog.StandardPriceBook(ctx); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrStandardPriceBookNotFound) {
		return false, fmt.Errorf("check standard price book: %w", err)
	}

	if err := s.Writer.CreatePriceBook(ctx, domain.PriceBook{ID: DemoPriceBookID, Name: "Standard Price Book", IsStandard: true, IsActive: true}); err != nil {
		return false, fmt.Errorf("seed price book: %w", err)
	}
	for _, p := range demoProducts {
		if err := s.Writer.CreateProduct(ctx, domain.Product{ID: p.id, Name: p.name, ProductCode: p.code, IsActive: true}); err != nil {
			return false, fmt.Errorf("seed product %s: %w", p.id, err)
		}
		if err := s.Writer.CreateEntry(ctx, domain.CatalogEntry{
			ID:          "pbe-" + p.id,
			PriceBookID: DemoPriceBookID,
			ProductID:   p.id,
			UnitPrice:   p.price,
			IsActive:    true,
		}); err != nil {
			return false, fmt.Errorf("seed catalog entry %s: %w", p.id, err)
		}
	}

	if err := s.Accounts.Create(ctx, domain.Account{ID: DemoAccountID, Name: "Demo Customer", AccountNumber: "CD451796"}); err != nil {
		return false, fmt.Errorf("seed account: %w", err)
	}
	now := time.Now().UTC()
	if err := s.Orders.Create(ctx, domain.Order{
		ID:          DemoOrderID,
		OrderNumber: "00000100",
		AccountID:   DemoAccountID,
		Type:        "New",
		Status:      domain.OrderStatusDraft,
		PriceBookID: DemoPriceBookID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return false, fmt.Errorf("seed order: %w", err)
	}
	return true, nil
}

func (d *runtimeDependencies) seedStore() SeedStore {
	return SeedStore{Catalog: d.catalog, Writer: d.catalogWriter, Accounts: d.accounts, Orders: d.orders}
}
