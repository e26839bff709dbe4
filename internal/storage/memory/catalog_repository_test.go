package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

func TestCatalogRepository_ListActiveEntriesSortedAndLimited(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	catalog := store.Catalog()

	_ = catalog.CreatePriceBook(ctx, domain.PriceBook{ID: "pb", IsStandard: true, IsActive: true})
	_ = catalog.CreateEntry(ctx, domain.CatalogEntry{ID: "e-3", PriceBookID: "pb", UnitPrice: 30, IsActive: true})
	_ = catalog.CreateEntry(ctx, domain.CatalogEntry{ID: "e-1", PriceBookID: "pb", UnitPrice: 10, IsActive: true})
	_ = catalog.CreateEntry(ctx, domain.CatalogEntry{ID: "e-2", PriceBookID: "pb", UnitPrice: 20, IsActive: true})
	_ = catalog.CreateEntry(ctx, domain.CatalogEntry{ID: "e-off", PriceBookID: "pb", UnitPrice: 1, IsActive: false})

	entries, err := catalog.ListActiveEntries(ctx, "pb", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "e-1" || entries[1].ID != "e-2" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestCatalogRepository_StandardPriceBookMissing(t *testing.T) {
	store := memory.NewStore()

	if _, err := store.Catalog().StandardPriceBook(context.Background()); !errors.Is(err, domain.ErrStandardPriceBookNotFound) {
		t.Fatalf("expected ErrStandardPriceBookNotFound, got %v", err)
	}
}

func TestCatalogRepository_GetEntriesUnknown(t *testing.T) {
	store := memory.NewStore()

	if _, err := store.Catalog().GetEntries(context.Background(), []string{"nope"}); !errors.Is(err, domain.ErrCatalogEntryNotFound) {
		t.Fatalf("expected ErrCatalogEntryNotFound, got %v", err)
	}
}

func TestCatalogRepository_CreateEntryRequiresPriceBook(t *testing.T) {
	store := memory.NewStore()

	if err := store.Catalog().CreateEntry(context.Background(), domain.CatalogEntry{ID: "e", PriceBookID: "missing"}); err == nil {
		t.Fatal("expected error for unknown price book")
	}
}
