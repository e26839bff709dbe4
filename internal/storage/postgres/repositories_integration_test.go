package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

func TestCatalogRepository_PostgresReads(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedCatalog(t, store)
	ctx := context.Background()

	book, err := store.Catalog().StandardPriceBook(ctx)
	if err != nil {
		t.Fatalf("standard price book: %v", err)
	}
	if book.ID != "pb-std" {
		t.Fatalf("unexpected standard price book: %+v", book)
	}

	entries, err := store.Catalog().ListActiveEntries(ctx, "pb-std", 0)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "pbe-2" || entries[1].ID != "pbe-1" {
		t.Fatalf("expected entries ordered by price, got %+v", entries)
	}
	if entries[1].ProductName != "Generator" || entries[1].ProductCode != "GEN-1" {
		t.Fatalf("expected joined product fields, got %+v", entries[1])
	}

	limited, err := store.Catalog().ListActiveEntries(ctx, "pb-std", 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	got, err := store.Catalog().GetEntries(ctx, []string{"pbe-1", "pbe-2"})
	if err != nil {
		t.Fatalf("get entries: %v", err)
	}
	if got[0].ID != "pbe-1" || got[1].ID != "pbe-2" {
		t.Fatalf("expected request order, got %+v", got)
	}

	if _, err := store.Catalog().GetEntries(ctx, []string{"ghost"}); !errors.Is(err, domain.ErrCatalogEntryNotFound) {
		t.Fatalf("expected ErrCatalogEntryNotFound, got %v", err)
	}
}

func TestOrderRepository_PostgresGetSaveConflict(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	order := seedCatalog(t, store)
	ctx := context.Background()

	got, err := store.Orders().Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.AccountNumber != "CD451796" || got.PriceBookID != "pb-std" {
		t.Fatalf("unexpected order: %+v", got)
	}

	if err := store.Orders().Create(ctx, order); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected conflict on duplicate create, got %v", err)
	}

	got.Status = domain.OrderStatusActivated
	got.UpdatedAt = time.Now().UTC()
	if err := store.Orders().Save(ctx, got); err != nil {
		t.Fatalf("save order: %v", err)
	}

	if err := store.Orders().Save(ctx, got); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected version conflict on stale save, got %v", err)
	}

	missing := got
	missing.ID = "ghost"
	if err := store.Orders().Save(ctx, missing); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Orders().Get(ctx, "ghost"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected not found on get, got %v", err)
	}
}

func TestOrderLineRepository_PostgresInsertUpdateList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	order := seedCatalog(t, store)
	ctx := context.Background()
	now := time.Now().UTC().Round(time.Microsecond)

	entries, err := store.Catalog().GetEntries(ctx, []string{"pbe-1", "pbe-2"})
	if err != nil {
		t.Fatalf("get entries: %v", err)
	}
	lines := []domain.OrderLine{
		domain.NewOrderLine("line-1", order.ID, entries[0], now),
		domain.NewOrderLine("line-2", order.ID, entries[1], now),
	}
	if err := store.Lines().InsertBatch(ctx, lines); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	lines[0].Quantity = 2.5
	lines[0].UpdatedAt = now.Add(time.Second)
	if err := store.Lines().UpdateBatch(ctx, lines[:1]); err != nil {
		t.Fatalf("update batch: %v", err)
	}

	listed, err := store.Lines().ListByOrder(ctx, order.ID, 0)
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "line-2" || listed[1].ID != "line-1" {
		t.Fatalf("expected lines ordered by price, got %+v", listed)
	}
	if listed[1].Quantity != 2.5 || listed[1].ProductName != "Generator" {
		t.Fatalf("unexpected updated line: %+v", listed[1])
	}

	if err := store.Lines().UpdateBatch(ctx, []domain.OrderLine{{ID: "ghost"}}); err == nil {
		t.Fatal("expected error updating unknown line")
	}
}

func TestOrderLineRepository_PostgresRejectsPriceBookMismatch(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	order := seedCatalog(t, store)
	ctx := context.Background()
	now := time.Now().UTC()

	custom := domain.CatalogEntry{ID: "pbe-c", PriceBookID: "pb-custom", ProductID: "prod-1", UnitPrice: 90}
	good := domain.NewOrderLine("line-ok", order.ID, domain.CatalogEntry{ID: "pbe-1", UnitPrice: 100}, now)
	bad := domain.NewOrderLine("line-bad", order.ID, custom, now)

	err := store.Lines().InsertBatch(ctx, []domain.OrderLine{good, bad})
	if !errors.Is(err, domain.ErrPriceBookMismatch) {
		t.Fatalf("expected ErrPriceBookMismatch, got %v", err)
	}

	listed, err := store.Lines().ListByOrder(ctx, order.ID, 0)
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected batch to be rolled back, got %d lines", len(listed))
	}

	orphan := domain.NewOrderLine("line-orphan", "ghost-order", domain.CatalogEntry{ID: "pbe-1"}, now)
	if err := store.Lines().InsertBatch(ctx, []domain.OrderLine{orphan}); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	order := seedCatalog(t, store)
	ctx := context.Background()

	if err := store.Timeline().Append(ctx, domain.TimelineEvent{
		OrderID: order.ID,
		Type:    domain.TimelineOrderLinesAdded,
		Reason:  "2 lines",
	}); err != nil {
		t.Fatalf("append timeline event with zero occurred: %v", err)
	}

	explicit := time.Now().UTC().Add(time.Minute).Round(time.Microsecond)
	if err := store.Timeline().Append(ctx, domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     domain.TimelineOrderActivated,
		Occurred: explicit,
	}); err != nil {
		t.Fatalf("append timeline event with explicit occurred: %v", err)
	}

	events, err := store.Timeline().List(ctx, order.ID)
	if err != nil {
		t.Fatalf("list timeline: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != domain.TimelineOrderLinesAdded || events[0].Occurred.IsZero() {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Type != domain.TimelineOrderActivated || !events[1].Occurred.Equal(explicit) {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}
