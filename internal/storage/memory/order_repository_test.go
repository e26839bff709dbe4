package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

func seedStore(t *testing.T) *memory.Store {
	t.Helper()

	ctx := context.Background()
	store := memory.NewStore()
	catalog := store.Catalog()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	must(catalog.CreatePriceBook(ctx, domain.PriceBook{ID: "pb-std", Name: "Standard", IsStandard: true, IsActive: true}))
	must(catalog.CreatePriceBook(ctx, domain.PriceBook{ID: "pb-custom", Name: "Custom", IsActive: true}))
	must(catalog.CreateProduct(ctx, domain.Product{ID: "prod-1", Name: "Generator", ProductCode: "GEN-1", IsActive: true}))
	must(catalog.CreateEntry(ctx, domain.CatalogEntry{ID: "pbe-1", PriceBookID: "pb-std", ProductID: "prod-1", UnitPrice: 100, IsActive: true}))
	must(catalog.CreateEntry(ctx, domain.CatalogEntry{ID: "pbe-c", PriceBookID: "pb-custom", ProductID: "prod-1", UnitPrice: 90, IsActive: true}))
	must(store.Accounts().Create(ctx, domain.Account{ID: "acc-1", Name: "Edge", AccountNumber: "CD451796"}))

	now := time.Now().UTC()
	must(store.Orders().Create(ctx, domain.Order{
		ID:          "order-1",
		OrderNumber: "00000100",
		AccountID:   "acc-1",
		Type:        "New",
		Status:      domain.OrderStatusDraft,
		PriceBookID: "pb-std",
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	return store
}

func TestOrderRepository_GetJoinsAccountNumber(t *testing.T) {
	store := seedStore(t)

	order, err := store.Orders().Get(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if order.AccountNumber != "CD451796" {
		t.Fatalf("expected account number CD451796, got %q", order.AccountNumber)
	}
}

func TestOrderRepository_GetMissing(t *testing.T) {
	store := memory.NewStore()

	if _, err := store.Orders().Get(context.Background(), "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_SaveIncrementsVersion(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	orders := store.Orders()

	order, err := orders.Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	order.Status = domain.OrderStatusActivated
	if err := orders.Save(ctx, order); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	updated, err := orders.Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.Status != domain.OrderStatusActivated {
		t.Fatalf("expected Activated, got %s", updated.Status)
	}
	if updated.Version != order.Version+1 {
		t.Fatalf("expected version increment, got %d", updated.Version)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	order, _ := store.Orders().Get(ctx, "order-1")
	order.Version = 42
	if err := store.Orders().Save(ctx, order); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestOrderLineRepository_InsertRejectsPriceBookMismatch(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	custom, err := store.Catalog().GetEntries(ctx, []string{"pbe-c"})
	if err != nil {
		t.Fatalf("get entries: %v", err)
	}

	line := domain.NewOrderLine("line-1", "order-1", custom[0], time.Now().UTC())
	if err := store.Lines().InsertBatch(ctx, []domain.OrderLine{line}); !errors.Is(err, domain.ErrPriceBookMismatch) {
		t.Fatalf("expected ErrPriceBookMismatch, got %v", err)
	}

	lines, _ := store.Lines().ListByOrder(ctx, "order-1", 0)
	if len(lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(lines))
	}
}

func TestOrderLineRepository_InsertUpdateList(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	entries, err := store.Catalog().GetEntries(ctx, []string{"pbe-1"})
	if err != nil {
		t.Fatalf("get entries: %v", err)
	}
	if entries[0].ProductName != "Generator" {
		t.Fatalf("expected product name from product, got %q", entries[0].ProductName)
	}

	line := domain.NewOrderLine("line-1", "order-1", entries[0], time.Now().UTC())
	if err := store.Lines().InsertBatch(ctx, []domain.OrderLine{line}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	line.Quantity = 3
	if err := store.Lines().UpdateBatch(ctx, []domain.OrderLine{line}); err != nil {
		t.Fatalf("update: %v", err)
	}

	lines, err := store.Lines().ListByOrder(ctx, "order-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("expected single line with qty 3, got %+v", lines)
	}
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		order, err := store.Orders().Get(ctx, "order-1")
		if err != nil {
			return err
		}
		order.PriceBookID = "pb-custom"
		if err := store.Orders().Save(ctx, order); err != nil {
			return err
		}
		if _, err := store.Outbox().Enqueue(ctx, domain.OutboxMessage{AggregateID: "order-1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	order, _ := store.Orders().Get(ctx, "order-1")
	if order.PriceBookID != "pb-std" || order.Version != 0 {
		t.Fatalf("expected rollback, got %+v", order)
	}
	if pending := store.Outbox().AllPending(); len(pending) != 0 {
		t.Fatalf("expected outbox rollback, got %d messages", len(pending))
	}
}

func TestStore_WithinTxNested(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		return store.WithinTx(ctx, func(ctx context.Context) error {
			return store.Timeline().Append(ctx, domain.TimelineEvent{OrderID: "order-1", Type: "x"})
		})
	})
	if err != nil {
		t.Fatalf("nested tx: %v", err)
	}

	events, _ := store.Timeline().List(ctx, "order-1")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
}

func TestStore_RollbackKeepsWritesOutsideTx(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	boom := errors.New("boom")

	sent, err := store.Outbox().Enqueue(ctx, domain.OutboxMessage{AggregateID: "order-1"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan error, 2)
	err = store.WithinTx(ctx, func(txCtx context.Context) error {
		if err := store.Timeline().Append(txCtx, domain.TimelineEvent{OrderID: "order-1", Type: "tx"}); err != nil {
			return err
		}
		go func() {
			done <- store.Timeline().Append(ctx, domain.TimelineEvent{OrderID: "order-1", Type: "outside"})
		}()
		go func() {
			done <- store.Outbox().MarkSent(ctx, sent.ID)
		}()
		time.Sleep(20 * time.Millisecond)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("write outside tx: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("write outside tx did not finish")
		}
	}

	events, _ := store.Timeline().List(ctx, "order-1")
	if len(events) != 1 || events[0].Type != "outside" {
		t.Fatalf("expected only the event written outside the tx, got %+v", events)
	}
	if pending := store.Outbox().AllPending(); len(pending) != 0 {
		t.Fatalf("expected sent mark to survive rollback, got %d pending", len(pending))
	}
}
