package domain

import "context"

// CatalogRepository читает прайс-листы и записи каталога.
type CatalogRepository interface {
	// StandardPriceBook возвращает стандартный прайс-лист или ErrStandardPriceBookNotFound.
	StandardPriceBook(ctx context.Context) (PriceBook, error)
	// ListActiveEntries возвращает активные записи прайс-листа по возрастанию цены, не больше limit.
	ListActiveEntries(ctx context.Context, priceBookID string, limit int) ([]CatalogEntry, error)
	// GetEntries возвращает записи по идентификаторам в порядке запроса.
	// Неизвестная или неактивная запись даёт ErrCatalogEntryNotFound.
	GetEntries(ctx context.Context, ids []string) ([]CatalogEntry, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderVersionConflict, если ID занят.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ с номером счёта клиента или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
}

// OrderLineRepository хранит позиции заказов.
type OrderLineRepository interface {
	// ListByOrder возвращает позиции заказа по возрастанию цены. limit <= 0 — без ограничения.
	ListByOrder(ctx context.Context, orderID string, limit int) ([]OrderLine, error)
	// InsertBatch вставляет позиции одной пачкой.
	InsertBatch(ctx context.Context, lines []OrderLine) error
	// UpdateBatch обновляет количество позиций одной пачкой.
	UpdateBatch(ctx context.Context, lines []OrderLine) error
}

// CatalogWriter наполняет каталог (seed-команда, тесты). Рабочий процесс каталог не меняет.
type CatalogWriter interface {
	CreatePriceBook(ctx context.Context, book PriceBook) error
	CreateProduct(ctx context.Context, product Product) error
	CreateEntry(ctx context.Context, entry CatalogEntry) error
}

// AccountRepository нужен для первичного наполнения данных.
type AccountRepository interface {
	Create(ctx context.Context, account Account) error
}

// Transactor задаёт явную границу транзакции: все записи fn фиксируются целиком или откатываются.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
