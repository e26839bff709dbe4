package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type txKey struct{}

// tables — все данные in-memory хранилища. Копируется целиком для отката транзакции.
type tables struct {
	priceBooks map[string]domain.PriceBook
	products   map[string]domain.Product
	entries    map[string]domain.CatalogEntry
	accounts   map[string]domain.Account
	orders     map[string]domain.Order
	lines      map[string]domain.OrderLine
	outbox     map[string]*outboxRecord
	timeline   map[string][]domain.TimelineEvent
}

func newTables() tables {
	return tables{
		priceBooks: make(map[string]domain.PriceBook),
		products:   make(map[string]domain.Product),
		entries:    make(map[string]domain.CatalogEntry),
		accounts:   make(map[string]domain.Account),
		orders:     make(map[string]domain.Order),
		lines:      make(map[string]domain.OrderLine),
		outbox:     make(map[string]*outboxRecord),
		timeline:   make(map[string][]domain.TimelineEvent),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.priceBooks {
		c.priceBooks[k] = v
	}
	for k, v := range t.products {
		c.products[k] = v
	}
	for k, v := range t.entries {
		c.entries[k] = v
	}
	for k, v := range t.accounts {
		c.accounts[k] = v
	}
	for k, v := range t.orders {
		c.orders[k] = v
	}
	for k, v := range t.lines {
		c.lines[k] = v
	}
	for k, v := range t.outbox {
		rec := *v
		c.outbox[k] = &rec
	}
	for k, v := range t.timeline {
		events := make([]domain.TimelineEvent, len(v))
		copy(events, v)
		c.timeline[k] = events
	}
	return c
}

// Store — in-memory хранилище записей для локальной разработки и тестов.
// Транзакции сериализуются; при ошибке данные восстанавливаются из снимка.
// Запись вне транзакции ждёт её завершения, поэтому откат не затирает чужие изменения.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data tables
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{data: newTables()}
}

// WithinTx выполняет fn атомарно. Вложенный вызов переиспользует внешнюю транзакцию.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// lockWrite захватывает хранилище на запись и возвращает функцию освобождения.
func (s *Store) lockWrite(ctx context.Context) func() {
	if ctx != nil && ctx.Value(txKey{}) != nil {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// Ping всегда успешен; нужен для health-проверки наравне с postgres.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Catalog возвращает репозиторий каталога.
func (s *Store) Catalog() *CatalogRepository { return &CatalogRepository{store: s} }

// Orders возвращает репозиторий заказов.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{store: s} }

// Lines возвращает репозиторий позиций заказов.
func (s *Store) Lines() *OrderLineRepository { return &OrderLineRepository{store: s} }

// Accounts возвращает репозиторий клиентов.
func (s *Store) Accounts() *AccountRepository { return &AccountRepository{store: s} }

// Outbox возвращает репозиторий transactional outbox.
func (s *Store) Outbox() *OutboxRepository { return &OutboxRepository{store: s} }

// Timeline возвращает репозиторий событий заказа.
func (s *Store) Timeline() *TimelineRepository { return &TimelineRepository{store: s} }

var _ domain.Transactor = (*Store)(nil)
