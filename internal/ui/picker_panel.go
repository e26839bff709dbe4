package ui

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/ordering"
	"github.com/vladislavdragonenkov/orderdesk/internal/signal"
)

// PickerPanel — подбор записей каталога для одного заказа.
type PickerPanel struct {
	orderID  string
	catalog  CatalogLister
	orders   OrderReader
	workflow Workflow
	bus      *signal.Bus
	logger   *log.Entry

	mu      sync.Mutex
	state   State
	message string
	pager   *Pager[domain.CatalogEntry]

	unsubscribe func()
}

// NewPickerPanel создаёт панель и подписывает её на сигналы шины.
func NewPickerPanel(orderID string, deps Dependencies) *PickerPanel {
	p := &PickerPanel{
		orderID:  orderID,
		catalog:  deps.Catalog,
		orders:   deps.Orders,
		workflow: deps.Workflow,
		bus:      deps.Bus,
		logger:   deps.logger("picker").WithField("order_id", orderID),
		state:    StateLoading,
		pager:    NewPager[domain.CatalogEntry](deps.PageSize),
	}
	p.unsubscribe = deps.Bus.Subscribe(p.onSignal)
	return p
}

// Load читает статус заказа, затем каталог. Активированный заказ сразу выключает панель.
func (p *PickerPanel) Load(ctx context.Context) error {
	p.setState(StateLoading, "")

	order, err := p.orders.GetOrder(ctx, p.orderID)
	if err != nil {
		p.fail(err)
		return err
	}
	if order.Status.IsTerminal() {
		p.disable()
		return nil
	}

	entries, err := p.catalog.ListAvailableCatalogEntries(ctx)
	if err != nil {
		p.fail(err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Сигнал deactivate мог прийти, пока шло чтение.
	if p.state == StateDisabled {
		return nil
	}
	p.pager.Reset(entries)
	p.state = StateReady
	p.message = ""
	return nil
}

// LoadMore показывает следующее окно каталога.
func (p *PickerPanel) LoadMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateReady {
		return false
	}
	return p.pager.LoadMore()
}

// AddSelected добавляет выбранные записи из кэша панели в заказ.
// При успехе публикует {fetch:true}, чтобы панель позиций перечитала список.
func (p *PickerPanel) AddSelected(ctx context.Context, entryIDs []string) ordering.Result {
	selected, err := p.resolve(entryIDs)
	if err != nil {
		return ordering.Result{Outcome: ordering.OutcomeFailed, Err: err}
	}

	result := p.workflow.AddToOrderDetailed(ctx, selected, p.orderID)
	if !result.OK() {
		p.logger.WithError(result.Err).Warn("add selected entries failed")
		return result
	}

	p.bus.Publish(signal.FetchMessage(p.orderID))
	return result
}

// resolve находит выбранные записи в полном кэше (не только в показанном окне).
func (p *PickerPanel) resolve(entryIDs []string) ([]domain.CatalogEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateDisabled:
		return nil, domain.ErrOrderActivated
	case StateReady:
	default:
		return nil, fmt.Errorf("picker panel is %s", p.state)
	}
	if len(entryIDs) == 0 {
		return nil, domain.ErrEmptySelection
	}

	cached := make(map[string]domain.CatalogEntry, p.pager.Len())
	for _, entry := range p.pager.All() {
		cached[entry.ID] = entry
	}

	selected := make([]domain.CatalogEntry, 0, len(entryIDs))
	for _, id := range entryIDs {
		entry, ok := cached[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrCatalogEntryNotFound, id)
		}
		selected = append(selected, entry)
	}
	return selected, nil
}

// View возвращает снимок панели.
func (p *PickerPanel) View() View[domain.CatalogEntry] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return newView(p.state, p.message, p.pager)
}

// Close отписывает панель от шины.
func (p *PickerPanel) Close() {
	p.unsubscribe()
}

func (p *PickerPanel) onSignal(msg signal.Message) {
	if msg.OrderID != p.orderID || !msg.Deactivate {
		return
	}
	p.disable()
}

func (p *PickerPanel) disable() {
	p.setState(StateDisabled, MessagePickerDisabled)
	p.logger.Debug("picker disabled: order activated")
}

func (p *PickerPanel) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateDisabled {
		return
	}
	p.state = StateError
	p.message = errorMessage(err)
}

func (p *PickerPanel) setState(state State, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	p.message = message
}

// errorMessage — текст ошибки для пользователя.
func errorMessage(err error) string {
	switch {
	case domain.IsPermissionDenied(err):
		return "You do not have permission to perform this action."
	case domain.IsNotFound(err):
		return "The order or catalog record was not found."
	default:
		return err.Error()
	}
}
