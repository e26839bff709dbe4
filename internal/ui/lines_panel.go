package ui

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/access"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/ordering"
	"github.com/vladislavdragonenkov/orderdesk/internal/signal"
)

// LinesPanel — позиции одного заказа и кнопка подтверждения.
type LinesPanel struct {
	orderID  string
	orders   OrderReader
	workflow Workflow
	bus      *signal.Bus
	logger   *log.Entry

	mu        sync.Mutex
	state     State
	message   string
	pager     *Pager[domain.OrderLine]
	reloadCtx func() (context.Context, context.CancelFunc)

	unsubscribe func()
}

// NewLinesPanel создаёт панель и подписывает её на сигналы шины.
func NewLinesPanel(orderID string, deps Dependencies) *LinesPanel {
	p := &LinesPanel{
		orderID:   orderID,
		orders:    deps.Orders,
		workflow:  deps.Workflow,
		bus:       deps.Bus,
		logger:    deps.logger("lines").WithField("order_id", orderID),
		state:     StateLoading,
		pager:     NewPager[domain.OrderLine](deps.PageSize),
		reloadCtx: profileContext(context.Background()),
	}
	p.unsubscribe = deps.Bus.Subscribe(p.onSignal)
	return p
}

// Load читает заказ и позиции. У активированного заказа позиции остаются видны,
// но подтверждение выключено.
func (p *LinesPanel) Load(ctx context.Context) error {
	p.mu.Lock()
	p.reloadCtx = profileContext(ctx)
	if p.state != StateDisabled {
		p.state = StateLoading
		p.message = ""
	}
	p.mu.Unlock()

	order, err := p.orders.GetOrder(ctx, p.orderID)
	if err != nil {
		p.fail(err)
		return err
	}
	lines, err := p.orders.ListOrderLines(ctx, p.orderID)
	if err != nil {
		p.fail(err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pager.Reset(lines)
	if order.Status.IsTerminal() || p.state == StateDisabled {
		p.state = StateDisabled
		p.message = MessageLinesDisabled
		return nil
	}
	p.state = StateReady
	p.message = ""
	return nil
}

// LoadMore показывает следующее окно позиций. Работает и у выключенной панели.
func (p *LinesPanel) LoadMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateReady && p.state != StateDisabled {
		return false
	}
	return p.pager.LoadMore()
}

// Confirm подтверждает заказ. При успехе панель выключается и публикует {deactivate:true}.
func (p *LinesPanel) Confirm(ctx context.Context) ordering.Result {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	switch state {
	case StateDisabled:
		return ordering.Result{Outcome: ordering.OutcomeFailed, Err: domain.ErrOrderActivated}
	case StateReady:
	default:
		return ordering.Result{Outcome: ordering.OutcomeFailed, Err: fmt.Errorf("lines panel is %s", state)}
	}

	result := p.workflow.ConfirmOrderDetailed(ctx, p.orderID)
	if !result.OK() {
		p.logger.WithError(result.Err).Warn("confirm order failed")
		return result
	}

	p.disable()
	p.bus.Publish(signal.DeactivateMessage(p.orderID))
	return result
}

// View возвращает снимок панели.
func (p *LinesPanel) View() View[domain.OrderLine] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return newView(p.state, p.message, p.pager)
}

// Close отписывает панель от шины.
func (p *LinesPanel) Close() {
	p.unsubscribe()
}

func (p *LinesPanel) onSignal(msg signal.Message) {
	if msg.OrderID != p.orderID {
		return
	}
	if msg.Deactivate {
		p.disable()
	}
	if msg.Fetch {
		p.mu.Lock()
		newCtx := p.reloadCtx
		p.mu.Unlock()

		ctx, cancel := newCtx()
		defer cancel()
		if err := p.Load(ctx); err != nil {
			p.logger.WithError(err).Warn("reload after fetch signal failed")
		}
	}
}

func (p *LinesPanel) disable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateDisabled
	p.message = MessageLinesDisabled
}

func (p *LinesPanel) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateDisabled {
		return
	}
	p.state = StateError
	p.message = errorMessage(err)
}

// profileContext переносит профиль прав из ctx запроса в фоновый ctx перечитывания.
func profileContext(ctx context.Context) func() (context.Context, context.CancelFunc) {
	profile, ok := access.FromContext(ctx)
	return func() (context.Context, context.CancelFunc) {
		base := context.Background()
		if ok {
			base = access.WithProfile(base, profile)
		}
		return context.WithTimeout(base, reloadTimeout)
	}
}
