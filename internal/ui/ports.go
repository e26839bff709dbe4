package ui

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/ordering"
	"github.com/vladislavdragonenkov/orderdesk/internal/signal"
)

// CatalogLister отдаёт доступные записи каталога.
type CatalogLister interface {
	ListAvailableCatalogEntries(ctx context.Context) ([]domain.CatalogEntry, error)
}

// OrderReader читает заказ и его позиции напрямую из хранилища.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrderLines(ctx context.Context, orderID string) ([]domain.OrderLine, error)
}

// Workflow — рабочие процессы, которые вызывают панели.
type Workflow interface {
	AddToOrderDetailed(ctx context.Context, selected []domain.CatalogEntry, orderID string) ordering.Result
	ConfirmOrderDetailed(ctx context.Context, orderID string) ordering.Result
}

// Dependencies — общие зависимости панелей.
type Dependencies struct {
	Catalog  CatalogLister
	Orders   OrderReader
	Workflow Workflow
	Bus      *signal.Bus
	PageSize int
	Logger   *log.Entry
}

// reloadTimeout ограничивает перечитывание по сигналу шины, у которого нет своего ctx.
const reloadTimeout = 10 * time.Second

func (d Dependencies) logger(component string) *log.Entry {
	if d.Logger != nil {
		return d.Logger.WithField("panel", component)
	}
	return log.New().WithField("component", "ui").WithField("panel", component)
}
