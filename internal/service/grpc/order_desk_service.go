// Package grpcsvc — gRPC API orderdesk.v1.OrderDeskService поверх JSON-кодека.
package grpcsvc

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderdesk/internal/access"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/ordering"
)

// MetadataPermissionProfile — ключ metadata с именем профиля прав.
const MetadataPermissionProfile = "x-permission-profile"

// Reader — чтение каталога и заказа.
type Reader interface {
	ListAvailableCatalogEntries(ctx context.Context) ([]domain.CatalogEntry, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrderLines(ctx context.Context, orderID string) ([]domain.OrderLine, error)
}

// Workflow — рабочие процессы заказа.
type Workflow interface {
	AddEntriesToOrder(ctx context.Context, entryIDs []string, orderID string) ordering.Result
	ConfirmOrderDetailed(ctx context.Context, orderID string) ordering.Result
}

// OrderDeskService реализует OrderDeskServer.
type OrderDeskService struct {
	reader   Reader
	workflow Workflow
	logger   *log.Entry
}

// NewOrderDeskService конструирует сервис с зависимостями.
func NewOrderDeskService(reader Reader, workflow Workflow, logger *log.Entry) *OrderDeskService {
	if logger == nil {
		logger = log.New().WithField("component", "grpc-service")
	}
	return &OrderDeskService{reader: reader, workflow: workflow, logger: logger}
}

func (s *OrderDeskService) ListCatalogEntries(ctx context.Context, _ *ListCatalogEntriesRequest) (*ListCatalogEntriesResponse, error) {
	entries, err := s.reader.ListAvailableCatalogEntries(ctx)
	if err != nil {
		return nil, s.toStatus(err, "ListCatalogEntries", "")
	}

	resp := &ListCatalogEntriesResponse{Entries: make([]CatalogEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, CatalogEntry{
			ID:          e.ID,
			PriceBookID: e.PriceBookID,
			ProductID:   e.ProductID,
			ProductName: e.ProductName,
			ProductCode: e.ProductCode,
			UnitPrice:   e.UnitPrice,
		})
	}
	return resp, nil
}

func (s *OrderDeskService) ListOrderLines(ctx context.Context, req *ListOrderLinesRequest) (*ListOrderLinesResponse, error) {
	if req == nil || req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	order, err := s.reader.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err, "ListOrderLines", req.OrderID)
	}
	lines, err := s.reader.ListOrderLines(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err, "ListOrderLines", req.OrderID)
	}

	resp := &ListOrderLinesResponse{
		OrderID:     order.ID,
		OrderStatus: string(order.Status),
		Lines:       make([]OrderLine, 0, len(lines)),
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, OrderLine{
			ID:             l.ID,
			CatalogEntryID: l.CatalogEntryID,
			ProductName:    l.ProductName,
			ProductCode:    l.ProductCode,
			UnitPrice:      l.UnitPrice,
			Quantity:       l.Quantity,
			TotalPrice:     l.TotalPrice(),
			UpdatedAt:      l.UpdatedAt,
		})
	}
	return resp, nil
}

func (s *OrderDeskService) AddToOrder(ctx context.Context, req *AddToOrderRequest) (*WorkflowResponse, error) {
	if req == nil || req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	return s.toResponse(s.workflow.AddEntriesToOrder(ctx, req.EntryIDs, req.OrderID), "AddToOrder", req.OrderID)
}

func (s *OrderDeskService) ConfirmOrder(ctx context.Context, req *ConfirmOrderRequest) (*WorkflowResponse, error) {
	if req == nil || req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	return s.toResponse(s.workflow.ConfirmOrderDetailed(ctx, req.OrderID), "ConfirmOrder", req.OrderID)
}

func (s *OrderDeskService) toResponse(result ordering.Result, operation, orderID string) (*WorkflowResponse, error) {
	if !result.OK() {
		return nil, s.toStatus(result.Err, operation, orderID)
	}
	resp := &WorkflowResponse{Success: true, Outcome: string(result.Outcome)}
	for _, step := range result.Skipped {
		resp.Skipped = append(resp.Skipped, string(step))
	}
	return resp, nil
}

func (s *OrderDeskService) toStatus(err error, operation, orderID string) error {
	s.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"order_id":  orderID,
	}).Warn("grpc call failed")

	switch {
	case domain.IsPermissionDenied(err):
		return status.Error(codes.PermissionDenied, err.Error())
	case domain.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrEmptySelection):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrOrderActivated), errors.Is(err, domain.ErrConfirmationRejected):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrConfirmationTransport):
		return status.Error(codes.Unavailable, err.Error())
	case domain.IsVersionConflict(err):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// ProfileInterceptor кладёт профиль из metadata x-permission-profile в ctx.
// Без metadata действует профиль реестра по умолчанию; неизвестное имя — PermissionDenied.
func ProfileInterceptor(profiles *access.Registry) grpc.UnaryServerInterceptor {
	if profiles == nil {
		profiles = access.DefaultRegistry()
	}
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		profile := profiles.Default()
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(MetadataPermissionProfile); len(values) > 0 && strings.TrimSpace(values[0]) != "" {
				name := strings.TrimSpace(values[0])
				p, found := profiles.Lookup(name)
				if !found {
					return nil, status.Errorf(codes.PermissionDenied, "unknown permission profile %q", name)
				}
				profile = p
			}
		}
		return handler(access.WithProfile(ctx, profile), req)
	}
}

var _ OrderDeskServer = (*OrderDeskService)(nil)
