package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName — полное имя gRPC-сервиса.
const ServiceName = "orderdesk.v1.OrderDeskService"

// Full method names.
const (
	MethodListCatalogEntries = "/" + ServiceName + "/ListCatalogEntries"
	MethodListOrderLines     = "/" + ServiceName + "/ListOrderLines"
	MethodAddToOrder         = "/" + ServiceName + "/AddToOrder"
	MethodConfirmOrder       = "/" + ServiceName + "/ConfirmOrder"
)

// OrderDeskServer — серверная сторона сервиса.
type OrderDeskServer interface {
	ListCatalogEntries(context.Context, *ListCatalogEntriesRequest) (*ListCatalogEntriesResponse, error)
	ListOrderLines(context.Context, *ListOrderLinesRequest) (*ListOrderLinesResponse, error)
	AddToOrder(context.Context, *AddToOrderRequest) (*WorkflowResponse, error)
	ConfirmOrder(context.Context, *ConfirmOrderRequest) (*WorkflowResponse, error)
}

// ServiceDesc описывает сервис вручную: сообщения кодируются JSON-кодеком, а не protobuf.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderDeskServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListCatalogEntries",
			Handler:    unaryHandler(MethodListCatalogEntries, OrderDeskServer.ListCatalogEntries),
		},
		{
			MethodName: "ListOrderLines",
			Handler:    unaryHandler(MethodListOrderLines, OrderDeskServer.ListOrderLines),
		},
		{
			MethodName: "AddToOrder",
			Handler:    unaryHandler(MethodAddToOrder, OrderDeskServer.AddToOrder),
		},
		{
			MethodName: "ConfirmOrder",
			Handler:    unaryHandler(MethodConfirmOrder, OrderDeskServer.ConfirmOrder),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orderdesk/v1/orderdesk.json",
}

// RegisterOrderDeskServer регистрирует реализацию на сервере.
func RegisterOrderDeskServer(s grpc.ServiceRegistrar, srv OrderDeskServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryHandler[Req, Resp any](
	fullMethod string,
	call func(OrderDeskServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderDeskServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderDeskServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client — клиент сервиса поверх JSON-кодека.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient создаёт клиента.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ListCatalogEntries(ctx context.Context, in *ListCatalogEntriesRequest, opts ...grpc.CallOption) (*ListCatalogEntriesResponse, error) {
	return invoke[ListCatalogEntriesResponse](ctx, c.cc, MethodListCatalogEntries, in, opts)
}

func (c *Client) ListOrderLines(ctx context.Context, in *ListOrderLinesRequest, opts ...grpc.CallOption) (*ListOrderLinesResponse, error) {
	return invoke[ListOrderLinesResponse](ctx, c.cc, MethodListOrderLines, in, opts)
}

func (c *Client) AddToOrder(ctx context.Context, in *AddToOrderRequest, opts ...grpc.CallOption) (*WorkflowResponse, error) {
	return invoke[WorkflowResponse](ctx, c.cc, MethodAddToOrder, in, opts)
}

func (c *Client) ConfirmOrder(ctx context.Context, in *ConfirmOrderRequest, opts ...grpc.CallOption) (*WorkflowResponse, error) {
	return invoke[WorkflowResponse](ctx, c.cc, MethodConfirmOrder, in, opts)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
