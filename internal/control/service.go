// Package control exposes the sync daemon over gRPC. Messages are
// google.protobuf.Struct so the service needs no generated code.
package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "sellfox.sync.v1.SyncControl"

// ControlServer is the server API of sellfox.sync.v1.SyncControl.
type ControlServer interface {
	TriggerJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMergeSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListInventoryPoints(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTaskLogs(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryHandler(method string, call func(ControlServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ControlServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "TriggerJob", Handler: unaryHandler("TriggerJob", ControlServer.TriggerJob)},
		{MethodName: "GetMergeSummary", Handler: unaryHandler("GetMergeSummary", ControlServer.GetMergeSummary)},
		{MethodName: "ListInventoryPoints", Handler: unaryHandler("ListInventoryPoints", ControlServer.ListInventoryPoints)},
		{MethodName: "ListTaskLogs", Handler: unaryHandler("ListTaskLogs", ControlServer.ListTaskLogs)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sellfox/sync/v1/control.proto",
}

// Client calls SyncControl over cc.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TriggerJob(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "TriggerJob", in, opts...)
}

func (c *Client) GetMergeSummary(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetMergeSummary", in, opts...)
}

func (c *Client) ListInventoryPoints(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListInventoryPoints", in, opts...)
}

func (c *Client) ListTaskLogs(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListTaskLogs", in, opts...)
}
