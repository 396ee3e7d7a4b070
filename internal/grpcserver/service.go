package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Requests and
// responses travel as google.protobuf.Struct documents whose fields mirror
// the HTTP API's JSON bodies.
const ServiceName = "parcelhub.v1.HubService"

const (
	methodGetParcel     = "GetParcel"
	methodCreateGroup   = "CreateGroup"
	methodSettlePayment = "SettlePayment"
	methodDispatch      = "Dispatch"
)

type HubServer interface {
	GetParcel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateGroup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SettlePayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Dispatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv HubServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(HubServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(HubServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var HubServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HubServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodGetParcel, HubServer.GetParcel),
		unary(methodCreateGroup, HubServer.CreateGroup),
		unary(methodSettlePayment, HubServer.SettlePayment),
		unary(methodDispatch, HubServer.Dispatch),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "parcelhub/v1/hub.proto",
}

func RegisterHubServer(s grpc.ServiceRegistrar, srv HubServer) {
	s.RegisterService(&HubServiceDesc, srv)
}

type HubClient struct {
	cc grpc.ClientConnInterface
}

func NewHubClient(cc grpc.ClientConnInterface) *HubClient {
	return &HubClient{cc: cc}
}

func (c *HubClient) GetParcel(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGetParcel, in, opts...)
}

func (c *HubClient) CreateGroup(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodCreateGroup, in, opts...)
}

func (c *HubClient) SettlePayment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodSettlePayment, in, opts...)
}

func (c *HubClient) Dispatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodDispatch, in, opts...)
}

func (c *HubClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
