package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the shortener gRPC service.
const ServiceName = "shortlink.v1.URLService"

// URLServiceServer is the server side of shortlink.v1.URLService.
//
// Records travel as structpb.Struct with the same keys as the JSON API.
type URLServiceServer interface {
	Create(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Resolve(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	List(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

// RegisterURLServiceServer attaches srv to the gRPC registrar.
func RegisterURLServiceServer(s grpc.ServiceRegistrar, srv URLServiceServer) {
	s.RegisterService(&URLServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, newReq func() *Req, call func(URLServiceServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(URLServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(URLServiceServer), ctx, req.(*Req))
			})
		},
	}
}

// URLServiceDesc describes shortlink.v1.URLService for grpc.Server.
var URLServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*URLServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Create", func() *structpb.Struct { return new(structpb.Struct) }, URLServiceServer.Create),
		unaryHandler("Get", func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, URLServiceServer.Get),
		unaryHandler("Resolve", func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, URLServiceServer.Resolve),
		unaryHandler("Update", func() *structpb.Struct { return new(structpb.Struct) }, URLServiceServer.Update),
		unaryHandler("Delete", func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, URLServiceServer.Delete),
		unaryHandler("List", func() *emptypb.Empty { return new(emptypb.Empty) }, URLServiceServer.List),
	},
	Streams: []grpc.StreamDesc{},
}

// Client is the client side of shortlink.v1.URLService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *Client) Create(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Create", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Get", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Resolve(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, "Resolve", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Update", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.invoke(ctx, "Delete", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) List(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.invoke(ctx, "List", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
