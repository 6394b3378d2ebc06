package service

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "repogate.v1.Repository"

// Full method names.
const (
	ListDescriptorsMethod = "/" + ServiceName + "/ListDescriptors"
	GetDescriptorMethod   = "/" + ServiceName + "/GetDescriptor"
	WhoAmIMethod          = "/" + ServiceName + "/WhoAmI"
)

// RepositoryServer is the server API of the repogate.v1.Repository service.
type RepositoryServer interface {
	// ListDescriptors returns every repository descriptor.
	ListDescriptors(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetDescriptor returns the string form of one descriptor.
	GetDescriptor(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	// WhoAmI authenticates the caller against a workspace and describes the resulting session.
	WhoAmI(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// ServiceDesc is the grpc.ServiceDesc for the repogate.v1.Repository service.
// Messages are protobuf well-known types, so no generated code is involved.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RepositoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListDescriptors", Handler: listDescriptorsHandler},
		{MethodName: "GetDescriptor", Handler: getDescriptorHandler},
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "repogate/v1/repository.proto",
}

// RegisterRepositoryServer registers srv on s.
func RegisterRepositoryServer(s grpc.ServiceRegistrar, srv RepositoryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func listDescriptorsHandler(
	srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RepositoryServer).ListDescriptors(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListDescriptorsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RepositoryServer).ListDescriptors(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getDescriptorHandler(
	srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RepositoryServer).GetDescriptor(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetDescriptorMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RepositoryServer).GetDescriptor(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func whoAmIHandler(
	srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RepositoryServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RepositoryServer).WhoAmI(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// RepositoryClient is a client for the repogate.v1.Repository service.
type RepositoryClient struct {
	cc grpc.ClientConnInterface
}

// NewRepositoryClient returns a client issuing calls over cc.
func NewRepositoryClient(cc grpc.ClientConnInterface) *RepositoryClient {
	return &RepositoryClient{cc: cc}
}

// ListDescriptors calls repogate.v1.Repository/ListDescriptors.
func (c *RepositoryClient) ListDescriptors(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListDescriptorsMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDescriptor calls repogate.v1.Repository/GetDescriptor.
func (c *RepositoryClient) GetDescriptor(ctx context.Context, key string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, GetDescriptorMethod, wrapperspb.String(key), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// WhoAmI calls repogate.v1.Repository/WhoAmI. Credentials travel in outgoing metadata.
func (c *RepositoryClient) WhoAmI(ctx context.Context, workspace string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, WhoAmIMethod, wrapperspb.String(workspace), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
