package query

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc
// The artifact service exchanges structpb.Struct messages so that tooling in
// any language can call it with a generic protobuf client.
//
//	service ArtifactService {
//	  rpc Lookup(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc Summary(google.protobuf.Struct) returns (google.protobuf.Struct);
//	}
const (
	ServiceName   = "trajectory.v1.ArtifactService"
	LookupMethod  = "/" + ServiceName + "/Lookup"
	SummaryMethod = "/" + ServiceName + "/Summary"
)

// ArtifactServiceServer is the server API of the artifact service.
type ArtifactServiceServer interface {
	Lookup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Summary(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ArtifactServiceClient is the client API of the artifact service.
type ArtifactServiceClient interface {
	Lookup(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Summary(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// ServiceDesc describes the artifact service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ArtifactServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Lookup", Handler: lookupHandler},
		{MethodName: "Summary", Handler: summaryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trajectory/v1/artifact.proto",
}

// RegisterArtifactServiceServer registers srv on s.
func RegisterArtifactServiceServer(s grpc.ServiceRegistrar, srv ArtifactServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func lookupHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ArtifactServiceServer).Lookup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LookupMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ArtifactServiceServer).Lookup(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func summaryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ArtifactServiceServer).Summary(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SummaryMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ArtifactServiceServer).Summary(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion service-desc

// #region client-stub
type artifactServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewArtifactServiceClient returns a client stub bound to cc.
func NewArtifactServiceClient(cc grpc.ClientConnInterface) ArtifactServiceClient {
	return &artifactServiceClient{cc: cc}
}

func (c *artifactServiceClient) Lookup(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LookupMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *artifactServiceClient) Summary(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SummaryMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion client-stub
