package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/MrEthical07/staffauth"
)

const (
	IdentityServiceName  = "staffauth.v1.Identity"
	WhoAmIFullMethodName = "/" + IdentityServiceName + "/WhoAmI"
)

// IdentityService is the handler contract for the Identity service.
type IdentityService interface {
	WhoAmI(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

// IdentityServer answers WhoAmI from the identity the guard attached.
type IdentityServer struct{}

// WhoAmI returns {id, username, staff} for the caller.
func (IdentityServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ident, ok := staffauth.IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no identity on request")
	}
	out, err := structpb.NewStruct(map[string]any{
		"id":       ident.ID,
		"username": ident.Username,
		"staff":    ident.Staff,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode identity")
	}
	return out, nil
}

// RegisterIdentityServer mounts srv on s.
func RegisterIdentityServer(s grpc.ServiceRegistrar, srv IdentityService) {
	s.RegisterService(&identityServiceDesc, srv)
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityService).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIFullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IdentityService).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var identityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*IdentityService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams: []grpc.StreamDesc{},
}
