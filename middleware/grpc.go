package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"github.com/MrEthical07/staffauth"
)

// UnaryGuard is the gRPC counterpart of Guard. Methods listed in public
// (full method names) skip the check.
func UnaryGuard(auth Authenticator, public map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (interface{}, error) {
		if public[info.FullMethod] {
			return next(ctx, req)
		}

		token, ok := bearerToken(authorizationMetadata(ctx))
		if !ok {
			return nil, grpcStatus(staffauth.ErrMissingCredential)
		}

		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			ctx = staffauth.WithClientIP(ctx, p.Addr.String())
		}
		ident, err := auth.Authenticate(ctx, token)
		if err != nil {
			return nil, grpcStatus(err)
		}
		return next(staffauth.WithIdentity(ctx, ident), req)
	}
}

func authorizationMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
