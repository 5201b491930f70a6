// Package grpcapi exposes guarded identity calls over gRPC.
//
// The service is described by hand with well-known protobuf messages, so no
// generated code is needed. Mount it on a server whose unary chain includes
// middleware.UnaryGuard.
package grpcapi
