// Package middleware exposes HTTP and gRPC adapters that gate requests on a
// staff access credential.
//
// # Guards
//
//   - [Guard]: net/http middleware reading the Authorization header.
//   - [UnaryGuard]: gRPC unary interceptor reading the authorization metadata.
//
// Each guard extracts the bearer token, calls Engine.Authenticate, and attaches
// the resolved identity with staffauth.WithIdentity.
//
// # Architecture boundaries
//
// This package translates transport semantics into Engine calls. It does NOT
// implement authentication logic itself; every decision is delegated to
// Engine.Authenticate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis or SQL (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.Authenticate.
package middleware
