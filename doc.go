// Package staffauth issues and verifies the credentials restaurant staff use
// to reach protected ordering endpoints.
//
// A login yields a short-lived HS256 access token and a longer-lived refresh
// token. Every refresh token is recorded in a [refresh.Store]; exchanging one
// revokes all of its owner's records and records the replacement in a single
// atomic step, so a replayed refresh token is always rejected.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// staffauth is the public surface. It exposes [Engine], [Builder], [Config]
// and value types (Identity, CredentialPair, MetricsSnapshot). Flow
// orchestration, audit dispatch and metric storage live under internal/ and
// are never exported.
//
// # What this package must NOT do
//
//   - Read the signing secret from the environment or any global.
//   - Expose Redis clients, SQL handles or token encoding details in its API.
//   - Import any sub-package that re-imports staffauth (no import cycles).
//
// # Error mapping
//
// Every rejection is one of the exported sentinels and [ErrorCode] gives its
// stable string form. The HTTP and gRPC adapters map each to a distinct status.
package staffauth
