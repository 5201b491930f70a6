// Package refresh persists refresh-credential records and enforces one-time rotation.
//
// # Storage model
//
// A [Record] is keyed by its token value, carries its owner, and is never
// deleted: revoked records remain as the replay-detection ledger. The only
// mutation a record ever sees is revoked false -> true.
//
// Two [Store] implementations ship with the package:
//
//   - [RedisStore]: one hash per record plus a per-owner sorted-set index. All
//     multi-key mutations run as Lua scripts, so Redis serializes them.
//   - [PostgresStore]: a single refresh_tokens table managed by embedded goose
//     migrations. Rotation is a transaction guarded by a conditional UPDATE.
//
// # Architecture boundaries
//
// This package owns records and their atomic transitions. It does not decode
// tokens or decide who may rotate. Those belong to the Engine.
//
// # What this package must NOT do
//
//   - Import staffauth or jwt (no upward imports).
//   - Physically delete records.
//   - Block without a deadline: every operation runs under the configured
//     per-operation timeout and reports overruns as [ErrStorage].
package refresh
