// Package jwt encodes and decodes staff credentials as compact HS256 tokens.
//
// A [Signer] is a pure function of its injected secret and clock: it stores
// nothing and performs no I/O. Decode failures collapse into two sentinels,
// [ErrExpired] and [ErrMalformed], so callers can tell "renew with your refresh
// credential" apart from "this token is not ours".
//
// # What this package must NOT do
//
//   - Read signing keys from environment or package globals.
//   - Decide whether a token is an access or refresh credential. It only
//     exposes the type claim through [TokenType] and [IsRefresh].
package jwt
