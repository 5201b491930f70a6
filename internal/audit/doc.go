// Package audit implements async event dispatching for credential lifecycle
// operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, zap logger, Kafka, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, staff ID, IP and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import staffauth or any sibling internal package.
//   - Perform network I/O beyond what a configured Sink does.
package audit
