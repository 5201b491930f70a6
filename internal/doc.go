// Package internal groups the private building blocks of staffauth.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher plus zap and Kafka sinks)
//   - flows: flow orchestrators for issue, authenticate and rotate
//   - metrics: lock-free counters and latency histograms
//   - config: viper-backed configuration for the server binary
//   - obs: logger construction and the metrics and health handlers
//
// Nothing here is part of the public staffauth API.
package internal
