// Package otel publishes engine metrics through an OpenTelemetry meter.
//
// Counters become Int64ObservableCounter instruments. Each latency histogram
// is flattened into one cumulative gauge per bucket plus a count gauge, since
// the engine keeps bucket counts rather than raw samples.
package otel
