// Package prometheus exposes engine metrics as a prometheus.Collector.
//
// Counters are named staffauth_*_total. Authenticate and rotate latency are
// histograms in seconds with eight buckets. Nothing is registered globally;
// callers pass their own Registerer to [Register].
package prometheus
