// Package metric provides Prometheus metrics for respkv.
//
//   - prometheus.go: Registry of server metrics and the /metrics handler
//   - collector.go: Collector reading store statistics at scrape time
//
// A nil *Registry is valid and records nothing, so components can run
// with metrics disabled.
package metric
