// Package metric exposes SaveKeep's Prometheus metrics.
//
//   - prometheus.go: registry, save/load/rebuild instruments, /metrics handler
//   - collector.go: scrape-time registry statistics
//
// Registry implements the metrics hooks of the registry and scheduler
// packages, so wiring is a matter of passing it as an option.
package metric
