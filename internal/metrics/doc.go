// Package metrics records process-wide rating request counters and latency,
// renders operator recommendations from a snapshot and mirrors the counters
// into Prometheus collectors.
//
// Recommendations are advisory text only. Nothing in the request path reads
// them.
package metrics
