// Package metric exposes dispatcher and cluster-topology metrics in
// Prometheus format via github.com/prometheus/client_golang.
//
// Registry owns the push-style counters/histograms the dispatcher and
// topology packages record against directly (requests completed by
// status, retry counts, fan-out latency, Raft leadership); Collector
// wraps a pull-style live sample, such as the ticket registry's current
// size, for values that are cheaper to read on scrape than to track with
// a separate Inc/Dec pair on every change.
//
// Metrics are exposed at /metrics via Registry.Handler.
package metric
