// Package metric exposes dispatcher metrics in Prometheus format.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the coordinator daemon exposes.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	RequestDuration *prometheus.HistogramVec
	FanoutDuration  prometheus.Histogram

	ClusterNodes prometheus.Gauge
	RaftIsLeader prometheus.Gauge
}

// NewRegistry creates a registry and registers every metric against a
// fresh prometheus.Registry rather than the global default, so tests can
// construct one without colliding with other registries in the process.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clustercomm",
			Name:      "requests_total",
			Help:      "Total dispatcher requests completed, by terminal status.",
		}, []string{"status"}),
		RetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "clustercomm",
			Name:      "retries_total",
			Help:      "Total sub-request retries issued by performRequests.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clustercomm",
			Name:      "request_duration_seconds",
			Help:      "Time from submission to terminal status for a single dispatcher request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		FanoutDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clustercomm",
			Name:      "fanout_duration_seconds",
			Help:      "Wall-clock duration of a performRequests fan-out call.",
			Buckets:   prometheus.DefBuckets,
		}),

		ClusterNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "clustercomm",
			Name:      "cluster_nodes",
			Help:      "Number of coordinator replicas currently in the Raft configuration.",
		}),
		RaftIsLeader: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "clustercomm",
			Name:      "raft_is_leader",
			Help:      "1 if this node currently holds Raft leadership, else 0.",
		}),
	}
}

// Handler returns the HTTP handler serving this registry at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// MustRegister registers an additional collector, such as a Collector
// wrapping a live gauge sample, against this registry.
func (r *Registry) MustRegister(c prometheus.Collector) {
	r.reg.MustRegister(c)
}
