package metric

import "github.com/prometheus/client_golang/prometheus"

// Collector samples a live gauge value on every scrape rather than being
// updated push-style, matching prometheus.Collector's pull model. It can
// wrap a function such as ticket.Registry.Len without the registry
// importing this package; clustercommd does not register one.
type Collector struct {
	desc   *prometheus.Desc
	sample func() float64
}

// NewCollector wraps sample as a gauge named name.
func NewCollector(name, help string, sample func() float64) *Collector {
	return &Collector{
		desc:   prometheus.NewDesc(name, help, nil, nil),
		sample: sample,
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, c.sample())
}
