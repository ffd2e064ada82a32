package aggregator

import "github.com/prometheus/client_golang/prometheus"

// metrics instruments the aggregator's write path with the counter/gauge
// style used throughout grafana-tempo's modules. Registration is left to
// the caller (see cmd/depviz) so multiple Aggregators in tests don't
// collide on the default registry.
type metrics struct {
	spansIngested  prometheus.Counter
	bucketsEvicted prometheus.Counter
	activeBuckets  prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		spansIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depviz",
			Subsystem: "aggregator",
			Name:      "spans_ingested_total",
			Help:      "Total number of spans committed to the aggregator.",
		}),
		bucketsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depviz",
			Subsystem: "aggregator",
			Name:      "buckets_evicted_total",
			Help:      "Total number of buckets dropped by retention eviction.",
		}),
		activeBuckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "depviz",
			Subsystem: "aggregator",
			Name:      "active_buckets",
			Help:      "Number of buckets currently resident in the aggregator.",
		}),
	}
}

// Collectors returns the aggregator's metrics for registration against a
// prometheus.Registerer.
func (a *Aggregator) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		a.metrics.spansIngested,
		a.metrics.bucketsEvicted,
		a.metrics.activeBuckets,
	}
}
