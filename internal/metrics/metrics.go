package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg              *prometheus.Registry
	Events           *prometheus.CounterVec
	Applied          prometheus.Counter
	SkippedDuplicate prometheus.Counter
	FallbackApplied  prometheus.Counter
	Failed           prometheus.Counter
	ExistsFailures   prometheus.Counter
	WriteLatencySec  prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	events := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "replicator_events_total"}, []string{"entity", "kind"})
	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "replicator_applied_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "replicator_skipped_duplicate_total"})
	fallback := prometheus.NewCounter(prometheus.CounterOpts{Name: "replicator_fallback_applied_total"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "replicator_failed_total"})
	existsFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "replicator_exists_check_failures_total"})
	writeLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "replicator_write_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(events, applied, skipped, fallback, failed, existsFailures, writeLatency)
	return &Registry{
		reg:              r,
		Events:           events,
		Applied:          applied,
		SkippedDuplicate: skipped,
		FallbackApplied:  fallback,
		Failed:           failed,
		ExistsFailures:   existsFailures,
		WriteLatencySec:  writeLatency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
