// Package metrics collects and exposes Prometheus metrics for the
// pipeline stages.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records pipeline events. Services hold the interface so
// tests can pass a no-op.
type Collector interface {
	RecordItemClassified(category string)
	RecordItemSkipped(reason string)
	RecordItemFailed()
	RecordOracleLatency(duration time.Duration)
	RecordCompilationCreated(kind string, autoApproved bool)
	RecordRender(success bool)
	RecordUpload(platform, outcome string)
}

// PrometheusCollector is the production Collector.
type PrometheusCollector struct {
	itemsClassified     *prometheus.CounterVec
	itemsSkipped        *prometheus.CounterVec
	itemsFailed         prometheus.Counter
	oracleLatency       prometheus.Histogram
	compilationsCreated *prometheus.CounterVec
	renders             *prometheus.CounterVec
	uploads             *prometheus.CounterVec
}

// NewCollector creates a collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		itemsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_items_classified_total",
			Help: "Items accepted by the classification gate, by category",
		}, []string{"category"}),
		itemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_items_skipped_total",
			Help: "Items rejected as content, by gate",
		}, []string{"reason"}),
		itemsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_items_failed_total",
			Help: "Items that hit a retryable infrastructure failure",
		}),
		oracleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_oracle_latency_seconds",
			Help:    "Scoring oracle round-trip latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		compilationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_compilations_created_total",
			Help: "Compilations created, by grouping kind and approval path",
		}, []string{"kind", "approval"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_renders_total",
			Help: "Render attempts, by outcome",
		}, []string{"outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_uploads_total",
			Help: "Upload attempts, by platform and outcome",
		}, []string{"platform", "outcome"}),
	}

	reg.MustRegister(
		c.itemsClassified,
		c.itemsSkipped,
		c.itemsFailed,
		c.oracleLatency,
		c.compilationsCreated,
		c.renders,
		c.uploads,
	)

	return c
}

// RecordItemClassified counts an item that passed the acceptance gate.
func (c *PrometheusCollector) RecordItemClassified(category string) {
	c.itemsClassified.WithLabelValues(category).Inc()
}

// RecordItemSkipped counts a content rejection. The reason is the gate
// that fired (prefilter, verdict, confidence, quality, visual).
func (c *PrometheusCollector) RecordItemSkipped(reason string) {
	c.itemsSkipped.WithLabelValues(reason).Inc()
}

// RecordItemFailed counts a retryable infrastructure failure.
func (c *PrometheusCollector) RecordItemFailed() {
	c.itemsFailed.Inc()
}

// RecordOracleLatency observes one oracle round trip.
func (c *PrometheusCollector) RecordOracleLatency(duration time.Duration) {
	c.oracleLatency.Observe(duration.Seconds())
}

// RecordCompilationCreated counts a new compilation. Kind is
// subcategory, category, or mega.
func (c *PrometheusCollector) RecordCompilationCreated(kind string, autoApproved bool) {
	approval := "manual"
	if autoApproved {
		approval = "auto"
	}
	c.compilationsCreated.WithLabelValues(kind, approval).Inc()
}

// RecordRender counts one render attempt.
func (c *PrometheusCollector) RecordRender(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.renders.WithLabelValues(outcome).Inc()
}

// RecordUpload counts one upload attempt by terminal outcome.
func (c *PrometheusCollector) RecordUpload(platform, outcome string) {
	c.uploads.WithLabelValues(platform, outcome).Inc()
}

// Noop is a Collector that records nothing, for tests and disabled
// metrics.
type Noop struct{}

func (Noop) RecordItemClassified(string)           {}
func (Noop) RecordItemSkipped(string)              {}
func (Noop) RecordItemFailed()                     {}
func (Noop) RecordOracleLatency(time.Duration)     {}
func (Noop) RecordCompilationCreated(string, bool) {}
func (Noop) RecordRender(bool)                     {}
func (Noop) RecordUpload(string, string)           {}

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
