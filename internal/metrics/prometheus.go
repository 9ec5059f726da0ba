// Package metrics exports queue activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
)

var _ ports.MetricsRecorder = (*Recorder)(nil)

// Recorder implements ports.MetricsRecorder on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	enqueued      *prometheus.CounterVec
	delivered     *prometheus.CounterVec
	retried       *prometheus.CounterVec
	abandoned     *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	drainDuration prometheus.Histogram
	drainItems    prometheus.Histogram
	pending       *prometheus.GaugeVec
	deadLetters   prometheus.Gauge
}

// NewRecorder registers the offlinesync metrics on a new registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		enqueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "offlinesync_items_enqueued_total",
			Help: "Mutations added to the sync queue",
		}, []string{"priority"}),
		delivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "offlinesync_items_delivered_total",
			Help: "Mutations confirmed by the remote API",
		}, []string{"priority"}),
		retried: f.NewCounterVec(prometheus.CounterOpts{
			Name: "offlinesync_items_retried_total",
			Help: "Failed delivery attempts that will be retried",
		}, []string{"priority"}),
		abandoned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "offlinesync_items_abandoned_total",
			Help: "Mutations moved to the dead-letter table",
		}, []string{"priority", "reason"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "offlinesync_delivery_latency_seconds",
			Help:    "Latency of successful deliveries",
			Buckets: prometheus.DefBuckets,
		}, []string{"priority"}),
		drainDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "offlinesync_drain_duration_seconds",
			Help:    "Duration of queue drains",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),
		drainItems: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "offlinesync_drain_items",
			Help:    "Items processed per drain",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500},
		}),
		pending: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "offlinesync_queue_pending",
			Help: "Pending mutations by priority",
		}, []string{"priority"}),
		deadLetters: f.NewGauge(prometheus.GaugeOpts{
			Name: "offlinesync_dead_letters",
			Help: "Mutations in the dead-letter table",
		}),
	}
}

func (r *Recorder) ItemEnqueued(p domain.Priority) {
	r.enqueued.WithLabelValues(string(p)).Inc()
}

func (r *Recorder) ItemDelivered(p domain.Priority, latency time.Duration) {
	r.delivered.WithLabelValues(string(p)).Inc()
	r.latency.WithLabelValues(string(p)).Observe(latency.Seconds())
}

func (r *Recorder) ItemRetried(p domain.Priority) {
	r.retried.WithLabelValues(string(p)).Inc()
}

func (r *Recorder) ItemAbandoned(p domain.Priority, reason domain.DeadLetterReason) {
	r.abandoned.WithLabelValues(string(p), string(reason)).Inc()
}

func (r *Recorder) DrainCompleted(d time.Duration, items int) {
	r.drainDuration.Observe(d.Seconds())
	r.drainItems.Observe(float64(items))
}

func (r *Recorder) PendingObserved(stats domain.QueueStats) {
	for _, p := range domain.Priorities {
		r.pending.WithLabelValues(string(p)).Set(float64(stats.Pending[p]))
	}
	r.deadLetters.Set(float64(stats.DeadLetters))
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
