// Package metrics provides Prometheus metrics collection for utapi.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for utapi.
type Collector struct {
	// Write path metrics
	PushTotal      *prometheus.CounterVec
	PushDuration   *prometheus.HistogramVec
	PushRejections *prometheus.CounterVec

	// Datastore metrics
	BatchDuration *prometheus.HistogramVec
	BatchErrors   *prometheus.CounterVec
	BatchSize     prometheus.Histogram

	// Read path metrics
	ListDuration     *prometheus.HistogramVec
	ListResources    *prometheus.HistogramVec
	ListDegradations *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a new metrics collector with all metrics registered against
// the default registry.
func New() *Collector {
	return newCollector(promauto.With(prometheus.DefaultRegisterer))
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return newCollector(promauto.With(reg))
}

func newCollector(factory promauto.Factory) *Collector {
	return &Collector{
		PushTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "utapi",
				Name:      "push_total",
				Help:      "Total number of PushMetric calls, by event kind and result",
			},
			[]string{"event", "result"},
		),
		PushDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "utapi",
				Name:      "push_duration_seconds",
				Help:      "PushMetric duration in seconds",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"event"},
		),
		PushRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "utapi",
				Name:      "push_rejections_total",
				Help:      "Total number of PushMetric calls rejected by precondition validation",
			},
			[]string{"event", "reason"},
		),

		BatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "utapi",
				Name:      "datastore_batch_duration_seconds",
				Help:      "Datastore batch execution duration in seconds",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"caller"},
		),
		BatchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "utapi",
				Name:      "datastore_batch_errors_total",
				Help:      "Total number of datastore batch failures, by caller",
			},
			[]string{"caller"},
		),
		BatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "utapi",
				Name:      "datastore_batch_size",
				Help:      "Number of commands in a single datastore batch",
				Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
			},
		),

		ListDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "utapi",
				Name:      "list_metrics_duration_seconds",
				Help:      "ListMetrics duration in seconds, by resource family",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"family"},
		),
		ListResources: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "utapi",
				Name:      "list_metrics_resources",
				Help:      "Number of resources requested in a single ListMetrics call",
				Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"family"},
		),
		ListDegradations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "utapi",
				Name:      "list_metrics_degradations_total",
				Help:      "Total number of per-resource read failures returned as zeroed metrics",
			},
			[]string{"family"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "utapi",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "utapi",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "utapi",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "utapi",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
	}
}
