// Package metrics provides Prometheus instrumentation for leaderflow components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for leaderflow components.
type Registry struct {
	// Pool Metrics
	PoolSize          *prometheus.GaugeVec
	WorkersByRole     *prometheus.GaugeVec
	QueueDepth        *prometheus.GaugeVec
	EventsSubmitted   *prometheus.CounterVec
	EventsRejected    *prometheus.CounterVec
	EventsProcessed   *prometheus.CounterVec
	EventsFailed      *prometheus.CounterVec
	EventsDiscarded   *prometheus.CounterVec
	Promotions        *prometheus.CounterVec
	QueueBlocked      *prometheus.CounterVec
	HandlerDuration   *prometheus.HistogramVec
	QueueWaitDuration *prometheus.HistogramVec

	// Source Metrics
	SourceEmitted *prometheus.CounterVec
	SourceErrors  *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by leaderflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{
		Registry:  reg,
		Namespace: DefaultNamespace,
	})
}

// NewRegistryWithConfig creates a metrics registry honoring the namespace and
// constant labels of config.
func NewRegistryWithConfig(config Config) *Registry {
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := config.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	labels := config.Labels
	factory := promauto.With(reg)

	return &Registry{
		PoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "size",
				Help:        "Number of workers in the pool",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		WorkersByRole: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "workers",
				Help:        "Number of workers in each role (leader, follower, processing, terminated)",
				ConstLabels: labels,
			},
			[]string{"pool_name", "role"},
		),

		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "queued_events",
				Help:        "Number of events waiting in the queue",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		EventsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "events_submitted_total",
				Help:        "Total number of events accepted by Submit",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		EventsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "events_rejected_total",
				Help:        "Total number of events refused by Submit",
				ConstLabels: labels,
			},
			[]string{"pool_name", "reason"},
		),

		EventsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "events_processed_total",
				Help:        "Total number of events handled successfully",
				ConstLabels: labels,
			},
			[]string{"pool_name", "category"},
		),

		EventsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "events_failed_total",
				Help:        "Total number of events whose handler failed or panicked",
				ConstLabels: labels,
			},
			[]string{"pool_name", "category"},
		),

		EventsDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "events_discarded_total",
				Help:        "Total number of queued events dropped by a non-draining shutdown",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		Promotions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "promotions_total",
				Help:        "Total number of leadership hand-offs to a waiting follower",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		QueueBlocked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "backpressure_events_total",
				Help:        "Total number of times a producer waited for queue space",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		HandlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "handler_duration_seconds",
				Help:        "Time spent inside event handlers",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"pool_name", "category"},
		),

		QueueWaitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "queue_wait_duration_seconds",
				Help:        "Time between event submission and dispatch",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		SourceEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "source",
				Name:        "events_emitted_total",
				Help:        "Total number of events a source submitted to a pool",
				ConstLabels: labels,
			},
			[]string{"source_type", "source_name"},
		),

		SourceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "source",
				Name:        "errors_total",
				Help:        "Total number of source read, decode or submit errors",
				ConstLabels: labels,
			},
			[]string{"source_type", "source_name"},
		),
	}
}
