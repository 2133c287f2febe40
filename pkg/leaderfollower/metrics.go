package leaderfollower

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/leaderflow/pkg/event"
	"github.com/vnykmshr/leaderflow/pkg/metrics"
)

// MetricsPool wraps a Pool with Prometheus metrics collection.
type MetricsPool struct {
	pool     Pool
	name     string
	registry atomic.Pointer[metrics.Registry]
	enabled  atomic.Bool
}

var (
	_ Pool                   = (*MetricsPool)(nil)
	_ metrics.Instrumentable = (*MetricsPool)(nil)
)

// NewWithMetrics creates a pool with metrics recorded in a private
// Prometheus registry.
func NewWithMetrics(size int, handlers map[event.Category]event.Handler, name string) (*MetricsPool, error) {
	config := DefaultConfig()
	config.Size = size
	config.Handlers = handlers

	return NewWithConfigAndMetrics(config, name, metrics.Config{
		Enabled:  true,
		Registry: prometheus.NewRegistry(),
	})
}

// NewWithConfigAndMetrics creates a pool with custom config and metrics.
// The callbacks in config are still invoked after the metrics are recorded.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (*MetricsPool, error) {
	mp := &MetricsPool{name: name}
	mp.registry.Store(registryFor(metricsConfig))
	mp.enabled.Store(metricsConfig.Enabled)

	mp.instrument(&config)

	p, err := newPool(config)
	if err != nil {
		return nil, err
	}
	mp.pool = p
	mp.syncGauges()
	return mp, nil
}

func registryFor(config metrics.Config) *metrics.Registry {
	if config.Registry == nil && config.Namespace == "" && config.Labels == nil {
		return metrics.DefaultRegistry
	}
	return metrics.NewRegistryWithConfig(config)
}

// instrument chains metric recording in front of the user callbacks.
func (mp *MetricsPool) instrument(config *Config) {
	onRoleChange := config.OnRoleChange
	config.OnRoleChange = func(workerID int, from, to Role) {
		if r := mp.active(); r != nil {
			r.WorkersByRole.WithLabelValues(mp.name, from.String()).Dec()
			r.WorkersByRole.WithLabelValues(mp.name, to.String()).Inc()
		}
		if onRoleChange != nil {
			onRoleChange(workerID, from, to)
		}
	}

	onPromote := config.OnPromote
	config.OnPromote = func(from, to int) {
		if r := mp.active(); r != nil {
			r.Promotions.WithLabelValues(mp.name).Inc()
		}
		if onPromote != nil {
			onPromote(from, to)
		}
	}

	onComplete := config.OnEventComplete
	config.OnEventComplete = func(res Result) {
		if r := mp.active(); r != nil {
			category := string(res.Event.Category())
			r.HandlerDuration.WithLabelValues(mp.name, category).Observe(res.Duration.Seconds())
			r.QueueWaitDuration.WithLabelValues(mp.name).Observe(res.QueueWait.Seconds())
			if res.Err != nil {
				r.EventsFailed.WithLabelValues(mp.name, category).Inc()
			} else {
				r.EventsProcessed.WithLabelValues(mp.name, category).Inc()
			}
			r.QueueDepth.WithLabelValues(mp.name).Set(float64(mp.pool.QueueSize()))
		}
		if onComplete != nil {
			onComplete(res)
		}
	}

	onDiscard := config.OnDiscard
	config.OnDiscard = func(discarded []event.Event) {
		if r := mp.active(); r != nil {
			r.EventsDiscarded.WithLabelValues(mp.name).Add(float64(len(discarded)))
			r.QueueDepth.WithLabelValues(mp.name).Set(0)
		}
		if onDiscard != nil {
			onDiscard(discarded)
		}
	}

	onBlock := config.OnQueueBlock
	config.OnQueueBlock = func() {
		if r := mp.active(); r != nil {
			r.QueueBlocked.WithLabelValues(mp.name).Inc()
		}
		if onBlock != nil {
			onBlock()
		}
	}
}

// active returns the registry when metrics are enabled, nil otherwise.
func (mp *MetricsPool) active() *metrics.Registry {
	if !mp.enabled.Load() {
		return nil
	}
	return mp.registry.Load()
}

// syncGauges sets the gauges from a fresh snapshot of the pool.
func (mp *MetricsPool) syncGauges() {
	r := mp.active()
	if r == nil {
		return
	}

	stats := mp.pool.Stats()
	r.PoolSize.WithLabelValues(mp.name).Set(float64(stats.Size))
	r.QueueDepth.WithLabelValues(mp.name).Set(float64(stats.Queued))
	r.WorkersByRole.WithLabelValues(mp.name, RoleLeader.String()).Set(float64(stats.Leaders))
	r.WorkersByRole.WithLabelValues(mp.name, RoleFollower.String()).Set(float64(stats.Followers))
	r.WorkersByRole.WithLabelValues(mp.name, RoleProcessing.String()).Set(float64(stats.Processing))
	r.WorkersByRole.WithLabelValues(mp.name, RoleTerminated.String()).Set(float64(stats.Terminated))
}

// Start spawns the workers.
func (mp *MetricsPool) Start() error {
	return mp.pool.Start()
}

// Submit queues ev for processing.
func (mp *MetricsPool) Submit(ev event.Event) error {
	return mp.SubmitContext(context.Background(), ev)
}

// SubmitContext queues ev and records whether it was accepted.
func (mp *MetricsPool) SubmitContext(ctx context.Context, ev event.Event) error {
	err := mp.pool.SubmitContext(ctx, ev)

	r := mp.active()
	if r == nil {
		return err
	}

	switch {
	case err == nil:
		r.EventsSubmitted.WithLabelValues(mp.name).Inc()
	case errors.Is(err, ErrPoolClosed):
		r.EventsRejected.WithLabelValues(mp.name, "closed").Inc()
	case errors.Is(err, ErrQueueFull):
		r.EventsRejected.WithLabelValues(mp.name, "full").Inc()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.EventsRejected.WithLabelValues(mp.name, "canceled").Inc()
	default:
		r.EventsRejected.WithLabelValues(mp.name, "invalid").Inc()
	}
	r.QueueDepth.WithLabelValues(mp.name).Set(float64(mp.pool.QueueSize()))
	return err
}

// RegisterHandler binds h to category before Start.
func (mp *MetricsPool) RegisterHandler(category event.Category, h event.Handler) error {
	return mp.pool.RegisterHandler(category, h)
}

// Shutdown stops the pool and waits for every worker to terminate.
func (mp *MetricsPool) Shutdown(drain bool) error {
	return mp.ShutdownContext(context.Background(), drain)
}

// ShutdownContext stops the pool, bounded by ctx.
func (mp *MetricsPool) ShutdownContext(ctx context.Context, drain bool) error {
	err := mp.pool.ShutdownContext(ctx, drain)
	mp.syncGauges()
	return err
}

// Size returns the number of workers.
func (mp *MetricsPool) Size() int {
	return mp.pool.Size()
}

// QueueSize returns the number of queued events.
func (mp *MetricsPool) QueueSize() int {
	n := mp.pool.QueueSize()
	if r := mp.active(); r != nil {
		r.QueueDepth.WithLabelValues(mp.name).Set(float64(n))
	}
	return n
}

// State returns the lifecycle state.
func (mp *MetricsPool) State() State {
	return mp.pool.State()
}

// Leader returns the current leader's worker id.
func (mp *MetricsPool) Leader() (int, bool) {
	return mp.pool.Leader()
}

// Stats returns a snapshot of the pool.
func (mp *MetricsPool) Stats() Stats {
	return mp.pool.Stats()
}

// EnableMetrics enables metrics collection. A non-nil config.Registry
// switches to a fresh set of collectors registered there.
func (mp *MetricsPool) EnableMetrics(config metrics.Config) error {
	if config.Registry != nil {
		mp.registry.Store(metrics.NewRegistryWithConfig(config))
	}
	mp.enabled.Store(config.Enabled)
	mp.syncGauges()
	return nil
}

// DisableMetrics disables metrics collection.
func (mp *MetricsPool) DisableMetrics() {
	mp.enabled.Store(false)
}

// MetricsEnabled returns true if metrics collection is enabled.
func (mp *MetricsPool) MetricsEnabled() bool {
	return mp.enabled.Load()
}
