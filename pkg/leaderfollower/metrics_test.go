package leaderfollower

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/leaderflow/pkg/event"
	"github.com/vnykmshr/leaderflow/pkg/metrics"
	"github.com/vnykmshr/leaderflow/pkg/queue"
)

func newTestMetricsPool(t *testing.T, config Config) *MetricsPool {
	t.Helper()
	mp, err := NewWithConfigAndMetrics(config, "test", metrics.Config{
		Enabled:  true,
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return mp
}

func TestMetricsPoolRecordsOutcomes(t *testing.T) {
	config := DefaultConfig()
	config.Size = 2
	config.Handlers = map[event.Category]event.Handler{
		"ok":  event.HandlerFunc(func(ctx context.Context, ev event.Event) error { return nil }),
		"bad": event.HandlerFunc(func(ctx context.Context, ev event.Event) error { return errors.New("bad") }),
	}

	var completed atomic.Int64
	config.OnEventComplete = func(Result) { completed.Add(1) }

	mp := newTestMetricsPool(t, config)
	r := mp.registry.Load()

	assert.Equal(t, 2.0, promtest.ToFloat64(r.PoolSize.WithLabelValues("test")))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.WorkersByRole.WithLabelValues("test", "follower")))

	require.NoError(t, mp.Start())
	require.NoError(t, mp.Submit(event.New("ok", 1)))
	require.NoError(t, mp.Submit(event.New("ok", 2)))
	require.NoError(t, mp.Submit(event.New("bad", 3)))
	require.NoError(t, mp.Shutdown(true))

	assert.Equal(t, 3.0, promtest.ToFloat64(r.EventsSubmitted.WithLabelValues("test")))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.EventsProcessed.WithLabelValues("test", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.EventsFailed.WithLabelValues("test", "bad")))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.WorkersByRole.WithLabelValues("test", "terminated")))
	assert.Equal(t, 0.0, promtest.ToFloat64(r.WorkersByRole.WithLabelValues("test", "leader")))
	assert.Equal(t, 0.0, promtest.ToFloat64(r.QueueDepth.WithLabelValues("test")))
	assert.Equal(t, int64(3), completed.Load(), "user callback still runs")

	assert.Equal(t, 2, promtest.CollectAndCount(r.HandlerDuration))

	err := mp.Submit(event.New("ok", 4))
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.Equal(t, 1.0, promtest.ToFloat64(r.EventsRejected.WithLabelValues("test", "closed")))
}

func TestMetricsPoolRejectAndDiscard(t *testing.T) {
	config := DefaultConfig()
	config.Size = 1
	config.QueueCapacity = 2
	config.Overflow = queue.Reject

	mp := newTestMetricsPool(t, config)
	r := mp.registry.Load()

	require.NoError(t, mp.Submit(event.New("job", 1)))
	require.NoError(t, mp.Submit(event.New("job", 2)))
	assert.ErrorIs(t, mp.Submit(event.New("job", 3)), ErrQueueFull)
	assert.Equal(t, 2, mp.QueueSize())
	assert.Equal(t, 2.0, promtest.ToFloat64(r.QueueDepth.WithLabelValues("test")))

	require.NoError(t, mp.Shutdown(false))

	assert.Equal(t, 1.0, promtest.ToFloat64(r.EventsRejected.WithLabelValues("test", "full")))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.EventsDiscarded.WithLabelValues("test")))
	assert.Equal(t, StateStopped, mp.State())
}

func TestMetricsPoolToggle(t *testing.T) {
	config := DefaultConfig()
	config.Size = 1

	mp := newTestMetricsPool(t, config)
	r := mp.registry.Load()
	assert.True(t, mp.MetricsEnabled())

	mp.DisableMetrics()
	assert.False(t, mp.MetricsEnabled())
	require.NoError(t, mp.Submit(event.New("job", nil)))
	assert.Equal(t, 0.0, promtest.ToFloat64(r.EventsSubmitted.WithLabelValues("test")))

	require.NoError(t, mp.EnableMetrics(metrics.Config{Enabled: true}))
	assert.True(t, mp.MetricsEnabled())
	require.NoError(t, mp.Submit(event.New("job", nil)))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.EventsSubmitted.WithLabelValues("test")))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.QueueDepth.WithLabelValues("test")))

	require.NoError(t, mp.Shutdown(false))
}

func TestNewWithMetrics(t *testing.T) {
	mp, err := NewWithMetrics(3, nil, "private")
	require.NoError(t, err)
	assert.Equal(t, 3, mp.Size())

	require.NoError(t, mp.Start())
	require.NoError(t, mp.Shutdown(true))
	assert.Equal(t, StateStopped, mp.State())

	_, err = NewWithMetrics(0, nil, "invalid")
	assert.Error(t, err)
}
