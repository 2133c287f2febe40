package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lferrors "github.com/vnykmshr/leaderflow/pkg/common/errors"
	"github.com/vnykmshr/leaderflow/pkg/event"
	"github.com/vnykmshr/leaderflow/pkg/metrics"
)

// every is a sub-second schedule for tests.
type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

func tickFactory(t time.Time) event.Event {
	return event.New("tick", t.UnixNano())
}

func runAsync(ctx context.Context, src Source, sub Submitter) <-chan error {
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, sub) }()
	return done
}

func TestParseSchedule(t *testing.T) {
	for _, expr := range []string{"*/5 * * * * *", "0 30 9 * * 1-5", "@hourly", "@every 30s"} {
		_, err := ParseSchedule(expr)
		assert.NoError(t, err, expr)
	}

	_, err := ParseSchedule("* * *")
	require.Error(t, err)
	assert.True(t, lferrors.IsValidationError(err))
}

func TestNewCronValidation(t *testing.T) {
	_, err := NewCron(CronConfig{Spec: "@hourly", Factory: tickFactory})
	assert.Error(t, err, "missing name")

	_, err = NewCron(CronConfig{Name: "c", Spec: "@hourly"})
	assert.Error(t, err, "missing factory")

	_, err = NewCron(CronConfig{Name: "c", Spec: "not a schedule", Factory: tickFactory})
	assert.ErrorIs(t, err, lferrors.ErrInvalidConfiguration)
}

func TestCronNext(t *testing.T) {
	c, err := NewCron(CronConfig{
		Name:     "noon",
		Spec:     "0 0 12 * * *",
		Factory:  tickFactory,
		Location: time.UTC,
	})
	require.NoError(t, err)

	from := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), c.Next(from))
	assert.Equal(t, "noon", c.Name())
}

func TestCronSubmitsOnTicks(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	c, err := NewCron(CronConfig{
		Name:     "ticker",
		Schedule: every(5 * time.Millisecond),
		Factory:  tickFactory,
		Metrics:  reg,
	})
	require.NoError(t, err)

	sub := &fakeSubmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, c, sub)

	require.Eventually(t, func() bool { return sub.Len() >= 3 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("cron source did not stop")
	}

	for _, ev := range sub.Events() {
		assert.Equal(t, event.Category("tick"), ev.Category())
	}
	assert.Equal(t, float64(sub.Len()), promtest.ToFloat64(reg.SourceEmitted.WithLabelValues("cron", "ticker")))
}

func TestCronStopsWhenSubmitterClosed(t *testing.T) {
	c, err := NewCron(CronConfig{
		Name:     "bounded",
		Schedule: every(2 * time.Millisecond),
		Factory:  tickFactory,
	})
	require.NoError(t, err)

	sub := &fakeSubmitter{limit: 2}
	done := runAsync(context.Background(), c, sub)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("cron source kept running after submitter closed")
	}
	assert.Equal(t, 2, sub.Len())
}

func TestCronCountsSubmitErrors(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	c, err := NewCron(CronConfig{
		Name:     "failing",
		Schedule: every(2 * time.Millisecond),
		Factory:  tickFactory,
		Metrics:  reg,
	})
	require.NoError(t, err)

	sub := &fakeSubmitter{err: errors.New("queue full")}
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, c, sub)

	errorsTotal := reg.SourceErrors.WithLabelValues("cron", "failing")
	require.Eventually(t, func() bool { return promtest.ToFloat64(errorsTotal) >= 2 }, 5*time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	assert.Zero(t, sub.Len())
}
