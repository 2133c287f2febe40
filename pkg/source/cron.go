package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	lferrors "github.com/vnykmshr/leaderflow/pkg/common/errors"
	"github.com/vnykmshr/leaderflow/pkg/common/validation"
	"github.com/vnykmshr/leaderflow/pkg/event"
	"github.com/vnykmshr/leaderflow/pkg/metrics"
)

// Factory builds the event to submit for a tick at t.
type Factory func(t time.Time) event.Event

var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a cron expression with a seconds field, or a
// descriptor such as "@daily" or "@every 5m".
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, lferrors.NewValidationError("source", "schedule", expr, err.Error()).
			WithHint(`use "sec min hour dom month dow" or a descriptor like "@hourly"`)
	}
	return schedule, nil
}

// CronConfig configures a Cron source.
type CronConfig struct {
	// Name identifies the source in logs and metrics.
	Name string

	// Spec is the cron expression. Ignored when Schedule is set.
	Spec string

	// Schedule overrides Spec with a ready-made schedule.
	Schedule cron.Schedule

	// Factory builds the event for each tick.
	Factory Factory

	// Location evaluates Spec in this time zone. Defaults to time.Local.
	Location *time.Location

	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// Cron submits one event per schedule tick.
type Cron struct {
	schedule cron.Schedule
	factory  Factory
	location *time.Location
	instruments
}

// NewCron creates a cron source.
func NewCron(config CronConfig) (*Cron, error) {
	if err := validation.ValidateNotEmpty("source", "name", config.Name); err != nil {
		return nil, err
	}
	if config.Factory == nil {
		return nil, validation.ValidateNotNil("source", "factory", nil)
	}

	schedule := config.Schedule
	if schedule == nil {
		var err error
		if schedule, err = ParseSchedule(config.Spec); err != nil {
			return nil, err
		}
	}

	location := config.Location
	if location == nil {
		location = time.Local
	}

	return &Cron{
		schedule:    schedule,
		factory:     config.Factory,
		location:    location,
		instruments: newInstruments("cron", config.Name, config.Logger, config.Metrics),
	}, nil
}

// Name returns the source name.
func (c *Cron) Name() string {
	return c.name
}

// Next returns the first tick after t.
func (c *Cron) Next(t time.Time) time.Time {
	return c.schedule.Next(t.In(c.location))
}

// Run submits an event on every tick until ctx is done or sub is closed.
// A tick that fires while the previous submission is still blocked is
// skipped.
func (c *Cron) Run(ctx context.Context, sub Submitter) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := cron.New(
		cron.WithLocation(c.location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	var once sync.Once
	runner.Schedule(c.schedule, cron.FuncJob(func() {
		ev := c.factory(time.Now().In(c.location))
		err := sub.SubmitContext(ctx, ev)
		switch {
		case err == nil:
			c.emitted()
		case lferrors.IsClosed(err):
			once.Do(func() {
				c.logger.Info("submitter closed, stopping")
				cancel()
			})
		case errors.Is(err, context.Canceled):
		default:
			c.failed("cron submit failed", err, slog.String("event_id", ev.ID()))
		}
	}))

	runner.Start()
	c.logger.Debug("cron source started", slog.Time("next", c.Next(time.Now())))

	<-ctx.Done()
	<-runner.Stop().Done()
	return nil
}

func (c *Cron) String() string {
	return fmt.Sprintf("cron(%s)", c.name)
}
