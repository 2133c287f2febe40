package leaderfollower

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vnykmshr/leaderflow/pkg/common/validation"
	"github.com/vnykmshr/leaderflow/pkg/event"
	"github.com/vnykmshr/leaderflow/pkg/queue"
)

// Config holds configuration options for creating a pool.
type Config struct {
	// Size is the number of workers in the pool.
	// Must be greater than 0.
	Size int

	// QueueCapacity bounds the event queue. 0 means unbounded.
	QueueCapacity int

	// Overflow selects what Submit does when a bounded queue is full.
	Overflow queue.OverflowPolicy

	// PollInterval is how long the leader waits on the queue before
	// rechecking. Zero means it waits until an event or shutdown arrives.
	PollInterval time.Duration

	// HandlerTimeout bounds the context passed to each handler.
	// Zero means no timeout. Handlers are never interrupted; they are
	// expected to honor ctx.Done().
	HandlerTimeout time.Duration

	// Handlers maps categories to handlers. More can be added with
	// RegisterHandler before Start.
	Handlers map[event.Category]event.Handler

	// Fallback handles events whose category has no handler.
	// If nil, such events fail with event.ErrNoHandler.
	Fallback event.Handler

	// Logger receives structured pool logs. If nil, logs are discarded.
	Logger *slog.Logger

	// Tracing starts an OpenTelemetry span around every dispatched event
	// using the global tracer provider.
	Tracing bool

	// OnRoleChange is called on every worker role transition. It runs
	// under the pool lock and must not call back into the pool.
	OnRoleChange func(workerID int, from, to Role)

	// OnPromote is called when a leader hands leadership to a waiting
	// follower. It runs under the pool lock.
	OnPromote func(fromWorker, toWorker int)

	// OnHandlerError is called when a handler returns an error or panics.
	// The worker carries on as a follower afterwards.
	OnHandlerError func(err *HandlerError)

	// OnEventComplete is called after every dispatched event.
	OnEventComplete func(result Result)

	// OnDiscard receives the events dropped by a non-draining shutdown.
	OnDiscard func(discarded []event.Event)

	// OnQueueBlock is called when a producer waits for queue space.
	// It runs under the queue lock.
	OnQueueBlock func()

	// OnWorkerStart is called when a worker starts.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker terminates.
	OnWorkerStop func(workerID int)
}

// DefaultConfig returns a configuration with one worker per CPU and an
// unbounded queue.
func DefaultConfig() Config {
	return Config{
		Size:          runtime.NumCPU(),
		QueueCapacity: 0,
		Overflow:      queue.Block,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("leaderfollower", "size", c.Size); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("leaderfollower", "queue_capacity", c.QueueCapacity); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("leaderfollower", "poll_interval", c.PollInterval); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("leaderfollower", "handler_timeout", c.HandlerTimeout); err != nil {
		return err
	}
	if _, err := queue.ParsePolicy(c.Overflow.String()); err != nil {
		return err
	}
	return nil
}

// fileConfig is the YAML form of the scalar Config fields.
type fileConfig struct {
	Size           *int   `yaml:"size"`
	QueueCapacity  *int   `yaml:"queue_capacity"`
	Overflow       string `yaml:"overflow"`
	PollInterval   string `yaml:"poll_interval"`
	HandlerTimeout string `yaml:"handler_timeout"`
	Tracing        *bool  `yaml:"tracing"`
}

// LoadConfig reads a YAML document and applies it on top of DefaultConfig.
// Handlers, callbacks and the logger are not part of the file format.
//
//	size: 8
//	queue_capacity: 256
//	overflow: reject
//	poll_interval: 250ms
//	handler_timeout: 5s
//	tracing: true
func LoadConfig(r io.Reader) (Config, error) {
	return LoadConfigOver(r, DefaultConfig())
}

// LoadConfigOver reads a YAML pool configuration from r, applying only the
// keys present in the document on top of base.
func LoadConfigOver(r io.Reader, base Config) (Config, error) {
	config := base

	var fc fileConfig
	if err := yaml.NewDecoder(r).Decode(&fc); err != nil && err != io.EOF {
		return config, fmt.Errorf("failed to decode pool config: %w", err)
	}

	if fc.Size != nil {
		config.Size = *fc.Size
	}
	if fc.QueueCapacity != nil {
		config.QueueCapacity = *fc.QueueCapacity
	}
	if fc.Overflow != "" {
		policy, err := queue.ParsePolicy(fc.Overflow)
		if err != nil {
			return config, err
		}
		config.Overflow = policy
	}
	if fc.PollInterval != "" {
		d, err := time.ParseDuration(fc.PollInterval)
		if err != nil {
			return config, fmt.Errorf("invalid poll_interval %q: %w", fc.PollInterval, err)
		}
		config.PollInterval = d
	}
	if fc.HandlerTimeout != "" {
		d, err := time.ParseDuration(fc.HandlerTimeout)
		if err != nil {
			return config, fmt.Errorf("invalid handler_timeout %q: %w", fc.HandlerTimeout, err)
		}
		config.HandlerTimeout = d
	}
	if fc.Tracing != nil {
		config.Tracing = *fc.Tracing
	}

	return config, config.Validate()
}
