package leaderfollower

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lferrors "github.com/vnykmshr/leaderflow/pkg/common/errors"
	"github.com/vnykmshr/leaderflow/pkg/event"
	"github.com/vnykmshr/leaderflow/pkg/queue"
	"go.opentelemetry.io/otel/trace"
)

// Role is the position of a worker in the leader/followers protocol.
type Role int

const (
	// RoleFollower is an idle worker waiting to be promoted.
	RoleFollower Role = iota

	// RoleLeader is the single worker waiting on the queue for the next event.
	RoleLeader

	// RoleProcessing is a worker running a handler outside the leader lock.
	RoleProcessing

	// RoleTerminated is a worker that has exited.
	RoleTerminated
)

func (r Role) String() string {
	switch r {
	case RoleFollower:
		return "follower"
	case RoleLeader:
		return "leader"
	case RoleProcessing:
		return "processing"
	case RoleTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// State is the lifecycle state of a pool.
type State int

const (
	// StateCreated accepts handler registrations and queues submitted events.
	StateCreated State = iota

	// StateRunning has workers processing events.
	StateRunning

	// StateDraining rejects submissions while workers finish up.
	StateDraining

	// StateStopped has no live workers.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrPoolClosed is returned by Submit once shutdown has begun, and by
	// Start after shutdown.
	ErrPoolClosed = fmt.Errorf("leader/followers pool is closed: %w", lferrors.ErrClosed)

	// ErrQueueFull is returned by Submit when a bounded queue with the
	// reject policy is full.
	ErrQueueFull = queue.ErrQueueFull

	// ErrAlreadyStarted is returned by a second Start and by
	// RegisterHandler after Start.
	ErrAlreadyStarted = fmt.Errorf("leader/followers pool already started: %w", lferrors.ErrMisuse)

	// ErrShutdownTimeout is returned by ShutdownContext when the context
	// ends before every worker has terminated.
	ErrShutdownTimeout = fmt.Errorf("shutdown did not complete in time: %w", lferrors.ErrTimeout)

	// ErrHandlerPanic marks a handler failure caused by a recovered panic.
	ErrHandlerPanic = errors.New("event handler panicked")
)

// Pool is a fixed set of workers sharing one event queue under the
// leader/followers protocol.
type Pool interface {
	// Start spawns the workers. Calling it twice returns ErrAlreadyStarted.
	Start() error

	// Submit queues ev for processing. It returns ErrPoolClosed once
	// shutdown has begun and ErrQueueFull when a rejecting queue is full.
	// With a blocking bounded queue it waits for space.
	Submit(ev event.Event) error

	// SubmitContext is Submit with a context bounding the wait for queue space.
	SubmitContext(ctx context.Context, ev event.Event) error

	// RegisterHandler binds a handler to a category. It must be called
	// before Start.
	RegisterHandler(category event.Category, h event.Handler) error

	// Shutdown stops the pool and blocks until every worker has terminated.
	// With drain, queued events are processed first; without, they are
	// discarded and only in-flight handlers finish.
	Shutdown(drain bool) error

	// ShutdownContext is Shutdown bounded by ctx. When ctx ends first it
	// returns ErrShutdownTimeout and the workers keep shutting down.
	ShutdownContext(ctx context.Context, drain bool) error

	// Size returns the number of workers.
	Size() int

	// QueueSize returns the number of events waiting to be dequeued.
	QueueSize() int

	// State returns the lifecycle state.
	State() State

	// Leader returns the id of the current leader, if any.
	Leader() (int, bool)

	// Stats returns a snapshot of the pool counters and worker roles.
	Stats() Stats
}

// Result describes one dispatched event.
type Result struct {
	// WorkerID identifies which worker processed the event
	WorkerID int

	// Sequence is the 1-based position of the event in dequeue order
	Sequence int64

	// Event is the dispatched event
	Event event.Event

	// Err is the handler error, nil on success
	Err error

	// Duration is how long the handler ran
	Duration time.Duration

	// QueueWait is the time from event creation to dispatch
	QueueWait time.Duration
}

// HandlerError reports a failed or panicking handler. It is delivered to
// Config.OnHandlerError and never returned to the submitter.
type HandlerError struct {
	WorkerID int
	Event    event.Event
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("worker %d: handler for %s failed: %v", e.WorkerID, e.Event, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Stats holds a snapshot of pool state.
type Stats struct {
	State  State
	Size   int
	Leader int // -1 when no worker is leader

	Leaders    int
	Followers  int
	Processing int
	Terminated int

	Queued     int
	Submitted  int64
	Processed  int64
	Failed     int64
	Discarded  int64
	Promotions int64
}

const noLeader = -1

// pool implements the Pool interface.
type pool struct {
	config   Config
	registry *event.Registry
	queue    *queue.Queue
	logger   *slog.Logger
	tracer   trace.Tracer

	// Leadership state, guarded by mu. Each worker waits on its own
	// condition so a promotion wakes exactly the chosen follower.
	// Lock order is mu then the queue's internal lock; the queue never
	// calls back into the pool while holding its own.
	mu      sync.Mutex
	state   State
	started bool
	leader  int
	waiting []bool
	roles   []Role
	wake    []*sync.Cond

	workerWg     sync.WaitGroup
	terminated   chan struct{}
	shutdownOnce sync.Once

	dequeued   atomic.Int64
	submitted  atomic.Int64
	processed  atomic.Int64
	failed     atomic.Int64
	discarded  atomic.Int64
	promotions atomic.Int64
}

// New creates a pool of size workers with the given handlers.
// It panics if the arguments are invalid; use NewSafe to get an error instead.
func New(size int, handlers map[event.Category]event.Handler) Pool {
	p, err := NewSafe(size, handlers)
	if err != nil {
		panic(err)
	}
	return p
}

// NewSafe creates a pool of size workers with the given handlers and an
// unbounded queue.
func NewSafe(size int, handlers map[event.Category]event.Handler) (Pool, error) {
	config := DefaultConfig()
	config.Size = size
	config.Handlers = handlers
	return NewWithConfig(config)
}

// NewWithConfig creates a pool with the specified configuration.
func NewWithConfig(config Config) (Pool, error) {
	p, err := newPool(config)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newPool(config Config) (*pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	registry, err := event.NewRegistryFrom(config.Handlers)
	if err != nil {
		return nil, err
	}
	if config.Fallback != nil {
		if err := registry.SetFallback(config.Fallback); err != nil {
			return nil, err
		}
	}

	q, err := queue.NewWithConfig(queue.Config{
		Capacity: config.QueueCapacity,
		Overflow: config.Overflow,
		OnBlock:  config.OnQueueBlock,
	})
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	p := &pool{
		config:     config,
		registry:   registry,
		queue:      q,
		logger:     logger.With(slog.String("component", "leaderfollower")),
		leader:     noLeader,
		waiting:    make([]bool, config.Size),
		roles:      make([]Role, config.Size),
		wake:       make([]*sync.Cond, config.Size),
		terminated: make(chan struct{}),
	}
	for i := range p.wake {
		p.wake[i] = sync.NewCond(&p.mu)
	}
	if config.Tracing {
		p.tracer = tracer()
	}
	return p, nil
}

// worker is one goroutine of the pool.
type worker struct {
	id   int
	pool *pool
}
