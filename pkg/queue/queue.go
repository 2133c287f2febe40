package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	eq "github.com/eapache/queue"

	lferrors "github.com/vnykmshr/leaderflow/pkg/common/errors"
	"github.com/vnykmshr/leaderflow/pkg/common/validation"
	"github.com/vnykmshr/leaderflow/pkg/event"
)

// OverflowPolicy defines what Enqueue does when a bounded queue is full.
type OverflowPolicy int

const (
	// Block makes the producer wait until space is available.
	Block OverflowPolicy = iota

	// Reject makes Enqueue fail fast with ErrQueueFull.
	Reject
)

func (p OverflowPolicy) String() string {
	switch p {
	case Block:
		return "block"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParsePolicy converts "block" or "reject" to an OverflowPolicy.
func ParsePolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return Block, nil
	case "reject":
		return Reject, nil
	default:
		return Block, lferrors.NewValidationError("queue", "overflow", s, "unknown policy").
			WithHint(`use "block" or "reject"`)
	}
}

var (
	// ErrQueueClosed is returned by Enqueue after Close, and by Dequeue once
	// the queue is closed and empty.
	ErrQueueClosed = fmt.Errorf("event queue is closed: %w", lferrors.ErrClosed)

	// ErrQueueFull is returned when a bounded queue with the Reject policy is full.
	ErrQueueFull = fmt.Errorf("event queue is full: %w", lferrors.ErrCapacityExceeded)

	// ErrDequeueTimeout is returned when Dequeue's timeout elapses.
	ErrDequeueTimeout = fmt.Errorf("dequeue timed out: %w", lferrors.ErrTimeout)
)

// Config holds configuration for a Queue.
type Config struct {
	// Capacity bounds the number of queued events. 0 means unbounded.
	Capacity int

	// Overflow selects the behavior of Enqueue on a full bounded queue.
	Overflow OverflowPolicy

	// OnBlock is called each time a producer has to wait for space.
	// It runs under the queue lock and must not call back into the queue.
	OnBlock func()
}

// Stats holds queue counters.
type Stats struct {
	Enqueued        int64
	Dequeued        int64
	Rejected        int64
	Discarded       int64
	BlockedEnqueues int64
	Len             int
	Cap             int
	HighWater       int
}

// Queue is a FIFO of events with blocking dequeue.
type Queue struct {
	config Config

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    *eq.Queue
	closed   bool
	stats    Stats
}

// New creates a queue with the given capacity and the Block policy.
// It panics if capacity is negative.
func New(capacity int) *Queue {
	q, err := NewWithConfig(Config{Capacity: capacity})
	if err != nil {
		panic(err)
	}
	return q
}

// NewWithConfig creates a queue with the specified configuration.
func NewWithConfig(config Config) (*Queue, error) {
	if err := validation.ValidateNonNegative("queue", "capacity", config.Capacity); err != nil {
		return nil, err
	}
	if config.Overflow != Block && config.Overflow != Reject {
		return nil, lferrors.NewValidationError("queue", "overflow", config.Overflow, "unknown policy").
			WithHint("use queue.Block or queue.Reject")
	}

	q := &Queue{
		config: config,
		items:  eq.New(),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	q.stats.Cap = config.Capacity
	return q, nil
}

// Enqueue appends ev to the tail and wakes one waiting consumer.
// On a full bounded queue it blocks until space frees up, ctx is done or the
// queue is closed, unless the policy is Reject.
func (q *Queue) Enqueue(ctx context.Context, ev event.Event) error {
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.fullLocked() {
		if q.config.Overflow == Reject {
			q.stats.Rejected++
			return ErrQueueFull
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		q.stats.BlockedEnqueues++
		if q.config.OnBlock != nil {
			q.config.OnBlock()
		}
		q.waitLocked(ctx, q.notFull)
	}

	if q.closed {
		return ErrQueueClosed
	}

	q.pushLocked(ev)
	return nil
}

// TryEnqueue appends ev without ever blocking, returning ErrQueueFull if
// there is no room.
func (q *Queue) TryEnqueue(ev event.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.fullLocked() {
		q.stats.Rejected++
		return ErrQueueFull
	}

	q.pushLocked(ev)
	return nil
}

// Dequeue removes and returns the oldest event, waiting up to timeout for one
// to arrive. A timeout <= 0 waits indefinitely.
func (q *Queue) Dequeue(timeout time.Duration) (event.Event, error) {
	if timeout <= 0 {
		return q.DequeueContext(context.Background())
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ev, err := q.DequeueContext(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return ev, ErrDequeueTimeout
	}
	return ev, err
}

// DequeueContext removes and returns the oldest event, waiting until one is
// available, the queue is closed and empty, or ctx is done.
func (q *Queue) DequeueContext(ctx context.Context) (event.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() == 0 {
		if q.closed {
			return event.Event{}, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return event.Event{}, err
		}
		q.waitLocked(ctx, q.notEmpty)
	}

	ev := q.items.Remove().(event.Event)
	q.stats.Dequeued++
	q.notFull.Signal()
	return ev, nil
}

// Close stops the queue from accepting events. Already queued events can
// still be dequeued. It is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// CloseNow closes the queue and discards everything still queued,
// returning the discarded events in FIFO order.
func (q *Queue) CloseNow() []event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	dropped := make([]event.Event, 0, q.items.Length())
	for q.items.Length() > 0 {
		dropped = append(dropped, q.items.Remove().(event.Event))
	}
	q.stats.Discarded += int64(len(dropped))

	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	return dropped
}

// IsClosed reports whether Close or CloseNow has been called.
func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Cap returns the capacity, 0 for an unbounded queue.
func (q *Queue) Cap() int {
	return q.config.Capacity
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.Len = q.items.Length()
	return stats
}

// pushLocked appends ev and wakes one consumer (must hold lock).
func (q *Queue) pushLocked(ev event.Event) {
	q.items.Add(ev)
	q.stats.Enqueued++
	if n := q.items.Length(); n > q.stats.HighWater {
		q.stats.HighWater = n
	}
	q.notEmpty.Signal()
}

// fullLocked reports whether a bounded queue has no room (must hold lock).
func (q *Queue) fullLocked() bool {
	return q.config.Capacity > 0 && q.items.Length() >= q.config.Capacity
}

// waitLocked waits on c, waking early when ctx is done (must hold lock).
func (q *Queue) waitLocked(ctx context.Context, c *sync.Cond) {
	if ctx.Done() == nil {
		c.Wait()
		return
	}

	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		c.Broadcast()
		q.mu.Unlock()
	})
	c.Wait()
	stop()
}
