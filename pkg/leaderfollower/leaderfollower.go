package leaderfollower

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/vnykmshr/leaderflow/pkg/common/validation"
	"github.com/vnykmshr/leaderflow/pkg/event"
	"github.com/vnykmshr/leaderflow/pkg/queue"
)

// Start spawns the workers. The handler registry is frozen from here on.
func (p *pool) Start() error {
	p.mu.Lock()
	switch p.state {
	case StateRunning:
		p.mu.Unlock()
		return ErrAlreadyStarted
	case StateDraining, StateStopped:
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.state = StateRunning
	p.started = true
	p.registry.Freeze()
	p.mu.Unlock()

	p.workerWg.Add(p.config.Size)
	for i := 0; i < p.config.Size; i++ {
		w := &worker{id: i, pool: p}
		go w.run()
	}

	go func() {
		p.workerWg.Wait()
		p.mu.Lock()
		p.state = StateStopped
		p.mu.Unlock()
		logStopped(p.logger, p.config.Size)
		close(p.terminated)
	}()

	logStarted(p.logger, p.config.Size, p.queue.Cap())
	return nil
}

// Submit queues ev for processing.
func (p *pool) Submit(ev event.Event) error {
	return p.SubmitContext(context.Background(), ev)
}

// SubmitContext queues ev, waiting for queue space until ctx is done when
// the queue is bounded with the block policy.
func (p *pool) SubmitContext(ctx context.Context, ev event.Event) error {
	if ev.IsZero() {
		return validation.ValidateNotEmpty("leaderfollower", "event", "")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	err := p.queue.Enqueue(ctx, ev)
	switch {
	case err == nil:
		p.submitted.Add(1)
		return nil
	case errors.Is(err, queue.ErrQueueClosed):
		return ErrPoolClosed
	case errors.Is(err, queue.ErrQueueFull):
		return ErrQueueFull
	default:
		return fmt.Errorf("cannot submit event: %w", err)
	}
}

// RegisterHandler binds h to category before Start.
func (p *pool) RegisterHandler(category event.Category, h event.Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateCreated:
		return p.registry.Register(category, h)
	case StateRunning:
		return ErrAlreadyStarted
	default:
		return ErrPoolClosed
	}
}

// Shutdown stops the pool and waits for every worker to terminate.
func (p *pool) Shutdown(drain bool) error {
	return p.ShutdownContext(context.Background(), drain)
}

// ShutdownContext stops the pool and waits until every worker has
// terminated or ctx is done. Later calls wait on the same termination; a
// later call without drain discards whatever is still queued.
func (p *pool) ShutdownContext(ctx context.Context, drain bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		started := p.started
		if started {
			p.state = StateDraining
		} else {
			p.state = StateStopped
		}
		p.queue.Close()
		p.mu.Unlock()

		logShutdown(p.logger, drain, p.queue.Len())
		if !started {
			// No worker will ever drain the queue.
			p.discardQueued()
			close(p.terminated)
		}
	})

	if !drain {
		p.discardQueued()
	}

	select {
	case <-p.terminated:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %d events still queued: %v", ErrShutdownTimeout, p.queue.Len(), ctx.Err())
	}
}

// discardQueued drops everything still in the queue and reports it.
func (p *pool) discardQueued() {
	dropped := p.queue.CloseNow()
	if len(dropped) == 0 {
		return
	}

	p.discarded.Add(int64(len(dropped)))
	logDiscarded(p.logger, len(dropped))
	if p.config.OnDiscard != nil {
		p.config.OnDiscard(dropped)
	}
}

// Size returns the number of workers in the pool.
func (p *pool) Size() int {
	return p.config.Size
}

// QueueSize returns the number of events waiting to be dequeued.
func (p *pool) QueueSize() int {
	return p.queue.Len()
}

// State returns the lifecycle state.
func (p *pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Leader returns the current leader's worker id.
func (p *pool) Leader() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leader, p.leader != noLeader
}

// Stats returns a snapshot of the pool.
func (p *pool) Stats() Stats {
	p.mu.Lock()
	stats := Stats{
		State:  p.state,
		Size:   p.config.Size,
		Leader: p.leader,
	}
	for _, r := range p.roles {
		switch r {
		case RoleLeader:
			stats.Leaders++
		case RoleFollower:
			stats.Followers++
		case RoleProcessing:
			stats.Processing++
		case RoleTerminated:
			stats.Terminated++
		}
	}
	p.mu.Unlock()

	stats.Queued = p.queue.Len()
	stats.Submitted = p.submitted.Load()
	stats.Processed = p.processed.Load()
	stats.Failed = p.failed.Load()
	stats.Discarded = p.discarded.Load()
	stats.Promotions = p.promotions.Load()
	return stats
}

// run is the main loop for a worker:
// Follower -> Leader -> Processing -> Follower, until the queue is closed.
func (w *worker) run() {
	p := w.pool
	defer p.workerWg.Done()

	if p.config.OnWorkerStart != nil {
		p.config.OnWorkerStart(w.id)
	}
	if p.config.OnWorkerStop != nil {
		defer p.config.OnWorkerStop(w.id)
	}

	for {
		p.awaitLeadership(w.id)

		ev, err := w.demultiplex()
		if err != nil {
			// Closed and empty: pass leadership on so the next worker
			// observes the shutdown too, then exit.
			next := p.handOff(w.id, RoleTerminated)
			logTerminated(p.logger, w.id, next)
			return
		}

		// Only the leader dequeues, so the sequence follows queue order.
		seq := p.dequeued.Add(1)
		next := p.handOff(w.id, RoleProcessing)
		logPromotion(p.logger, w.id, next, ev)
		p.dispatch(w.id, seq, ev)
	}
}

// demultiplex waits, as leader, for the next event. A poll timeout keeps
// leadership and waits again.
func (w *worker) demultiplex() (event.Event, error) {
	for {
		ev, err := w.pool.queue.Dequeue(w.pool.config.PollInterval)
		if errors.Is(err, queue.ErrDequeueTimeout) {
			continue
		}
		return ev, err
	}
}

// awaitLeadership returns once id is the leader. A worker becomes leader at
// once when there is none; otherwise it joins the waiting followers until a
// leader promotes it.
func (p *pool) awaitLeadership(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.roles[id] != RoleFollower {
		p.setRoleLocked(id, RoleFollower)
	}

	for p.leader != id {
		if p.leader == noLeader {
			p.leader = id
			p.setRoleLocked(id, RoleLeader)
			return
		}
		p.waiting[id] = true
		p.wake[id].Wait()
	}
}

// handOff moves the leader into role next and promotes the lowest-id
// waiting follower, if any. It returns the new leader or noLeader.
func (p *pool) handOff(id int, next Role) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.setRoleLocked(id, next)

	successor := noLeader
	for i, waiting := range p.waiting {
		if waiting {
			successor = i
			break
		}
	}

	p.leader = successor
	if successor == noLeader {
		return noLeader
	}

	p.waiting[successor] = false
	p.setRoleLocked(successor, RoleLeader)
	p.promotions.Add(1)
	if p.config.OnPromote != nil {
		p.config.OnPromote(id, successor)
	}
	p.wake[successor].Signal()
	return successor
}

// setRoleLocked records a role transition (must hold lock).
func (p *pool) setRoleLocked(id int, to Role) {
	from := p.roles[id]
	p.roles[id] = to
	if p.config.OnRoleChange != nil {
		p.config.OnRoleChange(id, from, to)
	}
}

// dispatch runs the handler for ev outside every pool lock.
func (p *pool) dispatch(workerID int, seq int64, ev event.Event) {
	start := time.Now()
	ctx := context.Background()

	ctx, span := p.startDispatchSpan(ctx, workerID, ev)

	if p.config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.HandlerTimeout)
		defer cancel()
	}

	err := p.invoke(ctx, ev)
	duration := time.Since(start)
	endSpanWithError(span, err)

	if err != nil {
		p.failed.Add(1)
		herr := &HandlerError{WorkerID: workerID, Event: ev, Err: err}
		logHandlerFailure(p.logger, herr)
		if p.config.OnHandlerError != nil {
			p.config.OnHandlerError(herr)
		}
	} else {
		p.processed.Add(1)
	}

	if p.config.OnEventComplete != nil {
		p.config.OnEventComplete(Result{
			WorkerID:  workerID,
			Sequence:  seq,
			Event:     ev,
			Err:       err,
			Duration:  duration,
			QueueWait: start.Sub(ev.CreatedAt()),
		})
	}
}

// invoke resolves and calls the handler, converting a panic into an error.
func (p *pool) invoke(ctx context.Context, ev event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\nStack trace:\n%s", ErrHandlerPanic, r, debug.Stack())
		}
	}()

	h, err := p.registry.Resolve(ev)
	if err != nil {
		return err
	}
	return h.Handle(ctx, ev)
}
