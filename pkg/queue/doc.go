/*
Package queue provides the thread-safe FIFO event queue shared by the workers
of a leader/followers pool.

The queue is guarded by a single mutex with two condition variables. The
"check empty, then wait" sequence of Dequeue and the "append, then wake"
sequence of Enqueue run under the same lock, so a wake-up can never be lost
between a consumer's check and its wait.

Basic usage:

	q := queue.New(0) // unbounded
	_ = q.Enqueue(ctx, event.New("orders", order))

	ev, err := q.Dequeue(100 * time.Millisecond)
	switch {
	case errors.Is(err, queue.ErrDequeueTimeout):
		// nothing arrived, recheck and try again
	case errors.Is(err, queue.ErrQueueClosed):
		// shut down and empty
	}

Capacity:

A capacity of 0 gives an unbounded queue backed by a growable ring buffer.
A positive capacity bounds the queue; what happens on overflow depends on
the policy:

	q, _ := queue.NewWithConfig(queue.Config{
		Capacity: 128,
		Overflow: queue.Block,  // producers wait for space
	})

	q, _ := queue.NewWithConfig(queue.Config{
		Capacity: 128,
		Overflow: queue.Reject, // Enqueue returns ErrQueueFull
	})

Shutdown:

Close stops accepting new events but lets consumers drain what is already
queued; Dequeue reports ErrQueueClosed only once the queue is both closed and
empty. CloseNow also discards the remaining events and returns them to the
caller.
*/
package queue
