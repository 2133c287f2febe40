/*
Package leaderfollower implements the Leader/Followers concurrency pattern:
a fixed set of workers shares one event queue, and at any instant at most
one of them, the leader, waits on that queue.

When the leader receives an event it promotes a waiting follower to leader
and only then runs the event's handler. Demultiplexing and processing
therefore overlap without any per-event hand-off between threads: the
worker that received the event is the one that processes it. Once its
handler returns, the worker rejoins the followers.

Basic usage:

	pool := leaderfollower.New(4, map[event.Category]event.Handler{
		"order": event.HandlerFunc(func(ctx context.Context, ev event.Event) error {
			return process(ev.Payload())
		}),
	})
	if err := pool.Start(); err != nil {
		log.Fatal(err)
	}

	if err := pool.Submit(event.New("order", order)); err != nil {
		log.Printf("submit failed: %v", err)
	}

	// Process everything already queued, then stop.
	pool.Shutdown(true)

Roles:

Every worker is in exactly one role:

  - RoleFollower: idle, waiting to be promoted
  - RoleLeader: the single worker blocked on the queue
  - RoleProcessing: running a handler, outside the leader lock
  - RoleTerminated: exited after observing shutdown

When several followers wait, the one with the lowest worker id is promoted.

Shutdown:

Shutdown(true) stops accepting events and lets the workers drain the queue.
Shutdown(false) discards everything still queued; handlers already running
finish. In both cases the worker that finds the queue closed and empty
promotes the next follower before exiting, so shutdown cascades through the
pool. ShutdownContext bounds the wait for termination.

Handler failures:

A handler error or panic never stops its worker. It is counted, logged and
reported through Config.OnHandlerError as a *HandlerError. Events whose
category has no handler go to Config.Fallback or fail with
event.ErrNoHandler.

Configuration:

Config can be built in code or read from YAML with LoadConfig. Logging
uses log/slog through Config.Logger; Config.Tracing wraps every dispatch in
an OpenTelemetry span. NewWithConfigAndMetrics adds Prometheus metrics
from the metrics package.
*/
package leaderfollower
