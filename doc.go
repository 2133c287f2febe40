/*
Package leaderflow provides a Leader/Followers event processing pool for Go
applications.

Pool (pkg/leaderfollower):
  - leaderfollower: workers take turns waiting on a shared queue, promote a
    follower when an event arrives, then process it themselves

Building blocks:
  - event: events, handlers and the category registry
  - queue: blocking FIFO with block or reject overflow
  - metrics: Prometheus collectors for pools and sources

Sources (pkg/source):
  - Cron: one event per cron tick
  - RedisList: JSON events popped from a Redis list

Example usage:

	import (
		"github.com/vnykmshr/leaderflow/pkg/event"
		"github.com/vnykmshr/leaderflow/pkg/leaderfollower"
	)

	pool := leaderfollower.New(5, map[event.Category]event.Handler{
		"email": emailHandler,
	})
	pool.Start()

	pool.Submit(event.New("email", msg))
	pool.Shutdown(true) // drain, then stop
*/
package leaderflow
