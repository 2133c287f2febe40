/*
Package source feeds a leader/followers pool from outside the process.

A Source runs until its context is done, turning whatever it reads into
events and handing them to a Submitter. leaderfollower.Pool and
*leaderfollower.MetricsPool are Submitters.

Two sources are provided:

  - Cron submits an event built by a factory on every tick of a cron schedule.
  - RedisList pops JSON-encoded events from a Redis list with BLPOP.

A source stops quietly when the pool it feeds is shut down:

	pool := leaderfollower.New(4, handlers)
	pool.Start()

	src, err := source.NewRedisList(source.RedisListConfig{
		Name:   "orders",
		Client: rdb,
		Key:    "orders:pending",
	})
	if err != nil {
		log.Fatal(err)
	}
	go src.Run(ctx, pool)

Cron expressions take a leading seconds field ("0/5 * * * * *") or a
descriptor such as "@hourly" or "@every 30s".
*/
package source
