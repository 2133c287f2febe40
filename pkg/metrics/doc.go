// Package metrics provides Prometheus instrumentation for leaderflow components.
//
// # Overview
//
// The metrics package instruments:
//   - Leader/followers pools (size, workers per role, queue depth, promotions)
//   - Event handling (processed, failed, discarded events and handler latency)
//   - Event sources (events emitted and errors per source)
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructor:
//
//	pool := leaderfollower.NewWithMetrics(5, handlers, "orders")
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	pool, err := leaderfollower.NewWithConfigAndMetrics(cfg, "orders", metrics.Config{
//		Enabled:  true,
//		Registry: registry,
//	})
//
// # Available Metrics
//
// ## Pool Metrics
//
//   - leaderflow_pool_size: Number of workers in the pool
//   - leaderflow_pool_workers: Workers per role (leader, follower, processing, terminated)
//   - leaderflow_pool_queued_events: Events waiting in the queue
//   - leaderflow_pool_events_submitted_total: Events accepted by Submit
//   - leaderflow_pool_events_rejected_total: Events refused by Submit, by reason
//   - leaderflow_pool_events_processed_total: Events handled successfully
//   - leaderflow_pool_events_failed_total: Events whose handler failed or panicked
//   - leaderflow_pool_events_discarded_total: Events dropped by a non-draining shutdown
//   - leaderflow_pool_promotions_total: Leadership hand-offs
//   - leaderflow_pool_backpressure_events_total: Producer waits on a full queue
//   - leaderflow_pool_handler_duration_seconds: Time spent in handlers
//   - leaderflow_pool_queue_wait_duration_seconds: Submission to dispatch latency
//
// ## Source Metrics
//
//   - leaderflow_source_events_emitted_total: Events a source submitted
//   - leaderflow_source_errors_total: Source read, decode or submit errors
//
// # Labels
//
//   - pool_name: User-provided name for the pool instance
//   - role: Worker role
//   - category: Event category
//   - reason: Rejection reason ("closed", "full", "canceled")
//   - source_type: "cron" or "redis_list"
//   - source_name: User-provided name for the source instance
package metrics
