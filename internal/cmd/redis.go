package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/vnykmshr/leaderflow/pkg/event"
	"github.com/vnykmshr/leaderflow/pkg/source"
)

type redisOptions struct {
	addrs    []string
	key      string
	push     int
	duration time.Duration
}

func newRedisCmd(global *globalOptions) *cobra.Command {
	opts := &redisOptions{}

	cmd := &cobra.Command{
		Use:   "redis",
		Short: "Feed the pool from a Redis list",
		Long: `Pop JSON events ({"id", "category", "payload"}) from a Redis list with
BLPOP and process them until interrupted or until --duration elapses.
--push appends demo events to the list first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRedis(cmd, global, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.addrs, "addr", []string{"localhost:6379"}, "Redis address(es); several imply cluster mode")
	cmd.Flags().StringVar(&opts.key, "key", "leaderflow:events", "list to pop events from")
	cmd.Flags().IntVar(&opts.push, "push", 0, "push this many demo events before starting")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "stop after this long (0 = until interrupted)")
	return cmd
}

func runRedis(cmd *cobra.Command, global *globalOptions, opts *redisOptions) error {
	logger := global.logger(cmd.ErrOrStderr())

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: opts.addrs})
	defer rdb.Close()

	ctx, cancel := runContext(cmd, opts.duration)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cannot reach redis at %v: %w", opts.addrs, err)
	}
	if err := pushDemoEvents(ctx, rdb, opts.key, opts.push); err != nil {
		return err
	}

	src, err := source.NewRedisList(source.RedisListConfig{
		Name:   opts.key,
		Client: rdb,
		Key:    opts.key,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	handler := event.HandlerFunc(func(ctx context.Context, ev event.Event) error { return nil })
	pool, err := startPool(cmd, global, handler)
	if err != nil {
		return err
	}

	if err := src.Run(ctx, pool); err != nil {
		_ = pool.stop(cmd, false)
		return err
	}
	return pool.stop(cmd, global.drain)
}

func pushDemoEvents(ctx context.Context, rdb redis.UniversalClient, key string, n int) error {
	if n <= 0 {
		return nil
	}

	values := make([]any, 0, n)
	for i := 1; i <= n; i++ {
		data, err := source.EncodeMessage(event.New("demo", map[string]int{"n": i}))
		if err != nil {
			return err
		}
		values = append(values, data)
	}
	return rdb.RPush(ctx, key, values...).Err()
}
