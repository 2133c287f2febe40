package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/leaderflow/pkg/event"
	"github.com/vnykmshr/leaderflow/pkg/source"
)

type cronOptions struct {
	schedule string
	category string
	duration time.Duration
}

func newCronCmd(global *globalOptions) *cobra.Command {
	opts := &cronOptions{}

	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Feed the pool from a cron schedule",
		Long: `Submit one event per tick of a cron schedule until interrupted or until
--duration elapses. Expressions take a leading seconds field, or use a
descriptor such as "@every 5s".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCron(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.schedule, "schedule", "@every 1s", "cron expression")
	cmd.Flags().StringVar(&opts.category, "category", "tick", "category of the generated events")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "stop after this long (0 = until interrupted)")
	return cmd
}

func runCron(cmd *cobra.Command, global *globalOptions, opts *cronOptions) error {
	logger := global.logger(cmd.ErrOrStderr())

	src, err := source.NewCron(source.CronConfig{
		Name: opts.category,
		Spec: opts.schedule,
		Factory: func(t time.Time) event.Event {
			return event.New(event.Category(opts.category), t.Format(time.RFC3339))
		},
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

	ctx, cancel := runContext(cmd, opts.duration)
	defer cancel()

	fmt.Fprintf(cmd.OutOrStdout(), "next tick at %s\n", src.Next(time.Now()).Format(time.RFC3339))
	if err := src.Run(ctx, pool); err != nil {
		_ = pool.stop(cmd, false)
		return err
	}
	return pool.stop(cmd, global.drain)
}

// runContext ends on SIGINT, SIGTERM or after d when d is positive.
func runContext(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}
