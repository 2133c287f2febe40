package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/leaderflow/pkg/event"
)

type runOptions struct {
	events     int
	categories []string
	work       time.Duration
	failEvery  int
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process a batch of synthetic events",
		Long: `Submit a fixed number of events, spread round-robin over the given
categories, then shut the pool down. Each handler sleeps for --work to
simulate processing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynthetic(cmd, global, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.events, "events", "n", 20, "number of events to submit")
	cmd.Flags().StringSliceVar(&opts.categories, "categories", []string{"A", "B", "C"}, "event categories")
	cmd.Flags().DurationVar(&opts.work, "work", 10*time.Millisecond, "simulated processing time per event")
	cmd.Flags().IntVar(&opts.failEvery, "fail-every", 0, "make every Nth event fail (0 = never)")
	return cmd
}

func runSynthetic(cmd *cobra.Command, global *globalOptions, opts *runOptions) error {
	if opts.events < 0 {
		return fmt.Errorf("--events must not be negative, got %d", opts.events)
	}
	if len(opts.categories) == 0 {
		return fmt.Errorf("--categories must name at least one category")
	}

	handler := event.HandlerFunc(func(ctx context.Context, ev event.Event) error {
		n, _ := ev.Payload().(int)
		select {
		case <-time.After(opts.work):
		case <-ctx.Done():
			return ctx.Err()
		}
		if opts.failEvery > 0 && n%opts.failEvery == 0 {
			return fmt.Errorf("simulated failure for event #%d", n)
		}
		return nil
	})

	pool, err := startPool(cmd, global, handler)
	if err != nil {
		return err
	}

	for i := 1; i <= opts.events; i++ {
		category := strings.TrimSpace(opts.categories[(i-1)%len(opts.categories)])
		if err := pool.SubmitContext(cmd.Context(), event.New(event.Category(category), i)); err != nil {
			_ = pool.stop(cmd, false)
			return fmt.Errorf("failed to submit event #%d: %w", i, err)
		}
	}

	return pool.stop(cmd, global.drain)
}
