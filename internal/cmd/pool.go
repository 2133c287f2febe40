package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vnykmshr/leaderflow/pkg/event"
	"github.com/vnykmshr/leaderflow/pkg/leaderfollower"
	"github.com/vnykmshr/leaderflow/pkg/metrics"
)

// runtimePool is a started pool plus whatever serves its metrics.
type runtimePool struct {
	leaderfollower.Pool
	server *http.Server
}

// syncWriter serializes writes from concurrent workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// startPool builds a pool from the command flags, installs handler as the
// fallback for every category, and starts it.
func startPool(cmd *cobra.Command, opts *globalOptions, handler event.Handler) (*runtimePool, error) {
	config, err := opts.poolConfig(cmd)
	if err != nil {
		return nil, err
	}
	config.Fallback = handler

	rp := &runtimePool{}
	out := &syncWriter{w: cmd.OutOrStdout()}
	config.OnEventComplete = func(res leaderfollower.Result) {
		if res.Err != nil {
			return
		}
		fmt.Fprintf(out, "worker %d processed %s in %v\n", res.WorkerID, res.Event, res.Duration.Round(time.Microsecond))
	}

	if opts.metricsAddr == "" {
		rp.Pool, err = leaderfollower.NewWithConfig(config)
		if err != nil {
			return nil, err
		}
	} else {
		reg := prometheus.NewRegistry()
		mp, err := leaderfollower.NewWithConfigAndMetrics(config, "lfpool", metrics.Config{
			Enabled:  true,
			Registry: reg,
		})
		if err != nil {
			return nil, err
		}
		rp.Pool = mp

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		rp.server = &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	if err := rp.launch(config.Logger); err != nil {
		return nil, err
	}
	return rp, nil
}

// launch serves metrics, if configured, and starts the pool. The metrics
// server is closed again when the pool fails to start.
func (rp *runtimePool) launch(logger *slog.Logger) error {
	if rp.server != nil {
		go func() {
			if err := rp.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	if err := rp.Start(); err != nil {
		if rp.server != nil {
			_ = rp.server.Close()
		}
		return err
	}
	return nil
}

// stop shuts the pool down and prints a summary.
func (rp *runtimePool) stop(cmd *cobra.Command, drain bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := rp.ShutdownContext(ctx, drain)
	if rp.server != nil {
		_ = rp.server.Shutdown(ctx)
	}

	stats := rp.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "processed %d, failed %d, discarded %d, promotions %d\n",
		stats.Processed, stats.Failed, stats.Discarded, stats.Promotions)
	return err
}
