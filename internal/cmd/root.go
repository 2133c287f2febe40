package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/leaderflow/pkg/leaderfollower"
	"github.com/vnykmshr/leaderflow/pkg/queue"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configFile    string
	workers       int
	queueCapacity int
	overflow      string
	logLevel      string
	metricsAddr   string
	drain         bool
}

// NewRootCmd builds the lfpool command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "lfpool",
		Short: "Leader/followers event processing pool",
		Long: `lfpool runs a pool of workers that take turns leading: one worker waits
for the next event, promotes a follower, then processes what it received.
Events come from a synthetic generator, a cron schedule or a Redis list.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "YAML pool configuration file")
	flags.IntVarP(&opts.workers, "workers", "w", 5, "number of workers")
	flags.IntVar(&opts.queueCapacity, "queue-capacity", 0, "event queue capacity (0 = unbounded)")
	flags.StringVar(&opts.overflow, "overflow", "block", `full queue policy: "block" or "reject"`)
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	flags.BoolVar(&opts.drain, "drain", true, "process queued events before stopping")

	root.AddCommand(
		newRunCmd(opts),
		newCronCmd(opts),
		newRedisCmd(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// poolConfig layers the config file and explicitly set flags over the
// defaults.
func (o *globalOptions) poolConfig(cmd *cobra.Command) (leaderfollower.Config, error) {
	policy, err := queue.ParsePolicy(o.overflow)
	if err != nil {
		return leaderfollower.Config{}, err
	}

	config := leaderfollower.DefaultConfig()
	config.Size = o.workers
	config.QueueCapacity = o.queueCapacity
	config.Overflow = policy

	if o.configFile != "" {
		f, err := os.Open(o.configFile)
		if err != nil {
			return config, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		// Keys the file leaves out keep the flag values, defaults included.
		if config, err = leaderfollower.LoadConfigOver(f, config); err != nil {
			return config, fmt.Errorf("failed to load %s: %w", o.configFile, err)
		}

		flags := cmd.Flags()
		if flags.Changed("workers") {
			config.Size = o.workers
		}
		if flags.Changed("queue-capacity") {
			config.QueueCapacity = o.queueCapacity
		}
		if flags.Changed("overflow") {
			config.Overflow = policy
		}
	}

	config.Logger = o.logger(cmd.ErrOrStderr())
	return config, config.Validate()
}

func (o *globalOptions) logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(o.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
