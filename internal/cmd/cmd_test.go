package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/leaderflow/pkg/event"
	"github.com/vnykmshr/leaderflow/pkg/leaderfollower"
)

// executeCommand runs the lfpool command tree with args and returns what it
// printed to stdout and stderr.
func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	root := NewRootCmd()
	assert.Equal(t, "lfpool", root.Use)

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "cron", "redis"})

	for _, flag := range []string{"config", "workers", "queue-capacity", "overflow", "log-level", "metrics-addr", "drain"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRunProcessesEveryEvent(t *testing.T) {
	out, _, err := executeCommand(t, "run", "--workers", "3", "--events", "6", "--work", "1ms")
	require.NoError(t, err)

	assert.Contains(t, out, "processed 6, failed 0, discarded 0")
	assert.Equal(t, 6, bytes.Count([]byte(out), []byte("worker ")))
}

func TestRunWithFailures(t *testing.T) {
	out, logs, err := executeCommand(t, "run", "-w", "2", "-n", "4", "--work", "0s", "--fail-every", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "processed 2, failed 2")
	assert.Contains(t, logs, "event handler failed")
}

func TestRunWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("size: 2\nqueue_capacity: 64\noverflow: block\n"), 0o600))

	out, _, err := executeCommand(t, "run", "--config", path, "--events", "5", "--work", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "processed 5")
}

func TestRunRejectsBadFlags(t *testing.T) {
	_, _, err := executeCommand(t, "run", "--overflow", "spill")
	assert.Error(t, err)

	_, _, err = executeCommand(t, "run", "--workers", "0")
	assert.Error(t, err)

	_, _, err = executeCommand(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCronRejectsBadSchedule(t *testing.T) {
	_, _, err := executeCommand(t, "cron", "--schedule", "every tuesday", "--duration", "10ms")
	assert.Error(t, err)
}

func TestCronRunsForDuration(t *testing.T) {
	out, _, err := executeCommand(t, "cron", "-w", "2", "--schedule", "@every 1s", "--duration", "1500ms")
	require.NoError(t, err)

	assert.Contains(t, out, "next tick at")
	// @every 1s ticks on whole seconds, so 1.5s sees one or two ticks.
	assert.Regexp(t, `processed [12], failed 0`, out)
}

func TestRunFileKeepsFlagDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue_capacity: 16\n"), 0o600))

	_, logs, err := executeCommand(t, "run", "--config", path, "--events", "2", "--work", "0s")
	require.NoError(t, err)
	assert.Contains(t, logs, "workers=5")
	assert.Contains(t, logs, "queue_capacity=16")

	_, logs, err = executeCommand(t, "run", "--config", path, "-w", "3", "--events", "2", "--work", "0s")
	require.NoError(t, err)
	assert.Contains(t, logs, "workers=3")

	require.NoError(t, os.WriteFile(path, []byte("size: 2\n"), 0o600))
	_, logs, err = executeCommand(t, "run", "--config", path, "--events", "2", "--work", "0s")
	require.NoError(t, err)
	assert.Contains(t, logs, "workers=2")
}

func TestLaunchFailureClosesMetricsServer(t *testing.T) {
	config := leaderfollower.DefaultConfig()
	config.Size = 1
	config.Fallback = event.HandlerFunc(func(ctx context.Context, ev event.Event) error { return nil })

	p, err := leaderfollower.NewWithConfig(config)
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Shutdown(true)

	rp := &runtimePool{
		Pool:   p,
		server: &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()},
	}
	assert.Error(t, rp.launch(slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.ErrorIs(t, rp.server.ListenAndServe(), http.ErrServerClosed)
}
