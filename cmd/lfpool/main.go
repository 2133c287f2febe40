// Command lfpool runs a leader/followers event processing pool fed by a
// synthetic generator, a cron schedule or a Redis list.
package main

import (
	"os"

	"github.com/vnykmshr/leaderflow/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
