// Command redpush pushes declared Redash queries, visualizations and
// dashboard placements to a Redash server.
package main

import (
	"context"
	"os"
	"time"

	"github.com/agentstation/redpush/cmd/redpush/app"
)

// Build metadata, set with -ldflags at release time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

// shutdownGrace bounds the shutdown that follows every command.
const shutdownGrace = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one command line and returns the process exit code. A
// push interrupted by SIGINT or SIGTERM still closes its journal.
func run(args []string) int {
	application, err := app.New(version, commit, date, builtBy)
	if err != nil {
		app.WriteError(os.Stderr, err)
		return 1
	}

	ctx, stop := app.ContextWithSignals(context.Background())
	defer stop()

	runErr := application.Execute(ctx, args)

	// ctx may already be done after a signal.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		application.Logger().Error().Err(err).Msg("Failed to shut down cleanly")
	}

	if runErr != nil {
		app.WriteError(os.Stderr, runErr)
		return 1
	}
	return 0
}
