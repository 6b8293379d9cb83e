// Command kalshi-tracker ingests a Kalshi account's trading activity into a
// local database and serves analytics over it.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

var (
	configPath = flag.String("config", "", "path to YAML config file (optional)")
	logLevel   = flag.String("log-level", "", "override log level (debug, info, warn, error)")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&serveCmd{}, "service")
	commander.Register(&syncCmd{}, "service")
	commander.Register(&snapshotCmd{}, "service")
	commander.Register(&checkCmd{}, "service")
	commander.Register(&reportCmd{}, "local")
	commander.Register(&txCmd{}, "local")
	commander.Register(&versionCmd{}, "")

	commander.ImportantFlag("config")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(int(commander.Execute(ctx)))
}
