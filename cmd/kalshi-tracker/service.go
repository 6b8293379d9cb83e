package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/rickgao/kalshi-tracker/internal/auth"
	"github.com/rickgao/kalshi-tracker/internal/ingest"
	"github.com/rickgao/kalshi-tracker/internal/version"
)

type serveCmd struct {
	skipCheck bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the schedulers and the HTTP API" }
func (*serveCmd) Usage() string {
	return `kalshi-tracker serve [-skip-check]

  Starts the snapshot and sync schedulers and serves the JSON API until
  interrupted.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.skipCheck, "skip-check", false, "do not probe the exchange status before starting")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	slog.Info("starting tracker", "version", version.Version, "commit", version.Commit)

	if !c.skipCheck {
		if _, err := a.CheckExchange(ctx); err != nil {
			slog.Error("exchange status check failed", "err", err)
			return subcommands.ExitFailure
		}
	}

	if err := a.Run(ctx); err != nil {
		slog.Error("tracker stopped", "err", err)
		return subcommands.ExitFailure
	}
	slog.Info("tracker stopped")
	return subcommands.ExitSuccess
}

type syncCmd struct{}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "fetch new fills and settlements once" }
func (*syncCmd) Usage() string {
	return `kalshi-tracker sync

  Runs one ingestion sweep of both streams, resuming any interrupted sweep.
`
}
func (*syncCmd) SetFlags(*flag.FlagSet) {}

func (*syncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	report, err := a.Syncer.Sync(ctx)
	printSyncResult(report.Fills)
	printSyncResult(report.Settlements)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printSyncResult(r ingest.Result) {
	fmt.Printf("%-12s pages=%d fetched=%d inserted=%d skipped=%d resumed=%t (%s)\n",
		r.Stream, r.Pages, r.Fetched, r.Inserted, r.Skipped, r.Resumed, r.Duration.Round(time.Millisecond))
}

type snapshotCmd struct{}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "record a portfolio snapshot now" }
func (*snapshotCmd) Usage() string {
	return `kalshi-tracker snapshot

  Records one portfolio snapshot. Nothing is written if the current
  interval already has one.
`
}
func (*snapshotCmd) SetFlags(*flag.FlagSet) {}

func (*snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	snap, written, err := a.Snapshots.Take(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if !written {
		fmt.Println("snapshot already recorded for this interval")
		return subcommands.ExitSuccess
	}
	fmt.Printf("balance:         %s\n", cents(snap.Balance))
	fmt.Printf("portfolio value: %s\n", cents(snap.PortfolioValue))
	fmt.Printf("total:           %s\n", cents(snap.TotalValue()))
	fmt.Printf("open positions:  %d\n", snap.OpenPositions)
	return subcommands.ExitSuccess
}

type checkCmd struct{}

func (*checkCmd) Name() string     { return "check" }
func (*checkCmd) Synopsis() string { return "verify credentials, connectivity and the store" }
func (*checkCmd) Usage() string {
	return `kalshi-tracker check

  Loads the configuration, pings the store, queries the exchange status
  and reads the account balance.
`
}
func (*checkCmd) SetFlags(*flag.FlagSet) {}

func (*checkCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := a.Store.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "store: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("store:    ok (%s)\n", a.Config.Database.Driver)

	signer := auth.NewSigner(a.Credential)
	const probePath = "/trade-api/v2/portfolio/balance"
	hdr, err := signer.SignRequest("GET", probePath)
	if err == nil {
		err = auth.Verify(a.Credential.Public(), "GET", probePath, hdr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "signing: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("signing:  ok (%s key %s)\n", a.Credential.Family, a.Credential.KeyID)

	status, err := a.CheckExchange(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "exchange: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("exchange: active=%t trading=%t\n", status.ExchangeActive, status.TradingActive)

	bal, err := a.Client.GetBalance(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "balance: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("balance:  %s\n", cents(bal.Balance))
	return subcommands.ExitSuccess
}

type versionCmd struct{}

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "print build information" }
func (*versionCmd) Usage() string          { return "kalshi-tracker version\n" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}
func (*versionCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	fmt.Println(version.String())
	return subcommands.ExitSuccess
}
