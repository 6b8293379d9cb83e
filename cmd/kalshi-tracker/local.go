package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/rickgao/kalshi-tracker/internal/analytics"
	"github.com/rickgao/kalshi-tracker/internal/model"
	"github.com/rickgao/kalshi-tracker/internal/store"
)

// cents formats an amount in cents as US dollars.
func cents(v int64) string {
	return money.New(v, money.USD).Display()
}

// parseDollars converts a dollar amount such as "125.50" to cents.
func parseDollars(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	c := d.Shift(2)
	if !c.IsInteger() {
		return 0, fmt.Errorf("amount %q has fractional cents", s)
	}
	return c.IntPart(), nil
}

type reportCmd struct {
	period string
	top    int
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "print analytics from the local store" }
func (*reportCmd) Usage() string {
	return `kalshi-tracker report [-period <1h|1d|7d|30d|all>] [-top <n>]

  Prints the portfolio summary, win rate, ROI and the largest markets by
  P&L. Reads only the local store.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "all", "analytics period")
	f.IntVar(&c.top, "top", 10, "number of markets to list")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	p, err := analytics.ParsePeriod(c.period)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	a, err := openApp(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	sum, err := a.Engine.Summary(ctx, p)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	wr, err := a.Engine.WinRate(ctx, p)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	roi, err := a.Engine.ROI(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	markets, err := a.Engine.MarketBreakdown(ctx, p)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Period\t%s\n", p)
	if sum.HasSnapshot {
		fmt.Fprintf(tw, "Balance\t%s\n", cents(sum.Balance))
		fmt.Fprintf(tw, "Portfolio value\t%s\n", cents(sum.PortfolioValue))
		fmt.Fprintf(tw, "Total value\t%s\n", cents(sum.TotalValue))
		fmt.Fprintf(tw, "Open positions\t%d\n", sum.OpenPositions)
		fmt.Fprintf(tw, "As of\t%s\n", sum.SnapshotAt.In(a.Engine.Location()).Format(time.DateTime))
	} else {
		fmt.Fprintf(tw, "Snapshot\tnone recorded\n")
	}
	fmt.Fprintf(tw, "Trades\t%d (%s volume)\n", sum.TradeCount, cents(sum.Volume))
	fmt.Fprintf(tw, "Realized P&L\t%s\n", cents(sum.RealizedPnL))
	fmt.Fprintf(tw, "Fees\t%s\n", cents(sum.Fees))
	fmt.Fprintf(tw, "Win rate\t%s%% (%d/%d)\n", wr.WinRate, wr.Wins, wr.Total)
	fmt.Fprintf(tw, "Avg win / loss\t%s / %s\n", cents(wr.AvgWin), cents(wr.AvgLoss))
	if roi.Defined {
		fmt.Fprintf(tw, "ROI\t%s%% on %s net deposited\n", roi.Percent, cents(roi.NetDeposited))
	} else {
		fmt.Fprintf(tw, "ROI\tundefined\n")
	}
	tw.Flush()

	if len(markets) == 0 {
		return subcommands.ExitSuccess
	}
	if c.top > 0 && len(markets) > c.top {
		markets = markets[:c.top]
	}
	fmt.Println()
	tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "TICKER\tP&L\tWINS\tLOSSES\tFILLS\tVOLUME\t")
	for _, m := range markets {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t\n", m.Ticker, cents(m.PnL), m.Wins, m.Losses, m.Fills, cents(m.Volume))
	}
	tw.Flush()
	return subcommands.ExitSuccess
}

// txCmd manages manually recorded deposits and withdrawals.
type txCmd struct {
	note string
	at   string
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "record, list or delete deposits and withdrawals" }
func (*txCmd) Usage() string {
	return `kalshi-tracker tx list
kalshi-tracker tx add [-note <text>] [-at <RFC3339>] <deposit|withdrawal> <dollars>
kalshi-tracker tx delete <id>

  Manages the capital flows used for ROI.
`
}

func (c *txCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.note, "note", "", "free-form note for add")
	f.StringVar(&c.at, "at", "", "timestamp for add, defaults to now")
}

func (c *txCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	a, err := openApp(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	switch action, args := f.Arg(0), f.Args()[1:]; action {
	case "list":
		err = c.list(ctx, a.Store)
	case "add":
		err = c.add(ctx, a.Store, args)
	case "delete", "rm":
		err = c.delete(ctx, a.Store, args)
	default:
		err = fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *txCmd) list(ctx context.Context, st store.Store) error {
	txs, err := st.ListTransactions(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tAMOUNT\tNOTE")
	for _, t := range txs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.CreatedAt.Format(time.DateOnly), t.Type, cents(t.Amount), t.Note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	totals, err := st.TransactionTotals(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nnet deposited: %s\n", cents(totals.Net()))
	return nil
}

func (c *txCmd) add(ctx context.Context, st store.Store, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: tx add <deposit|withdrawal> <dollars>")
	}
	typ, err := model.ParseTransactionType(args[0])
	if err != nil {
		return err
	}
	amount, err := parseDollars(args[1])
	if err != nil {
		return err
	}

	t := model.Transaction{Type: typ, Amount: amount, Note: c.note, CreatedAt: time.Now().UTC()}
	if c.at != "" {
		at, err := time.Parse(time.RFC3339, c.at)
		if err != nil {
			return fmt.Errorf("invalid -at: %w", err)
		}
		t.CreatedAt = at.UTC()
	}
	if err := t.Validate(); err != nil {
		return err
	}

	created, err := st.CreateTransaction(ctx, t)
	if err != nil {
		return err
	}
	fmt.Printf("recorded %s #%d: %s\n", created.Type, created.ID, cents(created.Amount))
	return nil
}

func (c *txCmd) delete(ctx context.Context, st store.Store, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tx delete <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	if err := st.DeleteTransaction(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("transaction %d not found", id)
		}
		return err
	}
	fmt.Printf("deleted transaction #%d\n", id)
	return nil
}
