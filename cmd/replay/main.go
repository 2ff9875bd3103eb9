// Command replay reads a framed binary market-data feed file, reconstructs
// the order book for one target instrument, and runs the gap-detection
// strategy against it, printing trades and a final summary as it goes.
//
// Usage:
//
//	replay data/feed.dat                 # default instrument/strategy params
//	replay -quiet data/feed.dat           # suppress per-batch/event chatter
//	replay -instrument 123 -order-qty 100 -max-pos 500 -min-pos 0 data/feed.dat
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/olyamironova/itch-replay/internal/batch"
	"github.com/olyamironova/itch-replay/internal/book"
	"github.com/olyamironova/itch-replay/internal/money"
	"github.com/olyamironova/itch-replay/internal/protocol"
	"github.com/olyamironova/itch-replay/internal/report"
	"github.com/olyamironova/itch-replay/internal/strategy"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	quiet := fs.Bool("quiet", false, "suppress per-batch event and snapshot output")
	fs.BoolVar(quiet, "q", false, "alias for -quiet")
	instrument := fs.Uint("instrument", 73616, "target instrument id")
	orderQty := fs.Uint64("order-qty", 100, "strategy order size per fill")
	maxPos := fs.Int64("max-pos", 500, "maximum long position")
	minPos := fs.Int64("min-pos", 0, "minimum short position")
	tick := fs.Uint("tick", 10, "price tick size in kuruş")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: replay [flags] <feed-file>")
		return 2
	}
	path := fs.Arg(0)

	log := report.New(stdout, stderr, *quiet)

	f, err := os.Open(path)
	if err != nil {
		log.Warnf("%v", fmt.Errorf("open feed file: %w", err))
		return 1
	}
	defer f.Close()

	ob := book.New(log)
	strat := strategy.New(strategy.Params{
		TargetInstrument: uint32(*instrument),
		OrderQty:         *orderQty,
		MaxPosition:      *maxPos,
		MinPosition:      *minPos,
		PriceTick:        uint32(*tick),
	}, log)

	dec := protocol.New(f, log)
	disp := batch.New(dec, ob, strat, log, uint32(*instrument))

	if err := disp.Run(context.Background()); err != nil {
		log.Warnf("replay stopped early: %v", err)
	}

	stats := disp.Stats()
	log.Always("[FINAL] batches=%d msgs=%d pos=%d pnl=%d converted to TL: %s TL)",
		stats.Batches, stats.Messages, strat.Position(), strat.RealizedPnL(), money.FormatTL(strat.RealizedPnL()))

	return 0
}
