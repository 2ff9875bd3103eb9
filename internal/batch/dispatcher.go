// Package batch groups consecutive events sharing one nanosecond timestamp
// for a single target instrument into batches, applies each event to the
// order book in arrival order, then hands the completed batch to the
// strategy. This is what makes same-nanosecond event sequences atomic from
// the strategy's point of view: it only ever sees the book after every
// event in the batch has landed.
package batch

import (
	"context"
	"errors"
	"io"

	"github.com/olyamironova/itch-replay/internal/book"
	"github.com/olyamironova/itch-replay/internal/domain"
	"github.com/olyamironova/itch-replay/internal/protocol"
	"github.com/olyamironova/itch-replay/internal/report"
	"github.com/olyamironova/itch-replay/internal/strategy"
)

// Source is anything that yields successive packets of events, exactly the
// shape protocol.Decoder has. Tests can substitute a canned source without
// going through the byte-level framing at all.
type Source interface {
	NextPacket() ([]domain.Event, error)
}

var _ Source = (*protocol.Decoder)(nil)

// Stats tallies run-wide counters for the [FINAL] line.
type Stats struct {
	Batches uint64
	Messages uint64
}

// Dispatcher owns the one book and one strategy for a run, and the
// in-progress batch accumulator between flushes. It never allocates a new
// book or strategy mid-run.
type Dispatcher struct {
	src    Source
	book   *book.OrderBook
	strat  *strategy.Strategy
	log    *report.Writer
	target uint32

	seenOpen bool

	haveBatch bool
	curNs     uint32
	curBatch  []domain.Event

	stats Stats
}

// New constructs a Dispatcher wired to the given source, book, and
// strategy, filtering events to the target instrument as it goes. log must
// not be nil; pass report.New with a quiet writer if batch chatter is
// unwanted — the unconditional lines still go through regardless.
func New(src Source, ob *book.OrderBook, strat *strategy.Strategy, log *report.Writer, targetInstrument uint32) *Dispatcher {
	return &Dispatcher{
		src:      src,
		book:     ob,
		strat:    strat,
		log:      log,
		target:   targetInstrument,
		curBatch: make([]domain.Event, 0, 64),
	}
}

// Stats returns the running batch/message counters.
func (d *Dispatcher) Stats() Stats { return d.stats }

// Run pulls packets until the source is exhausted or the end-of-day
// sentinel is observed, applying each matching event to the book and
// running the strategy once per completed batch. ctx is checked only at
// packet boundaries — the only place this loop can cooperatively stop,
// since the underlying read itself is not cancellable.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			d.flush()
			return err
		}

		events, err := d.src.NextPacket()
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.flush()
				return nil
			}
			return err
		}
		if len(events) == 0 {
			// Discarded or truncated packet: keep reading, the source
			// will surface io.EOF once it's actually drained.
			continue
		}

		if d.processEvents(events) {
			return nil
		}
	}
}

// processEvents applies the target-instrument events in a packet to the
// book/batch, and reports whether the end-of-day sentinel was reached.
func (d *Dispatcher) processEvents(events []domain.Event) bool {
	for _, ev := range events {
		if ev.InstrumentID != d.target {
			continue
		}

		if ev.Kind == domain.KindStateChange {
			d.log.Line("[STATE] ns=%d state=%s", ev.Nanosec, ev.State)
			if !d.seenOpen && ev.State == "P_SUREKLI_ISLEM" {
				d.seenOpen = true
				d.log.Always("[DAY START] Continuous trading begins.")
			}
		}

		if !d.haveBatch {
			d.curNs = ev.Nanosec
			d.haveBatch = true
		} else if ev.Nanosec != d.curNs {
			d.flush()
			d.curNs = ev.Nanosec
			d.haveBatch = true
		}

		d.book.Apply(ev)
		d.curBatch = append(d.curBatch, ev)
		d.stats.Messages++

		if ev.Kind == domain.KindStateChange && ev.State == "P_MARJ_YAYIN_KAPANIS" {
			d.log.Always("[DAY END] Market closed.")
			d.flush()
			return true
		}
	}
	return false
}

// flush hands the current batch to the strategy and resets the
// accumulator. It is a no-op when no batch is open.
func (d *Dispatcher) flush() {
	if !d.haveBatch {
		return
	}
	d.stats.Batches++

	d.log.Line("")
	d.log.Line("=== BATCH ns=%d (%d events) ===", d.curNs, len(d.curBatch))
	for _, ev := range d.curBatch {
		d.log.Line("%s", describeEvent(ev))
	}

	trade, settled := d.strat.OnBatch(d.curNs, d.book, d.curBatch)
	if trade != nil {
		d.log.Always("[TRADE] %s %d @ %d pos=%d pnl=%d",
			sideWord(trade.Side), trade.Quantity, trade.Price, trade.PositionAfter, trade.RealizedPnLAfter)
	}
	if settled {
		d.log.Always("[EOD] Close. last_exec_price=%d final_pos=%d final_pnl=%d",
			d.book.LastExecPrice(), d.strat.Position(), d.strat.RealizedPnL())
	}

	snap := d.book.Snapshot(d.target, 3)
	d.log.Line("%s", formatSnapshot(d.curNs, snap))

	d.curBatch = d.curBatch[:0]
	d.haveBatch = false
}

func sideWord(s domain.Side) string {
	if s == domain.SideBuy {
		return "BUY"
	}
	return "SELL"
}
