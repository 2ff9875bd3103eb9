package batch

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/olyamironova/itch-replay/internal/book"
	"github.com/olyamironova/itch-replay/internal/domain"
	"github.com/olyamironova/itch-replay/internal/report"
	"github.com/olyamironova/itch-replay/internal/strategy"
)

func discardLog() *report.Writer {
	return report.New(io.Discard, io.Discard, false)
}

// fakeSource replays a fixed sequence of packets, then returns io.EOF.
type fakeSource struct {
	packets [][]domain.Event
	pos     int
}

func (f *fakeSource) NextPacket() ([]domain.Event, error) {
	if f.pos >= len(f.packets) {
		return nil, io.EOF
	}
	p := f.packets[f.pos]
	f.pos++
	return p, nil
}

func ev(kind domain.Kind, ns uint32, instrument uint32) domain.Event {
	return domain.Event{Kind: kind, Nanosec: ns, InstrumentID: instrument}
}

func TestDispatcher_FiltersToTargetInstrument(t *testing.T) {
	src := &fakeSource{packets: [][]domain.Event{
		{
			ev(domain.KindStateChange, 1, 1),
			ev(domain.KindAddOrder, 1, 2), // wrong instrument, must be dropped
		},
	}}

	ob := book.New(discardLog())
	strat := strategy.New(strategy.Params{TargetInstrument: 1, OrderQty: 10, MaxPosition: 100, MinPosition: -100, PriceTick: 10}, discardLog())
	d := New(src, ob, strat, discardLog(), 1)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.Stats().Messages != 1 {
		t.Errorf("Messages = %d, want 1 (only the matching-instrument event)", d.Stats().Messages)
	}
}

func TestDispatcher_StopsCleanlyOnEndOfDay(t *testing.T) {
	src := &fakeSource{packets: [][]domain.Event{
		{
			{Kind: domain.KindStateChange, Nanosec: 1, InstrumentID: 1, State: "P_SUREKLI_ISLEM"},
		},
		{
			{Kind: domain.KindStateChange, Nanosec: 2, InstrumentID: 1, State: "P_MARJ_YAYIN_KAPANIS"},
		},
		{
			// Should never be reached: dispatcher returns as soon as the
			// end-of-day sentinel is processed.
			{Kind: domain.KindAddOrder, Nanosec: 3, InstrumentID: 1, OrderID: 1, Price: 100, Quantity: 10},
		},
	}}

	ob := book.New(discardLog())
	strat := strategy.New(strategy.Params{TargetInstrument: 1, OrderQty: 10, MaxPosition: 100, MinPosition: -100, PriceTick: 10}, discardLog())
	d := New(src, ob, strat, discardLog(), 1)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strat.DayClosed() {
		t.Fatal("expected strategy day to be closed")
	}
	if ob.OrderCount() != 0 {
		t.Errorf("OrderCount = %d, want 0 (the post-EOD add must not be applied)", ob.OrderCount())
	}
}

func TestDispatcher_GroupsSameNanosecondEventsIntoOneBatch(t *testing.T) {
	src := &fakeSource{packets: [][]domain.Event{
		{
			{Kind: domain.KindStateChange, Nanosec: 1, InstrumentID: 1, State: "P_SUREKLI_ISLEM"},
			{Kind: domain.KindAddOrder, Nanosec: 1, InstrumentID: 1, OrderID: 1, Side: domain.SideBuy, Price: 100, Quantity: 10, RankingTime: 1},
			{Kind: domain.KindAddOrder, Nanosec: 1, InstrumentID: 1, OrderID: 2, Side: domain.SideSell, Price: 110, Quantity: 10, RankingTime: 1},
			{Kind: domain.KindDeleteOrder, Nanosec: 2, InstrumentID: 1, OrderID: 2},
			{Kind: domain.KindAddOrder, Nanosec: 2, InstrumentID: 1, OrderID: 3, Side: domain.SideSell, Price: 120, Quantity: 10, RankingTime: 2},
		},
	}}

	ob := book.New(discardLog())
	strat := strategy.New(strategy.Params{TargetInstrument: 1, OrderQty: 10, MaxPosition: 100, MinPosition: -100, PriceTick: 10}, discardLog())
	d := New(src, ob, strat, discardLog(), 1)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// ns=1 batch seeds; ns=2 batch is the vanished-ask gap and should fill.
	if strat.Position() != 10 {
		t.Errorf("Position = %d, want 10 (one fill from the ns=2 batch)", strat.Position())
	}
	if d.Stats().Batches != 2 {
		t.Errorf("Batches = %d, want 2", d.Stats().Batches)
	}
}

func TestDispatcher_PropagatesFatalSourceError(t *testing.T) {
	d := New(&erroringSource{}, book.New(discardLog()),
		strategy.New(strategy.Params{TargetInstrument: 1}, discardLog()), discardLog(), 1)

	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected the source's fatal error to propagate")
	}
}

type erroringSource struct{}

func (erroringSource) NextPacket() ([]domain.Event, error) {
	return nil, bytes.ErrTooLarge
}

func TestDispatcher_CancelledContextStopsRun(t *testing.T) {
	src := &fakeSource{packets: [][]domain.Event{
		{ev(domain.KindStateChange, 1, 1)},
	}}
	ob := book.New(discardLog())
	strat := strategy.New(strategy.Params{TargetInstrument: 1}, discardLog())
	d := New(src, ob, strat, discardLog(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Run(ctx); err == nil {
		t.Fatal("expected context cancellation error")
	}
}
