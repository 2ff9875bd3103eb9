// Package strategy implements a deterministic state machine that watches
// an order book's top-of-book transitions, once per nanosecond batch, and
// trades against a specific pattern: the spread widening from one tick to
// two ticks because a single top-of-book level vanished.
package strategy

import (
	"github.com/olyamironova/itch-replay/internal/book"
	"github.com/olyamironova/itch-replay/internal/domain"
	"github.com/olyamironova/itch-replay/internal/report"
)

const endOfDayState = "P_MARJ_YAYIN_KAPANIS"

// Params bundles the strategy's tunable inputs.
type Params struct {
	TargetInstrument uint32
	OrderQty         uint64
	MaxPosition      int64
	MinPosition      int64
	PriceTick        uint32 // in minor-currency units; New applies no default (cmd/replay's -tick flag defaults to 10)
}

func (p Params) tightSpread() int64 { return int64(p.PriceTick) }
func (p Params) gapSpread() int64   { return int64(p.PriceTick) * 2 }

// Strategy is the pure state machine. It never errors: a blocked trade is
// an ordinary, silent outcome, not a failure.
type Strategy struct {
	params Params
	log    *report.Writer

	position    int64
	realizedPnL int64

	prevBid, prevAsk uint32
	havePrev         bool
	dayClosed        bool

	trades []domain.SimulatedTrade
}

// New constructs a Strategy. log receives nothing from the strategy itself
// today but is threaded through for the [TRADE]/[EOD] lines the driver
// renders from the returned trades and settlement result.
func New(params Params, log *report.Writer) *Strategy {
	return &Strategy{params: params, log: log}
}

// Position returns the current net position (positive long, negative
// short, zero flat).
func (s *Strategy) Position() int64 { return s.position }

// RealizedPnL returns the cumulative realized profit/loss in minor-currency
// units (kuruş), signed.
func (s *Strategy) RealizedPnL() int64 { return s.realizedPnL }

// DayClosed reports whether end-of-day settlement has already run.
func (s *Strategy) DayClosed() bool { return s.dayClosed }

// Trades returns every fill booked so far, in the order they occurred.
func (s *Strategy) Trades() []domain.SimulatedTrade { return s.trades }

// OnBatch runs once per completed nanosecond batch, after the book has
// absorbed every event in it. It returns the trade booked this batch, if
// any, and whether end-of-day settlement fired.
func (s *Strategy) OnBatch(ns uint32, ob *book.OrderBook, batch []domain.Event) (trade *domain.SimulatedTrade, settled bool) {
	if s.dayClosed {
		return nil, false
	}

	for _, ev := range batch {
		if ev.Kind == domain.KindStateChange && ev.State == endOfDayState {
			s.settleEOD(ob)
			return nil, true
		}
	}

	if !ob.TradingOpen() || !ob.HasTop() || !s.havePrev {
		s.prevBid, s.prevAsk = ob.BestBidPrice(), ob.BestAskPrice()
		s.havePrev = true
		return nil, false
	}

	currBid, currAsk := ob.BestBidPrice(), ob.BestAskPrice()
	currSpread := int64(currAsk) - int64(currBid)
	prevSpread := int64(s.prevAsk) - int64(s.prevBid)

	var filled *domain.SimulatedTrade
	if prevSpread == s.params.tightSpread() && currSpread == s.params.gapSpread() {
		switch {
		case currBid == s.prevBid && int64(currAsk)-int64(s.prevAsk) == int64(s.params.PriceTick):
			// The ask vanished a tick higher; buy at the price that
			// disappeared.
			if ok, qty := s.tryBuy(s.prevAsk); ok {
				t := domain.NewSimulatedTrade(s.params.TargetInstrument, domain.SideBuy, s.prevAsk, qty, ns, s.position, s.realizedPnL)
				s.trades = append(s.trades, t)
				filled = &t
			}
		case currAsk == s.prevAsk && int64(s.prevBid)-int64(currBid) == int64(s.params.PriceTick):
			// The bid vanished a tick lower; sell at the price that
			// disappeared.
			if ok, qty := s.trySell(s.prevBid); ok {
				t := domain.NewSimulatedTrade(s.params.TargetInstrument, domain.SideSell, s.prevBid, qty, ns, s.position, s.realizedPnL)
				s.trades = append(s.trades, t)
				filled = &t
			}
		}
	}

	s.prevBid, s.prevAsk = currBid, currAsk
	return filled, false
}

// tryBuy fills up to headroom against max position, debiting realized P&L
// by the notional bought.
func (s *Strategy) tryBuy(price uint32) (bool, uint64) {
	headroom := s.params.MaxPosition - s.position
	if headroom <= 0 {
		return false, 0
	}
	fill := minU64(s.params.OrderQty, uint64(headroom))
	s.realizedPnL -= int64(fill) * int64(price)
	s.position += int64(fill)
	return true, fill
}

// trySell fills up to headroom against min position, crediting realized
// P&L by the notional sold.
func (s *Strategy) trySell(price uint32) (bool, uint64) {
	headroom := s.position - s.params.MinPosition
	if headroom <= 0 {
		return false, 0
	}
	fill := minU64(s.params.OrderQty, uint64(headroom))
	s.realizedPnL += int64(fill) * int64(price)
	s.position -= int64(fill)
	return true, fill
}

// settleEOD marks any remaining position to the book's last execution
// price and closes the day. Calling it again is a no-op via dayClosed,
// so settlement is idempotent.
func (s *Strategy) settleEOD(ob *book.OrderBook) {
	last := ob.LastExecPrice()
	if last != 0 && s.position != 0 {
		s.realizedPnL += s.position * int64(last)
	}
	s.dayClosed = true
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
