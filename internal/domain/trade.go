package domain

import "github.com/google/uuid"

// SimulatedTrade is one fill the strategy books against the simulated book.
// It is pure bookkeeping: recording it never changes whether, when, or at
// what size a trade fires — that is entirely the strategy's state machine.
type SimulatedTrade struct {
	ID              uuid.UUID
	InstrumentID    uint32
	Side            Side
	Price           uint32
	Quantity        uint64
	Nanosec         uint32
	PositionAfter   int64
	RealizedPnLAfter int64
}

// NewSimulatedTrade stamps a fresh trade record with a random identifier,
// mirroring how the teacher's engine tags every trade it books with a uuid.
func NewSimulatedTrade(instrumentID uint32, side Side, price uint32, qty uint64, ns uint32, posAfter, pnlAfter int64) SimulatedTrade {
	return SimulatedTrade{
		ID:               uuid.New(),
		InstrumentID:     instrumentID,
		Side:             side,
		Price:            price,
		Quantity:         qty,
		Nanosec:          ns,
		PositionAfter:    posAfter,
		RealizedPnLAfter: pnlAfter,
	}
}
