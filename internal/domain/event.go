// Package domain holds the plain data types shared by the protocol decoder,
// the order book, and the strategy: decoded feed events, the book's own
// Order record, and the trades the strategy simulates.
package domain

// Side is an order-entry side. The numeric values match the feed's own
// ASCII side codes so decoding never needs a lookup table.
type Side byte

const (
	SideUnknown Side = 0
	SideBuy     Side = 'B'
	SideSell    Side = 'S'
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "B"
	case SideSell:
		return "S"
	default:
		return "?"
	}
}

// ParseSide maps a feed side byte to a Side. Anything other than 'B'/'S' is
// Unknown, not an error — the feed is allowed to carry sides the strategy
// does not care about.
func ParseSide(b byte) Side {
	switch b {
	case byte(SideBuy):
		return SideBuy
	case byte(SideSell):
		return SideSell
	default:
		return SideUnknown
	}
}

// Kind discriminates the four message shapes the decoder understands.
type Kind byte

const (
	KindOther        Kind = 0
	KindStateChange  Kind = 'O'
	KindAddOrder     Kind = 'A'
	KindExecuteOrder Kind = 'E'
	KindDeleteOrder  Kind = 'D'
)

// ParseKind maps a message's leading byte to a Kind. Unknown bytes become
// KindOther; the decoder still counts the message against the packet's
// message count but skips it, so no event for it reaches the driver.
func ParseKind(b byte) Kind {
	switch Kind(b) {
	case KindStateChange, KindAddOrder, KindExecuteOrder, KindDeleteOrder:
		return Kind(b)
	default:
		return KindOther
	}
}

// Event is the decoded unit the protocol package emits. Only the fields
// relevant to Kind are populated; the rest keep their zero value.
type Event struct {
	Kind Kind

	Nanosec      uint32
	RankingTime  uint64
	InstrumentID uint32
	OrderID      uint64
	Side         Side
	Quantity     uint64
	Price        uint32
	RankingSeq   uint32
	State        string
}
