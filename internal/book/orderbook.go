// Package book implements a price-time priority limit order book for a
// single instrument. It applies decoded domain.Event values mutatively and
// answers best-price/top-N queries in the book's own natural ordering
// (bids descending, asks ascending).
package book

import (
	"container/list"
	"sort"

	"github.com/olyamironova/itch-replay/internal/domain"
	"github.com/olyamironova/itch-replay/internal/report"
)

const (
	// stateContinuousTrading is the state string that flips trading_open.
	stateContinuousTrading = "P_SUREKLI_ISLEM"
	// maxSuspiciousQuantity bounds what an execute quantity may plausibly be.
	maxSuspiciousQuantity = 1_000_000_000
)

// level is one price's FIFO queue of resting orders, plus the aggregates
// the book keeps in sync with it. orders holds domain.Order values; a
// partial execution writes the reduced order back into the list.Element the
// index already has a handle to.
type level struct {
	price     uint32
	aggregate uint64
	orders    *list.List
}

// handle locates one live order: which side/price its level lives under,
// and the exact list.Element inside that level's FIFO.
type handle struct {
	side Side
	price uint32
	elem  *list.Element
}

// Side re-exports domain.Side under the book's own name for readability at
// call sites (book.Buy/book.Sell).
type Side = domain.Side

const (
	Buy  = domain.SideBuy
	Sell = domain.SideSell
)

// OrderBook is the mutable, single-instrument book. It owns every Order
// and PriceLevel; the index only holds lookup handles into that state,
// never ownership.
type OrderBook struct {
	bids map[uint32]*level
	asks map[uint32]*level

	bidPrices []uint32 // kept sorted descending
	askPrices []uint32 // kept sorted ascending

	index map[uint64]handle

	tradingOpen   bool
	lastExecPrice uint32

	log *report.Writer
}

// New constructs an empty book. log receives [WARN] lines for recoverable
// inconsistencies (unknown order id, suspicious quantities, stale
// aggregates); it may be nil in tests that don't assert on warnings.
func New(log *report.Writer) *OrderBook {
	return &OrderBook{
		bids:  make(map[uint32]*level),
		asks:  make(map[uint32]*level),
		index: make(map[uint64]handle),
		log:   log,
	}
}

func (b *OrderBook) warn(format string, args ...any) {
	if b.log != nil {
		b.log.Warnf(format, args...)
	}
}

// Apply mutates the book according to the event's kind. It never returns
// an error: inconsistent events (unknown order id, nonsensical quantity)
// are logged and ignored, never fatal.
func (b *OrderBook) Apply(ev domain.Event) {
	switch ev.Kind {
	case domain.KindStateChange:
		b.applyState(ev)
	case domain.KindAddOrder:
		b.applyAdd(ev)
	case domain.KindExecuteOrder:
		b.applyExecute(ev)
	case domain.KindDeleteOrder:
		b.applyDelete(ev)
	}
}

func (b *OrderBook) applyState(ev domain.Event) {
	b.tradingOpen = ev.State == stateContinuousTrading
}

func (b *OrderBook) applyAdd(ev domain.Event) {
	if ev.Quantity == 0 || ev.Price == 0 {
		b.warn("ADD weird qty/price id=%d qty=%d px=%d", ev.OrderID, ev.Quantity, ev.Price)
	}

	order := domain.Order{
		ID:          ev.OrderID,
		Side:        ev.Side,
		Price:       ev.Price,
		Quantity:    ev.Quantity,
		RankingTime: ev.RankingTime,
		RankingSeq:  ev.RankingSeq,
	}

	lvl := b.levelFor(ev.Side, ev.Price)

	var insertBefore *list.Element
	for e := lvl.orders.Front(); e != nil; e = e.Next() {
		existing := e.Value.(domain.Order)
		if order.Less(existing) {
			insertBefore = e
			break
		}
	}
	var elem *list.Element
	if insertBefore != nil {
		elem = lvl.orders.InsertBefore(order, insertBefore)
	} else {
		elem = lvl.orders.PushBack(order)
	}

	lvl.aggregate += order.Quantity
	if _, exists := b.index[order.ID]; exists {
		// Undefined by the feed: a second AddOrder for an id already on
		// the book. We log and overwrite the index, matching the
		// original implementation's documented (if leaky) behavior
		// rather than silently "fixing" it — see DESIGN.md.
		b.warn("ADD duplicate id=%d, overwriting index entry", order.ID)
	}
	b.index[order.ID] = handle{side: ev.Side, price: ev.Price, elem: elem}
}

func (b *OrderBook) applyExecute(ev domain.Event) {
	h, ok := b.index[ev.OrderID]
	if !ok {
		b.warn("EXEC for unknown order_id=%d qty=%d", ev.OrderID, ev.Quantity)
		return
	}
	if ev.Quantity == 0 || ev.Quantity > maxSuspiciousQuantity {
		b.warn("EXEC suspicious qty id=%d qty=%d", ev.OrderID, ev.Quantity)
		return
	}

	lvl := b.levelAt(h.side, h.price)
	order := h.elem.Value.(domain.Order)

	execPrice := ev.Price
	if execPrice == 0 {
		execPrice = h.price
	}
	b.lastExecPrice = execPrice

	if ev.Quantity >= order.Quantity {
		lvl.aggregate -= order.Quantity
		lvl.orders.Remove(h.elem)
		delete(b.index, ev.OrderID)
		b.eraseLevelIfEmpty(h.side, h.price)
	} else {
		order.Quantity -= ev.Quantity
		h.elem.Value = order
		lvl.aggregate -= ev.Quantity
	}
}

func (b *OrderBook) applyDelete(ev domain.Event) {
	h, ok := b.index[ev.OrderID]
	if !ok {
		b.warn("DELETE for unknown order_id=%d", ev.OrderID)
		return
	}

	lvl := b.levelAt(h.side, h.price)
	order := h.elem.Value.(domain.Order)

	lvl.aggregate -= order.Quantity
	lvl.orders.Remove(h.elem)
	delete(b.index, ev.OrderID)
	b.eraseLevelIfEmpty(h.side, h.price)
}

// levelFor returns the level for (side, price), creating and indexing it
// (in sorted order) if it doesn't exist yet.
func (b *OrderBook) levelFor(side Side, price uint32) *level {
	sideMap, prices := b.sideMapAndPrices(side)
	if lvl, ok := sideMap[price]; ok {
		return lvl
	}
	lvl := &level{price: price, orders: list.New()}
	sideMap[price] = lvl
	*prices = insertSorted(*prices, price, side == Buy)
	return lvl
}

func (b *OrderBook) levelAt(side Side, price uint32) *level {
	sideMap, _ := b.sideMapAndPrices(side)
	return sideMap[price]
}

func (b *OrderBook) sideMapAndPrices(side Side) (map[uint32]*level, *[]uint32) {
	if side == Buy {
		return b.bids, &b.bidPrices
	}
	return b.asks, &b.askPrices
}

// eraseLevelIfEmpty drops a level once its order count reaches zero. A
// stale nonzero aggregate at that point is coerced to zero and logged —
// it would indicate the feed carries an execute without a matching order
// entry, a feed bug the book tolerates rather than crashes on.
func (b *OrderBook) eraseLevelIfEmpty(side Side, price uint32) {
	sideMap, prices := b.sideMapAndPrices(side)
	lvl, ok := sideMap[price]
	if !ok {
		return
	}
	if lvl.orders.Len() == 0 {
		if lvl.aggregate != 0 {
			b.warn("level %d aggregate=%d with zero orders, coercing to 0", price, lvl.aggregate)
			lvl.aggregate = 0
		}
		delete(sideMap, price)
		*prices = removeSorted(*prices, price)
	}
}

// TradingOpen reports whether the book's most recent state message was the
// continuous-trading sentinel.
func (b *OrderBook) TradingOpen() bool { return b.tradingOpen }

// HasTop reports whether both sides have at least one price level.
func (b *OrderBook) HasTop() bool { return len(b.bidPrices) > 0 && len(b.askPrices) > 0 }

// LastExecPrice returns the price of the most recent execution, or 0 if
// none has occurred yet.
func (b *OrderBook) LastExecPrice() uint32 { return b.lastExecPrice }

// OrderCount returns the number of live orders indexed in the book.
func (b *OrderBook) OrderCount() int { return len(b.index) }

// BestBidPrice returns the highest bid price with positive aggregate
// quantity, or 0 if there is none.
func (b *OrderBook) BestBidPrice() uint32 { return b.firstNonZero(b.bidPrices, b.bids) }

// BestBidQuantity returns the aggregate quantity at BestBidPrice.
func (b *OrderBook) BestBidQuantity() uint64 { return b.firstNonZeroQty(b.bidPrices, b.bids) }

// BestAskPrice returns the lowest ask price with positive aggregate
// quantity, or 0 if there is none.
func (b *OrderBook) BestAskPrice() uint32 { return b.firstNonZero(b.askPrices, b.asks) }

// BestAskQuantity returns the aggregate quantity at BestAskPrice.
func (b *OrderBook) BestAskQuantity() uint64 { return b.firstNonZeroQty(b.askPrices, b.asks) }

func (b *OrderBook) firstNonZero(prices []uint32, levels map[uint32]*level) uint32 {
	for _, p := range prices {
		if levels[p].aggregate > 0 {
			return p
		}
	}
	return 0
}

func (b *OrderBook) firstNonZeroQty(prices []uint32, levels map[uint32]*level) uint64 {
	for _, p := range prices {
		if lvl := levels[p]; lvl.aggregate > 0 {
			return lvl.aggregate
		}
	}
	return 0
}

// SnapshotN returns up to n (price, aggregate) pairs per side, in each
// side's natural order, skipping levels with zero aggregate.
func (b *OrderBook) SnapshotN(n int) (bids, asks []domain.PriceLevelSnapshot) {
	bids = snapshotSide(b.bidPrices, b.bids, n)
	asks = snapshotSide(b.askPrices, b.asks, n)
	return bids, asks
}

// Snapshot returns the top-N view of both sides as a single BookSnapshot,
// the shape the report renderer prints per batch.
func (b *OrderBook) Snapshot(instrumentID uint32, n int) domain.BookSnapshot {
	bids, asks := b.SnapshotN(n)
	return domain.BookSnapshot{
		InstrumentID: instrumentID,
		TradingOpen:  b.tradingOpen,
		Bids:         bids,
		Asks:         asks,
	}
}

func snapshotSide(prices []uint32, levels map[uint32]*level, n int) []domain.PriceLevelSnapshot {
	out := make([]domain.PriceLevelSnapshot, 0, n)
	for _, p := range prices {
		if len(out) >= n {
			break
		}
		lvl := levels[p]
		if lvl.aggregate == 0 {
			continue
		}
		out = append(out, domain.PriceLevelSnapshot{Price: p, Quantity: lvl.aggregate})
	}
	return out
}

// insertSorted inserts price into a sorted slice, descending if desc is
// true, ascending otherwise. Level churn is typically low, so a sorted
// slice with binary-search insertion outperforms a tree for this size.
func insertSorted(prices []uint32, price uint32, desc bool) []uint32 {
	i := sort.Search(len(prices), func(i int) bool {
		if desc {
			return prices[i] <= price
		}
		return prices[i] >= price
	})
	prices = append(prices, 0)
	copy(prices[i+1:], prices[i:])
	prices[i] = price
	return prices
}

func removeSorted(prices []uint32, price uint32) []uint32 {
	for i, p := range prices {
		if p == price {
			return append(prices[:i], prices[i+1:]...)
		}
	}
	return prices
}
