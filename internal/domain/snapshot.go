package domain

// PriceLevelSnapshot is one (price, aggregate quantity) pair as returned by
// OrderBook.SnapshotN — the read-only view the driver prints per batch.
type PriceLevelSnapshot struct {
	Price    uint32
	Quantity uint64
}

// BookSnapshot is a top-N view of both sides of the book, in each side's
// natural order (bids descending, asks ascending), skipping empty levels.
type BookSnapshot struct {
	InstrumentID uint32
	TradingOpen  bool
	Bids         []PriceLevelSnapshot
	Asks         []PriceLevelSnapshot
}
