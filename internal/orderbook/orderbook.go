// Package orderbook implements the per-market limit order book: two
// capacity-bounded, price-sorted sides with binary-search insert/remove,
// FIFO tie-break within a level, and a monotone sequence counter observed
// by subscribers to detect gaps.
package orderbook

import (
	"sort"
	"sync"
	"sync/atomic"
)

type Config struct {
	MaxTotalOrders    int
	MaxLevelsPerSide  int
	MaxOrdersPerLevel int
}

func DefaultConfig() Config {
	return Config{
		MaxTotalOrders:    10_000,
		MaxLevelsPerSide:  1_000,
		MaxOrdersPerLevel: 100,
	}
}

// Book is a single market's limit order book. All mutation passes through
// Add/Remove/Clear, which hold the write lock for the duration of the
// structural change; readers take the read lock. The write lock is always
// released before a delta is handed back to the caller for publication, so
// no lock is held across a potential bus-publish suspension.
type Book struct {
	MarketID uint32
	Symbol   string

	cfg Config

	mu   sync.RWMutex
	bids []*priceLevel // descending by price
	asks []*priceLevel // ascending by price

	sequence    atomic.Uint64
	bidCount    atomic.Int64
	askCount    atomic.Int64
	totalOrders atomic.Int64
}

func New(marketID uint32, symbol string, cfg Config) *Book {
	return &Book{MarketID: marketID, Symbol: symbol, cfg: cfg}
}

func (b *Book) Sequence() uint64    { return b.sequence.Load() }
func (b *Book) BidLevels() int64    { return b.bidCount.Load() }
func (b *Book) AskLevels() int64    { return b.askCount.Load() }
func (b *Book) TotalOrders() int64  { return b.totalOrders.Load() }

// bidSearch returns the index of the level at price p within a
// descending-sorted slice, or the insertion index if absent.
func bidSearch(levels []*priceLevel, p float64) int {
	return sort.Search(len(levels), func(i int) bool { return levels[i].price <= p })
}

// askSearch returns the index of the level at price p within an
// ascending-sorted slice, or the insertion index if absent.
func askSearch(levels []*priceLevel, p float64) int {
	return sort.Search(len(levels), func(i int) bool { return levels[i].price >= p })
}

// Add inserts an order into the book. ok is false when the add was dropped
// for capacity back-pressure — the caller must not publish a
// delta in that case.
func (b *Book) Add(o Order, side Side) (delta Delta, ok bool) {
	b.mu.Lock()

	if int(b.totalOrders.Load()) >= b.cfg.MaxTotalOrders {
		b.mu.Unlock()
		return Delta{}, false
	}

	switch side {
	case Bid:
		idx := bidSearch(b.bids, o.Price)
		if idx < len(b.bids) && b.bids[idx].price == o.Price {
			b.addToLevel(b.bids[idx], o)
		} else {
			b.evictWorstLevelIfFull(&b.bids, &b.bidCount)
			idx = bidSearch(b.bids, o.Price)
			lvl := newPriceLevel(o.Price)
			b.addToLevel(lvl, o)
			b.bids = insertLevel(b.bids, idx, lvl)
			b.bidCount.Add(1)
		}
		delta = Delta{Kind: DeltaAddBid, Price: o.Price, Size: o.Size, OrderID: o.ID}

	case Ask:
		idx := askSearch(b.asks, o.Price)
		if idx < len(b.asks) && b.asks[idx].price == o.Price {
			b.addToLevel(b.asks[idx], o)
		} else {
			b.evictWorstLevelIfFull(&b.asks, &b.askCount)
			idx = askSearch(b.asks, o.Price)
			lvl := newPriceLevel(o.Price)
			b.addToLevel(lvl, o)
			b.asks = insertLevel(b.asks, idx, lvl)
			b.askCount.Add(1)
		}
		delta = Delta{Kind: DeltaAddAsk, Price: o.Price, Size: o.Size, OrderID: o.ID}
	}

	b.totalOrders.Add(1)
	b.sequence.Add(1)
	b.mu.Unlock()
	return delta, true
}

// addToLevel appends the order, silently dropping the evicted-on-overflow
// order from the book's total count since it never counted twice.
func (b *Book) addToLevel(lvl *priceLevel, o Order) {
	if _, evicted := lvl.add(o, b.cfg.MaxOrdersPerLevel); evicted {
		b.totalOrders.Add(-1)
	}
}

// evictWorstLevelIfFull drops the worst-price level (tail of the slice,
// since each side is kept sorted best-first) to make room for a new level
// when the side is already at MAX_LEVELS_PER_SIDE.
func (b *Book) evictWorstLevelIfFull(levels *[]*priceLevel, count *atomic.Int64) {
	if b.cfg.MaxLevelsPerSide <= 0 || len(*levels) < b.cfg.MaxLevelsPerSide {
		return
	}
	worst := (*levels)[len(*levels)-1]
	b.totalOrders.Add(-int64(len(worst.orders)))
	*levels = (*levels)[:len(*levels)-1]
	count.Add(-1)
}

func insertLevel(levels []*priceLevel, idx int, lvl *priceLevel) []*priceLevel {
	levels = append(levels, nil)
	copy(levels[idx+1:], levels[idx:])
	levels[idx] = lvl
	return levels
}

// Remove deletes one order by id, price and side. ok is false if no such
// order was found (unknown order ids in remove are no-ops).
func (b *Book) Remove(orderID uint64, price float64, side Side) (delta Delta, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch side {
	case Bid:
		idx := bidSearch(b.bids, price)
		if idx >= len(b.bids) || b.bids[idx].price != price {
			return Delta{}, false
		}
		if !b.bids[idx].remove(orderID) {
			return Delta{}, false
		}
		b.totalOrders.Add(-1)
		if b.bids[idx].empty() {
			b.bids = append(b.bids[:idx], b.bids[idx+1:]...)
			b.bidCount.Add(-1)
		}
		delta = Delta{Kind: DeltaRemoveBid, Price: price, OrderID: orderID}

	case Ask:
		idx := askSearch(b.asks, price)
		if idx >= len(b.asks) || b.asks[idx].price != price {
			return Delta{}, false
		}
		if !b.asks[idx].remove(orderID) {
			return Delta{}, false
		}
		b.totalOrders.Add(-1)
		if b.asks[idx].empty() {
			b.asks = append(b.asks[:idx], b.asks[idx+1:]...)
			b.askCount.Add(-1)
		}
		delta = Delta{Kind: DeltaRemoveAsk, Price: price, OrderID: orderID}
	}

	b.sequence.Add(1)
	return delta, true
}

// Snapshot returns the top-depth (price, aggregate size) levels from each
// side. depth == 0 returns the full side.
func (b *Book) Snapshot(depth int) Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Snapshot{
		Bids: levelsToSlice(b.bids, depth),
		Asks: levelsToSlice(b.asks, depth),
	}
}

func levelsToSlice(levels []*priceLevel, depth int) []Level {
	n := len(levels)
	if depth > 0 && depth < n {
		n = depth
	}
	out := make([]Level, n)
	for i := 0; i < n; i++ {
		out[i] = Level{Price: levels[i].price, Size: levels[i].totalSize}
	}
	return out
}

// BestBidAsk returns the top of both sides, or ok=false if either is empty.
func (b *Book) BestBidAsk() (bid, ask float64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.bids) == 0 || len(b.asks) == 0 {
		return 0, 0, false
	}
	return b.bids[0].price, b.asks[0].price, true
}

// WalkForFill walks the given side from best price, accumulating size up
// to target, and returns the VWAP of the fill. ok is false if the side
// cannot fully fill target.
func (b *Book) WalkForFill(side Side, target float64) (vwap float64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var levels []*priceLevel
	switch side {
	case Bid:
		levels = b.bids
	case Ask:
		levels = b.asks
	}

	remaining := target
	notional := 0.0
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		take := lvl.totalSize
		if take > remaining {
			take = remaining
		}
		notional += take * lvl.price
		remaining -= take
	}
	if remaining > 0 {
		return 0, false
	}
	return notional / target, true
}

// Clear empties both sides and resets counters.
func (b *Book) Clear() Delta {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = nil
	b.asks = nil
	b.bidCount.Store(0)
	b.askCount.Store(0)
	b.totalOrders.Store(0)
	b.sequence.Add(1)
	return Delta{Kind: DeltaClear}
}
