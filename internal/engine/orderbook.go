package engine

import (
	"sync"
	"time"

	"github.com/tidwall/btree"
)

// PriceLevel holds every resting order at a single price, in FIFO
// (insertion) order. Orders[0] is always the next to match.
type PriceLevel struct {
	Price  float64
	Orders []*Order
}

func (l *PriceLevel) totalQuantity() float64 {
	var total float64
	for _, o := range l.Orders {
		total += o.Quantity
	}
	return total
}

// DepthLevel is one row of an aggregated depth query: a price and the
// summed remaining quantity of every order resting at it.
type DepthLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// DefaultDepthLevels bounds the depth document notifyLocked builds for the
// onChange hook when the caller hasn't asked for a specific page (spec §6.4
// leaves the push feed's level count up to the implementation).
const DefaultDepthLevels = 20

// MarketDepth is the §6.4 depth document: top-N levels per side plus a
// server-generated timestamp.
type MarketDepth struct {
	Timestamp time.Time    `json:"timestamp"`
	Symbol    string       `json:"symbol"`
	Bids      []DepthLevel `json:"bids"`
	Asks      []DepthLevel `json:"asks"`
}

// Snapshot is the §6.4 snapshot document: the full book, no timestamp.
type Snapshot struct {
	Symbol string       `json:"symbol"`
	Bids   []DepthLevel `json:"bids"`
	Asks   []DepthLevel `json:"asks"`
}

// Book is one symbol's resting liquidity: two price-indexed queues of
// orders, a cached best bid/offer, and a change-notification hook. All
// mutating and reading operations take the book's own lock (spec §5); the
// matching engine locks once per ProcessOrder call and drives the btrees
// directly rather than re-entering Book's exported methods, since those
// also lock and would deadlock mid-match.
type Book struct {
	mu       sync.Mutex
	Symbol   string
	bids     *btree.BTreeG[*PriceLevel] // ordered highest price first
	asks     *btree.BTreeG[*PriceLevel] // ordered lowest price first
	bestBid  float64
	bestAsk  float64
	onChange func(MarketDepth)
}

// NewBook constructs an empty book for symbol.
func NewBook(symbol string) *Book {
	return &Book{
		Symbol: symbol,
		bids: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price > b.Price
		}),
		asks: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price < b.Price
		}),
	}
}

// SetOnChange replaces the notification sink invoked on every add/remove.
// fn receives a depth document computed while the book's lock is still
// held, so fn itself must not call back into this Book (spec §4.2).
func (b *Book) SetOnChange(fn func(MarketDepth)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Add appends order to the appropriate side's queue at order.Price,
// updating the BBO cache and firing onChange.
func (b *Book) Add(order *Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addLocked(order)
	b.notifyLocked()
}

// addLocked assumes b.mu is already held (used mid-match, when a LIMIT
// residual rests after the engine has already locked the book).
func (b *Book) addLocked(order *Order) {
	levels := b.levelsLocked(order.Side)
	level, ok := levels.GetMut(&PriceLevel{Price: order.Price})
	if !ok {
		level = &PriceLevel{Price: order.Price}
		levels.Set(level)
	}
	level.Orders = append(level.Orders, order)
	b.updateBBOLocked()
}

// Remove deletes the resting order identified by orderID from side at
// price. A missing order is a no-op (spec §4.2: "no error if absent").
func (b *Book) Remove(orderID string, side Side, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(orderID, side, price)
	b.notifyLocked()
}

func (b *Book) removeLocked(orderID string, side Side, price float64) {
	levels := b.levelsLocked(side)
	level, ok := levels.GetMut(&PriceLevel{Price: price})
	if !ok {
		return
	}
	kept := level.Orders[:0]
	for _, o := range level.Orders {
		if o.ID != orderID {
			kept = append(kept, o)
		}
	}
	if len(kept) == 0 {
		levels.Delete(&PriceLevel{Price: price})
	} else {
		level.Orders = kept
	}
	b.updateBBOLocked()
}

// levelsLocked returns the resting side (own side, not the matching
// opposite) for order placement/removal. Assumes b.mu held.
func (b *Book) levelsLocked(side Side) *btree.BTreeG[*PriceLevel] {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

func (b *Book) updateBBOLocked() {
	if top, ok := b.bids.Min(); ok {
		b.bestBid = top.Price
	} else {
		b.bestBid = 0
	}
	if top, ok := b.asks.Min(); ok {
		b.bestAsk = top.Price
	} else {
		b.bestAsk = 0
	}
}

// notifyLocked computes a depth document from the level queues it already
// holds the lock over, then hands it to onChange without re-locking —
// onChange used to call back into MarketDepth/Depth, which re-took b.mu
// and deadlocked on the non-reentrant sync.Mutex the first time it fired
// mid-match (spec §4.2's "must not re-enter the same book" warning).
func (b *Book) notifyLocked() {
	if b.onChange == nil {
		return
	}
	b.onChange(MarketDepth{
		Timestamp: time.Now().UTC(),
		Symbol:    b.Symbol,
		Bids:      b.depthLocked(Buy, DefaultDepthLevels),
		Asks:      b.depthLocked(Sell, DefaultDepthLevels),
	})
}

// BBO returns the cached best bid and best offer; 0 denotes an empty side.
func (b *Book) BBO() (bestBid, bestAsk float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bestBid, b.bestAsk
}

// Depth returns up to n aggregated price levels for side, in book order
// (bids descending, asks ascending). It reads through the level queues
// without mutating them.
func (b *Book) Depth(side Side, n int) []DepthLevel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depthLocked(side, n)
}

func (b *Book) depthLocked(side Side, n int) []DepthLevel {
	levels := b.levelsLocked(side)
	out := make([]DepthLevel, 0, n)
	levels.Scan(func(level *PriceLevel) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, DepthLevel{Price: level.Price, Quantity: level.totalQuantity()})
		return true
	})
	return out
}

// MarketDepth returns the top-n levels of both sides plus a
// server-generated timestamp (spec §6.4).
func (b *Book) MarketDepth(n int) MarketDepth {
	b.mu.Lock()
	defer b.mu.Unlock()
	return MarketDepth{
		Timestamp: time.Now().UTC(),
		Symbol:    b.Symbol,
		Bids:      b.depthLocked(Buy, n),
		Asks:      b.depthLocked(Sell, n),
	}
}

// Snapshot returns the full book, both sides, with no depth cap.
func (b *Book) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Symbol: b.Symbol,
		Bids:   b.depthLocked(Buy, b.bids.Len()),
		Asks:   b.depthLocked(Sell, b.asks.Len()),
	}
}
