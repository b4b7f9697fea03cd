package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"
)

var (
	// ErrUnknownOrderType is returned by ProcessOrder for a type value
	// that bypassed adapter-level validation (spec §7: UnknownOrderType).
	ErrUnknownOrderType = errors.New("engine: unknown order type")
	// ErrInvalidSymbol is returned for an empty symbol.
	ErrInvalidSymbol = errors.New("engine: invalid symbol")
)

// TradeFunc is invoked once per emitted trade, in emission order,
// synchronously while the owning book's lock is held.
type TradeFunc func(Trade)

// Engine owns one Book per symbol and implements the four order-type
// matching procedures. A symbol's book is created lazily on first use and
// lives for the engine's lifetime.
type Engine struct {
	booksMu sync.RWMutex
	books   map[string]*Book

	onTradeMu sync.RWMutex
	onTrade   TradeFunc
}

// New constructs an empty engine.
func New() *Engine {
	return &Engine{books: make(map[string]*Book)}
}

// SetOnTrade registers fn to be called for every trade ProcessOrder emits.
func (e *Engine) SetOnTrade(fn TradeFunc) {
	e.onTradeMu.Lock()
	defer e.onTradeMu.Unlock()
	e.onTrade = fn
}

// Book returns the book for symbol, creating it if this is the first
// order seen for that symbol. Safe for concurrent use across symbols.
func (e *Engine) Book(symbol string) *Book {
	e.booksMu.RLock()
	book, ok := e.books[symbol]
	e.booksMu.RUnlock()
	if ok {
		return book
	}

	e.booksMu.Lock()
	defer e.booksMu.Unlock()
	// Re-check: another goroutine may have created it between the
	// read-unlock above and this write-lock (spec §5's named race gap).
	if book, ok = e.books[symbol]; ok {
		return book
	}
	book = NewBook(symbol)
	e.books[symbol] = book
	return book
}

// Books returns a snapshot of the symbol->book map, for market-data
// consumers that need to enumerate every known symbol.
func (e *Engine) Books() map[string]*Book {
	e.booksMu.RLock()
	defer e.booksMu.RUnlock()
	out := make(map[string]*Book, len(e.books))
	for symbol, book := range e.books {
		out[symbol] = book
	}
	return out
}

// ProcessOrder dispatches order to its type-specific matching procedure
// and returns every trade it produced, in emission order. order is
// mutated in place to reflect its final Quantity and Status.
func (e *Engine) ProcessOrder(order *Order) ([]Trade, error) {
	if order.Symbol == "" {
		return nil, ErrInvalidSymbol
	}
	book := e.Book(order.Symbol)

	e.onTradeMu.RLock()
	cb := e.onTrade
	e.onTradeMu.RUnlock()

	book.mu.Lock()
	defer book.mu.Unlock()
	var trades []Trade
	switch order.Type {
	case Market:
		trades = matchMarket(book, order)
	case Limit:
		trades = matchLimit(book, order)
	case IOC:
		trades = matchIOC(book, order)
	case FOK:
		trades = matchFOK(book, order)
	default:
		return nil, ErrUnknownOrderType
	}
	// Matching touches the book's levels directly (addLocked/sweep) rather
	// than through Add/Remove, so the BBO cache is refreshed and the change
	// notification fires once here instead of per-level.
	book.updateBBOLocked()
	book.notifyLocked()

	// Invoked while book.mu is still held (spec §5): callbacks must not
	// block or call back into the engine for this symbol.
	if cb != nil {
		for _, t := range trades {
			cb(t)
		}
	}
	return trades, nil
}

// newTrade builds a trade record for one fill: price from the maker,
// quantity the fill size, aggressor/maker/taker identities per spec §3.
func newTrade(symbol string, maker, taker *Order, fill float64) Trade {
	return Trade{
		ID:            uuid.NewString(),
		Timestamp:     taker.Timestamp,
		Symbol:        symbol,
		Price:         maker.Price,
		Quantity:      fill,
		AggressorSide: taker.Side,
		MakerOrderID:  maker.ID,
		TakerOrderID:  taker.ID,
	}
}

// sweep consumes resting liquidity from levels (the side opposite
// incoming) while guard(levelPrice) holds and incoming still has
// remaining quantity. It applies the common fill skeleton from spec
// §4.3 steps 1-6: pop the head maker, fill min(remaining, head), update
// statuses, evict exhausted makers and empty levels. book.mu must already
// be held by the caller. Returns the trades emitted, in order.
func sweep(levels *btree.BTreeG[*PriceLevel], symbol string, incoming *Order, guard func(price float64) bool) []Trade {
	var trades []Trade
	for incoming.Quantity > 0 {
		top, ok := levels.Min()
		if !ok {
			break
		}
		if !guard(top.Price) {
			break
		}

		consumed := 0
		for consumed < len(top.Orders) && incoming.Quantity > 0 {
			maker := top.Orders[consumed]
			fill := incoming.Quantity
			if maker.Quantity < fill {
				fill = maker.Quantity
			}

			trades = append(trades, newTrade(symbol, maker, incoming, fill))
			incoming.Quantity -= fill
			maker.Quantity -= fill
			if maker.Quantity == 0 {
				maker.Status = Filled
				consumed++
			} else {
				maker.Status = PartiallyFilled
			}
		}

		if consumed > 0 {
			top.Orders = top.Orders[consumed:]
		}
		if len(top.Orders) == 0 {
			levels.Delete(top)
		}
	}
	return trades
}

// oppositeLevels returns the book side incoming matches against.
func oppositeLevels(book *Book, incoming *Order) *btree.BTreeG[*PriceLevel] {
	if incoming.Side == Buy {
		return book.asks
	}
	return book.bids
}

func noGuard(float64) bool { return true }

// limitGuard implements spec §4.3's "stop scanning level" rule shared by
// LIMIT, IOC, and FOK: a BUY stops once the ask price exceeds its limit,
// a SELL once the bid price drops below it.
func limitGuard(incoming *Order) func(float64) bool {
	if incoming.Side == Buy {
		return func(price float64) bool { return price <= incoming.Price }
	}
	return func(price float64) bool { return price >= incoming.Price }
}

func matchMarket(book *Book, order *Order) []Trade {
	initial := order.Quantity
	trades := sweep(oppositeLevels(book, order), book.Symbol, order, noGuard)
	switch {
	case order.Quantity == 0:
		order.Status = Filled
	case order.Quantity < initial:
		order.Status = PartiallyFilled
	default:
		// No liquidity at all: spec §4.3 preserves NEW rather than
		// auto-cancelling (see SPEC_FULL.md Open Questions).
		order.Status = New
	}
	return trades
}

func matchLimit(book *Book, order *Order) []Trade {
	initial := order.Quantity
	trades := sweep(oppositeLevels(book, order), book.Symbol, order, limitGuard(order))
	if order.Quantity > 0 {
		if order.Quantity < initial {
			order.Status = PartiallyFilled
		} else {
			order.Status = New
		}
		book.addLocked(order.Clone())
	} else {
		order.Status = Filled
	}
	return trades
}

func matchIOC(book *Book, order *Order) []Trade {
	initial := order.Quantity
	trades := sweep(oppositeLevels(book, order), book.Symbol, order, limitGuard(order))
	switch {
	case order.Quantity == 0:
		order.Status = Filled
	case order.Quantity < initial:
		order.Status = PartiallyFilled
	default:
		order.Status = Cancelled
	}
	return trades
}

// feasible sums available opposite-side quantity, respecting the same
// price guard a LIMIT/IOC order would use, until it reaches need or the
// book runs out. It never mutates the book (spec §4.3 FOK feasibility).
func feasible(book *Book, order *Order, need float64) bool {
	levels := oppositeLevels(book, order)
	guard := limitGuard(order)
	var available float64
	levels.Scan(func(level *PriceLevel) bool {
		if !guard(level.Price) {
			return false
		}
		available += level.totalQuantity()
		return available < need
	})
	return available >= need
}

func matchFOK(book *Book, order *Order) []Trade {
	if !feasible(book, order, order.Quantity) {
		order.Status = Cancelled
		return nil
	}
	trades := sweep(oppositeLevels(book, order), book.Symbol, order, limitGuard(order))
	order.Status = Filled
	return trades
}

// NewOrderID is a convenience for adapters that need to stamp an order
// before calling ProcessOrder.
func NewOrderID() string { return uuid.NewString() }

// Now returns the current UTC time, for stamping an order's Timestamp field.
func Now() time.Time { return time.Now().UTC() }
