package engine

import (
	"fmt"
	"time"
)

// Order is an immutable identity plus mutable quantity and status. It is
// handed to the engine once; if a residual rests on the book, the book
// owns and mutates its own clone from that point on (see matchLimit).
type Order struct {
	ID        string    // unique within the lifetime of the engine
	Symbol    string    // instrument identifier
	Type      OrderType // LIMIT, MARKET, IOC, or FOK
	Side      Side      // BUY or SELL
	Price     float64   // meaningful only when Type != Market
	Quantity  float64   // remaining open quantity
	Timestamp time.Time // arrival time; copied onto trades (FIFO within a level is insertion order)
	Status    Status
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order{ID:%s Symbol:%s Type:%s Side:%s Price:%.8f Quantity:%.8f Status:%s}",
		o.ID, o.Symbol, o.Type, o.Side, o.Price, o.Quantity, o.Status,
	)
}

// Clone returns a copy of the order suitable for the book to take
// ownership of when a LIMIT residual rests.
func (o Order) Clone() *Order {
	clone := o
	return &clone
}
