package engine

import (
	"fmt"
	"time"
)

// Trade is produced during matching and is otherwise immutable once
// emitted. Price is always the maker's resting price (spec §3, "maker
// price rule"); quantity equals min(aggressor_remaining, maker_remaining)
// at the moment of the fill.
type Trade struct {
	ID            string
	Timestamp     time.Time
	Symbol        string
	Price         float64
	Quantity      float64
	AggressorSide Side
	MakerOrderID  string
	TakerOrderID  string
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{ID:%s Symbol:%s Price:%.8f Quantity:%.8f Aggressor:%s Maker:%s Taker:%s}",
		t.ID, t.Symbol, t.Price, t.Quantity, t.AggressorSide, t.MakerOrderID, t.TakerOrderID,
	)
}
