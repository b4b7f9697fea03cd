package engine_test

import (
	"testing"
	"time"

	"matchcore/internal/engine"

	"github.com/stretchr/testify/assert"
)

func restingOrder(side engine.Side, price, qty float64) *engine.Order {
	return &engine.Order{
		ID:        "resting-" + side.String(),
		Symbol:    "AAPL",
		Type:      engine.Limit,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		Timestamp: time.Now().UTC(),
		Status:    engine.New,
	}
}

func TestBook_EmptyBBOIsZero(t *testing.T) {
	book := engine.NewBook("AAPL")
	bid, ask := book.BBO()
	assert.Equal(t, 0.0, bid)
	assert.Equal(t, 0.0, ask)
}

func TestBook_AddUpdatesBBOAndDepth(t *testing.T) {
	book := engine.NewBook("AAPL")

	book.Add(restingOrder(engine.Buy, 99.0, 100))
	book.Add(restingOrder(engine.Buy, 98.0, 50))
	book.Add(restingOrder(engine.Sell, 101.0, 70))

	bid, ask := book.BBO()
	assert.Equal(t, 99.0, bid)
	assert.Equal(t, 101.0, ask)

	bids := book.Depth(engine.Buy, 10)
	assert.Equal(t, []engine.DepthLevel{
		{Price: 99.0, Quantity: 100},
		{Price: 98.0, Quantity: 50},
	}, bids)

	asks := book.Depth(engine.Sell, 10)
	assert.Equal(t, []engine.DepthLevel{{Price: 101.0, Quantity: 70}}, asks)
}

func TestBook_DepthAggregatesSamePriceLevel(t *testing.T) {
	book := engine.NewBook("AAPL")
	book.Add(restingOrder(engine.Buy, 99.0, 100))
	o2 := restingOrder(engine.Buy, 99.0, 40)
	o2.ID = "resting-2"
	book.Add(o2)

	bids := book.Depth(engine.Buy, 10)
	assert.Equal(t, []engine.DepthLevel{{Price: 99.0, Quantity: 140}}, bids)
}

func TestBook_DepthRespectsLevelCap(t *testing.T) {
	book := engine.NewBook("AAPL")
	book.Add(restingOrder(engine.Buy, 99.0, 10))
	book.Add(restingOrder(engine.Buy, 98.0, 10))
	book.Add(restingOrder(engine.Buy, 97.0, 10))

	top := book.Depth(engine.Buy, 2)
	assert.Len(t, top, 2)
	assert.Equal(t, 99.0, top[0].Price)
	assert.Equal(t, 98.0, top[1].Price)
}

func TestBook_RemoveMissingOrderIsNoop(t *testing.T) {
	book := engine.NewBook("AAPL")
	book.Add(restingOrder(engine.Buy, 99.0, 10))

	assert.NotPanics(t, func() {
		book.Remove("does-not-exist", engine.Buy, 99.0)
	})
	bids := book.Depth(engine.Buy, 10)
	assert.Equal(t, []engine.DepthLevel{{Price: 99.0, Quantity: 10}}, bids)
}

func TestBook_RemoveEvictsEmptyLevel(t *testing.T) {
	book := engine.NewBook("AAPL")
	o := restingOrder(engine.Buy, 99.0, 10)
	o.ID = "only-order"
	book.Add(o)

	book.Remove("only-order", engine.Buy, 99.0)

	assert.Empty(t, book.Depth(engine.Buy, 10))
	bid, _ := book.BBO()
	assert.Equal(t, 0.0, bid)
}

func TestBook_SnapshotReturnsBothSidesUncapped(t *testing.T) {
	book := engine.NewBook("AAPL")
	for i := 0; i < 30; i++ {
		o := restingOrder(engine.Buy, 100.0-float64(i), 1)
		o.ID = "bid"
		book.Add(o)
	}

	snap := book.Snapshot()
	assert.Equal(t, "AAPL", snap.Symbol)
	assert.Len(t, snap.Bids, 30)
	assert.Empty(t, snap.Asks)
}

func TestBook_OnChangeFiresOnAddAndRemove(t *testing.T) {
	book := engine.NewBook("AAPL")
	var fired int
	book.SetOnChange(func(engine.MarketDepth) { fired++ })

	o := restingOrder(engine.Buy, 99.0, 10)
	book.Add(o)
	book.Remove(o.ID, engine.Buy, 99.0)

	assert.Equal(t, 2, fired)
}
