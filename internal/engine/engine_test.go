package engine_test

import (
	"testing"
	"time"

	"matchcore/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(symbol string, typ engine.OrderType, side engine.Side, price, qty float64) *engine.Order {
	return &engine.Order{
		ID:        engine.NewOrderID(),
		Symbol:    symbol,
		Type:      typ,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		Timestamp: time.Now().UTC(),
		Status:    engine.New,
	}
}

func TestProcessOrder_InvalidSymbol(t *testing.T) {
	eng := engine.New()
	_, err := eng.ProcessOrder(newOrder("", engine.Limit, engine.Buy, 10, 5))
	assert.ErrorIs(t, err, engine.ErrInvalidSymbol)
}

func TestProcessOrder_UnknownOrderType(t *testing.T) {
	eng := engine.New()
	order := newOrder("AAPL", engine.OrderType(99), engine.Buy, 10, 5)
	_, err := eng.ProcessOrder(order)
	assert.ErrorIs(t, err, engine.ErrUnknownOrderType)
}

func TestProcessOrder_Limit_RestsWhenBookEmpty(t *testing.T) {
	eng := engine.New()
	trades, err := eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Buy, 99.0, 10))
	require.NoError(t, err)
	assert.Empty(t, trades)

	book := eng.Book("AAPL")
	bid, _ := book.BBO()
	assert.Equal(t, 99.0, bid)
}

func TestProcessOrder_Limit_PartialFillThenRestsResidual(t *testing.T) {
	eng := engine.New()
	_, err := eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Sell, 100.0, 30))
	require.NoError(t, err)

	trades, err := eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Buy, 100.0, 50))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 30.0, trades[0].Quantity)
	assert.Equal(t, 100.0, trades[0].Price)

	book := eng.Book("AAPL")
	bid, ask := book.BBO()
	assert.Equal(t, 100.0, bid) // residual 20 now rests on the bid side
	assert.Equal(t, 0.0, ask)   // ask side fully consumed
}

func TestProcessOrder_Market_WalksMultipleLevels(t *testing.T) {
	eng := engine.New()
	_, err := eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Sell, 100.0, 10))
	require.NoError(t, err)
	_, err = eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Sell, 101.0, 10))
	require.NoError(t, err)

	trades, err := eng.ProcessOrder(newOrder("AAPL", engine.Market, engine.Buy, 0, 15))
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, 10.0, trades[0].Quantity)
	assert.Equal(t, 100.0, trades[0].Price)
	assert.Equal(t, 5.0, trades[1].Quantity)
	assert.Equal(t, 101.0, trades[1].Price)
}

func TestProcessOrder_Market_NoLiquidityStaysNew(t *testing.T) {
	eng := engine.New()
	order := newOrder("AAPL", engine.Market, engine.Buy, 0, 10)
	trades, err := eng.ProcessOrder(order)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, engine.New, order.Status)
}

func TestProcessOrder_IOC_PartialFillCancelsResidual(t *testing.T) {
	eng := engine.New()
	_, err := eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Sell, 100.0, 10))
	require.NoError(t, err)

	order := newOrder("AAPL", engine.IOC, engine.Buy, 100.0, 30)
	trades, err := eng.ProcessOrder(order)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 10.0, trades[0].Quantity)
	assert.Equal(t, engine.PartiallyFilled, order.Status)

	// the residual must not rest: book's bid side stays empty
	book := eng.Book("AAPL")
	bid, _ := book.BBO()
	assert.Equal(t, 0.0, bid)
}

func TestProcessOrder_IOC_NoFillIsCancelled(t *testing.T) {
	eng := engine.New()
	order := newOrder("AAPL", engine.IOC, engine.Buy, 100.0, 10)
	trades, err := eng.ProcessOrder(order)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, engine.Cancelled, order.Status)
}

func TestProcessOrder_FOK_InfeasibleIsCancelledWithoutMutatingBook(t *testing.T) {
	eng := engine.New()
	_, err := eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Sell, 100.0, 10))
	require.NoError(t, err)

	order := newOrder("AAPL", engine.FOK, engine.Buy, 100.0, 30)
	trades, err := eng.ProcessOrder(order)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, engine.Cancelled, order.Status)

	book := eng.Book("AAPL")
	asks := book.Depth(engine.Sell, 10)
	assert.Equal(t, []engine.DepthLevel{{Price: 100.0, Quantity: 10}}, asks)
}

func TestProcessOrder_FOK_FeasibleFillsCompletely(t *testing.T) {
	eng := engine.New()
	_, err := eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Sell, 100.0, 10))
	require.NoError(t, err)
	_, err = eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Sell, 101.0, 20))
	require.NoError(t, err)

	order := newOrder("AAPL", engine.FOK, engine.Buy, 101.0, 30)
	trades, err := eng.ProcessOrder(order)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, engine.Filled, order.Status)

	book := eng.Book("AAPL")
	assert.Empty(t, book.Depth(engine.Sell, 10))
}

func TestProcessOrder_FIFOWithinLevel(t *testing.T) {
	eng := engine.New()
	first := newOrder("AAPL", engine.Limit, engine.Sell, 100.0, 10)
	_, err := eng.ProcessOrder(first)
	require.NoError(t, err)
	second := newOrder("AAPL", engine.Limit, engine.Sell, 100.0, 10)
	_, err = eng.ProcessOrder(second)
	require.NoError(t, err)

	trades, err := eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Buy, 100.0, 15))
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, first.ID, trades[0].MakerOrderID)
	assert.Equal(t, 10.0, trades[0].Quantity)
	assert.Equal(t, second.ID, trades[1].MakerOrderID)
	assert.Equal(t, 5.0, trades[1].Quantity)
}

func TestProcessOrder_NoTradeThroughBetterPrice(t *testing.T) {
	eng := engine.New()
	_, err := eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Sell, 100.0, 10))
	require.NoError(t, err)
	_, err = eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Sell, 105.0, 10))
	require.NoError(t, err)

	// A limit buy below the best ask must not trade at all.
	trades, err := eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Buy, 99.0, 5))
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestProcessOrder_OnTradeCallbackFiresPerTrade(t *testing.T) {
	eng := engine.New()
	var seen []engine.Trade
	eng.SetOnTrade(func(t engine.Trade) { seen = append(seen, t) })

	_, err := eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Sell, 100.0, 10))
	require.NoError(t, err)
	_, err = eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Buy, 100.0, 10))
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, 10.0, seen[0].Quantity)
}

func TestProcessOrder_Market_FractionalQuantityWalksLevels(t *testing.T) {
	eng := engine.New()
	_, err := eng.ProcessOrder(newOrder("BTCUSD", engine.Limit, engine.Buy, 50000, 1.0))
	require.NoError(t, err)
	_, err = eng.ProcessOrder(newOrder("BTCUSD", engine.Limit, engine.Buy, 49900, 2.0))
	require.NoError(t, err)

	order := newOrder("BTCUSD", engine.Market, engine.Sell, 0, 2.5)
	trades, err := eng.ProcessOrder(order)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, 1.0, trades[0].Quantity)
	assert.Equal(t, 50000.0, trades[0].Price)
	assert.Equal(t, 1.5, trades[1].Quantity)
	assert.Equal(t, 49900.0, trades[1].Price)
	assert.Equal(t, engine.Filled, order.Status)

	book := eng.Book("BTCUSD")
	bid, _ := book.BBO()
	assert.Equal(t, 49900.0, bid)
	bids := book.Depth(engine.Buy, 10)
	require.Len(t, bids, 1)
	assert.Equal(t, 0.5, bids[0].Quantity)
}

func TestProcessOrder_NoTradeThroughFillsBestAskFirst(t *testing.T) {
	eng := engine.New()
	_, err := eng.ProcessOrder(newOrder("BTCUSD", engine.Limit, engine.Sell, 49900, 1.0))
	require.NoError(t, err)
	_, err = eng.ProcessOrder(newOrder("BTCUSD", engine.Limit, engine.Sell, 50000, 1.0))
	require.NoError(t, err)

	trades, err := eng.ProcessOrder(newOrder("BTCUSD", engine.Limit, engine.Buy, 50000, 1.0))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 49900.0, trades[0].Price)
	assert.Equal(t, 1.0, trades[0].Quantity)

	book := eng.Book("BTCUSD")
	_, ask := book.BBO()
	assert.Equal(t, 50000.0, ask)
}

func TestEngine_BooksAreIndependentPerSymbol(t *testing.T) {
	eng := engine.New()
	_, err := eng.ProcessOrder(newOrder("AAPL", engine.Limit, engine.Buy, 99.0, 10))
	require.NoError(t, err)
	_, err = eng.ProcessOrder(newOrder("MSFT", engine.Limit, engine.Buy, 50.0, 10))
	require.NoError(t, err)

	books := eng.Books()
	require.Len(t, books, 2)
	aaplBid, _ := books["AAPL"].BBO()
	msftBid, _ := books["MSFT"].BBO()
	assert.Equal(t, 99.0, aaplBid)
	assert.Equal(t, 50.0, msftBid)
}
