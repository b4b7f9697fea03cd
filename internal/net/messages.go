package net

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"matchcore/internal/engine"
)

// Wire-level JSON shapes for the REST and WebSocket adapters. Adapted from
// the teacher's internal/net/messages.go, which parsed a fixed-width binary
// frame; here the wire format is JSON (spec §6), so parsing is a field-by-
// field validation pass instead of a byte-offset decode.

var (
	// ErrMissingField is wrapped with the offending field name.
	ErrMissingField = errors.New("missing or invalid field")
	// ErrInvalidValue is wrapped with the offending field name.
	ErrInvalidValue = errors.New("invalid field value")
)

// wireTrade is the §6.3 execution document: one per fill, embedded in an
// order response's "executions" array and broadcast over the WS feed.
type wireTrade struct {
	TradeID       string  `json:"trade_id"`
	Timestamp     int64   `json:"timestamp"`
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Quantity      float64 `json:"quantity"`
	AggressorSide string  `json:"aggressor_side"`
	MakerOrderID  string  `json:"maker_order_id"`
	TakerOrderID  string  `json:"taker_order_id"`
}

func newWireTrade(t engine.Trade) wireTrade {
	return wireTrade{
		TradeID:       t.ID,
		Timestamp:     t.Timestamp.Unix(),
		Symbol:        t.Symbol,
		Price:         t.Price,
		Quantity:      t.Quantity,
		AggressorSide: t.AggressorSide.String(),
		MakerOrderID:  t.MakerOrderID,
		TakerOrderID:  t.TakerOrderID,
	}
}

// orderResponse is the §6.2 POST /orders success body.
type orderResponse struct {
	OrderID    string      `json:"order_id"`
	Status     string      `json:"status"`
	Message    string      `json:"message"`
	Executions []wireTrade `json:"executions"`
}

// errorResponse is the uniform {"error": "..."} shape used for every
// rejected request, matching the original REST adapter's error body.
type errorResponse struct {
	Error string `json:"error"`
}

// parseOrderRequest validates and converts a raw JSON order body into an
// engine.Order, following the exact field-by-field sequence of the original
// REST adapter: symbol, order_type, side, quantity, then the optional price,
// each checked for presence/type before the next is examined.
func parseOrderRequest(body map[string]interface{}) (*engine.Order, error) {
	symbol, ok := stringField(body, "symbol")
	if !ok || symbol == "" {
		return nil, fmt.Errorf("%w: 'symbol' (string)", ErrMissingField)
	}

	rawType, ok := stringField(body, "order_type")
	if !ok {
		return nil, fmt.Errorf("%w: 'order_type' (string)", ErrMissingField)
	}
	orderType, err := engine.ParseOrderType(rawType)
	if err != nil {
		return nil, fmt.Errorf("%w: 'order_type' (must be limit, market, ioc, fok)", ErrInvalidValue)
	}

	rawSide, ok := stringField(body, "side")
	if !ok {
		return nil, fmt.Errorf("%w: 'side' (string)", ErrMissingField)
	}
	side, err := engine.ParseSide(rawSide)
	if err != nil {
		return nil, fmt.Errorf("%w: 'side' (must be buy or sell)", ErrInvalidValue)
	}

	rawQuantity, ok := body["quantity"]
	if !ok {
		return nil, fmt.Errorf("%w: 'quantity' (string or number)", ErrMissingField)
	}
	quantity, err := numericField(rawQuantity)
	if err != nil {
		return nil, fmt.Errorf("%w: 'quantity' value", ErrInvalidValue)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: 'quantity' must be positive", ErrInvalidValue)
	}

	var price float64
	if rawPrice, ok := body["price"]; ok {
		price, err = numericField(rawPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: 'price' value", ErrInvalidValue)
		}
		if price < 0 {
			return nil, fmt.Errorf("%w: 'price' must be non-negative", ErrInvalidValue)
		}
	}

	return &engine.Order{
		ID:        engine.NewOrderID(),
		Symbol:    symbol,
		Type:      orderType,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		Timestamp: engine.Now(),
		Status:    engine.New,
	}, nil
}

func stringField(body map[string]interface{}, key string) (string, bool) {
	v, ok := body[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// numericField accepts either a JSON number or a numeric string, mirroring
// the original adapter's is_string()||is_number() acceptance of quantity
// and price.
func numericField(v interface{}) (float64, error) {
	switch value := v.(type) {
	case float64:
		return value, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(value), 64)
	default:
		return 0, errors.New("unsupported type")
	}
}
