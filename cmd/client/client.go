package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Illustrative CLI adapted from the teacher's flag-driven TCP client: same
// flag surface and "place"/"subscribe" action split, translated from the
// binary wire protocol to the REST/WS adapters in internal/net.
func main() {
	restAddr := flag.String("rest", "127.0.0.1:8080", "Address of the REST adapter")
	wsAddr := flag.String("ws", "127.0.0.1:9002", "Address of the WebSocket adapter")
	action := flag.String("action", "place", "Action to perform: ['place', 'subscribe']")

	symbol := flag.String("symbol", "AAPL", "Symbol to trade or subscribe to")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit', 'market', 'ioc', or 'fok'")
	price := flag.Float64("price", 100.0, "Limit price (ignored for market orders)")
	qty := flag.Float64("qty", 10, "Order quantity")

	flag.Parse()

	switch strings.ToLower(*action) {
	case "place":
		if err := placeOrder(*restAddr, *symbol, *typeStr, *sideStr, *price, *qty); err != nil {
			log.Fatalf("failed to place order: %v", err)
		}
	case "subscribe":
		if err := subscribe(*wsAddr, *symbol); err != nil {
			log.Fatalf("failed to subscribe: %v", err)
		}
	default:
		log.Fatalf("unknown action: %s", *action)
	}
}

func placeOrder(restAddr, symbol, orderType, side string, price, qty float64) error {
	body := map[string]interface{}{
		"symbol":     symbol,
		"order_type": orderType,
		"side":       side,
		"quantity":   qty,
	}
	if strings.ToLower(orderType) != "market" {
		body["price"] = price
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := http.Post(fmt.Sprintf("http://%s/orders", restAddr), "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}

	pretty, _ := json.MarshalIndent(decoded, "", "  ")
	fmt.Printf("-> %s %s %s %s qty=%.2f price=%.2f\nresponse: %s\n",
		strings.ToUpper(orderType), strings.ToUpper(side), symbol, strings.ToUpper(orderType), qty, price, pretty)
	return nil
}

func subscribe(wsAddr, symbol string) error {
	u := url.URL{Scheme: "ws", Host: wsAddr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"action": "subscribe", "symbol": symbol}); err != nil {
		return err
	}
	fmt.Printf("subscribed to %s on %s, listening for trade/depth frames (Ctrl+C to exit)\n", symbol, wsAddr)

	for {
		var frame map[string]interface{}
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		fmt.Printf("[%s] %v\n", time.Now().Format(time.RFC3339), frame)
	}
}
