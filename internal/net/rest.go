package net

import (
	"encoding/json"
	"net/http"
	"strconv"

	"matchcore/internal/engine"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const defaultDepthLevels = 20

// routes builds the REST mux for /orders, /symbols/{symbol}/depth, and
// /symbols/{symbol}/snapshot (spec §6.2, §6.4), grounded on the original
// adapter's single-handler RestServer.cpp, split one handler per route in
// the teacher's http.Handler idiom.
func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/orders", s.handleOrders).Methods(http.MethodPost)
	r.HandleFunc("/orders", corsPreflight).Methods(http.MethodOptions)
	r.HandleFunc("/symbols/{symbol}/depth", s.handleDepth).Methods(http.MethodGet)
	r.HandleFunc("/symbols/{symbol}/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	return r
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func corsPreflight(w http.ResponseWriter, _ *http.Request) {
	setCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

// handleOrders parses, validates, and submits a new order, returning its
// immediate fills. Field order mirrors the original adapter exactly:
// symbol, order_type, side, quantity, then price.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Error().Err(err).Msg("order rejected: malformed json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	order, err := parseOrderRequest(body)
	if err != nil {
		log.Error().Err(err).Msg("order rejected")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("type", order.Type.String()).
		Str("side", order.Side.String()).
		Float64("quantity", order.Quantity).
		Float64("price", order.Price).
		Msg("order received")

	s.book(order.Symbol) // ensures depth-change notifications are wired before matching

	trades, err := s.engine.ProcessOrder(order)
	if err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("order rejected by engine")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	executions := make([]wireTrade, 0, len(trades))
	for _, t := range trades {
		executions = append(executions, newWireTrade(t))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(orderResponse{
		OrderID:    order.ID,
		Status:     "success",
		Message:    "Order submitted successfully",
		Executions: executions,
	})
}

// handleDepth returns the top ?levels aggregated price levels for
// {symbol}'s book, or a default depth if ?levels is absent/invalid.
func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	levels := defaultDepthLevels
	if raw := r.URL.Query().Get("levels"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			levels = n
		}
	}

	book := s.book(symbol)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(book.MarketDepth(levels))
}

// handleSnapshot returns the full, uncapped book for {symbol}.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	book := s.book(symbol)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(book.Snapshot())
}

// Engine is the subset of *engine.Engine the net adapters depend on,
// narrowed to keep this package decoupled from matching internals (spec §5
// treats REST/WS as external collaborators of the engine).
type Engine interface {
	ProcessOrder(order *engine.Order) ([]engine.Trade, error)
	SetOnTrade(fn engine.TradeFunc)
	Book(symbol string) *engine.Book
	Books() map[string]*engine.Book
}
