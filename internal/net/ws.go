package net

import (
	"encoding/json"
	"net/http"
	"sync"

	"matchcore/internal/engine"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClientMessage is the only inbound shape the WS feed understands: a
// per-symbol subscribe/unsubscribe request. The original WebSocketServer.cpp
// left subscription framing to its caller (registerHandlers' "rest of the
// implementation" was never retrieved); this shape is this adapter's own.
type wsClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Symbol string `json:"symbol"`
}

type wsFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// wsErrorFrame is the {"type":"error","message":"..."} frame sent back for
// a request the feed cannot handle.
type wsErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorFrame(msg string) wsErrorFrame {
	return wsErrorFrame{Type: "error", Message: msg}
}

// connection is one subscriber's WS session: its socket plus the set of
// symbols it currently wants pushed to it.
type connection struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	subs   map[string]bool
	closed bool
}

func (c *connection) isSubscribed(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[symbol]
}

func (c *connection) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.conn.WriteJSON(v)
}

// hub tracks every live WS connection so trade/depth callbacks from the
// engine can be fanned out to whichever subscribers want them.
type hub struct {
	mu    sync.RWMutex
	conns map[*connection]struct{}
}

func newHub() *hub {
	return &hub{conns: make(map[*connection]struct{})}
}

func (h *hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// broadcastTrade pushes t to every connection subscribed to its symbol.
// Registered as the engine's TradeFunc, so it runs synchronously while the
// trade's book lock is held (spec §5) — sends must not block on a slow
// reader, which is why WriteJSON contends only a per-connection mutex.
func (h *hub) broadcastTrade(t engine.Trade) {
	frame := wsFrame{Type: "trade", Data: newWireTrade(t)}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		if !c.isSubscribed(t.Symbol) {
			continue
		}
		if err := c.send(frame); err != nil {
			log.Error().Err(err).Msg("error broadcasting trade")
		}
	}
}

// broadcastDepth pushes symbol's current top-of-book depth to every
// subscriber. Wired as a book's onChange hook (spec §4.2).
func (h *hub) broadcastDepth(depth engine.MarketDepth) {
	frame := wsFrame{Type: "depth", Data: depth}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		if !c.isSubscribed(depth.Symbol) {
			continue
		}
		if err := c.send(frame); err != nil {
			log.Error().Err(err).Msg("error broadcasting depth")
		}
	}
}

// handleWS upgrades the request to a WebSocket and hands the resulting
// connection to the worker pool's read loop (handleWSConnection).
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &connection{conn: conn, subs: make(map[string]bool)}
	s.hub.register(c)
	log.Info().Msg("new websocket connection established")
	s.pool.AddTask(c)
}

// handleWSConnection is the WorkerFunction driving one connection's
// subscribe/unsubscribe read loop until it closes or t dies. Adapted from
// the teacher's handleConnection: a short-lived worker re-queues the
// connection via pool.AddTask after each message instead of looping inline.
// ReadJSON blocks until the connection's next message arrives, so a worker
// stays occupied by an idle connection while it waits; once every worker is
// held this way, queued connections are not read until one of those sends.
func (s *Server) handleWSConnection(t *tomb.Tomb, task any) error {
	c, ok := task.(*connection)
	if !ok {
		return ErrImproperConversion
	}

	select {
	case <-t.Dying():
		return nil
	default:
	}

	var msg wsClientMessage
	if err := c.conn.ReadJSON(&msg); err != nil {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		s.hub.unregister(c)
		_ = c.conn.Close()
		log.Info().Msg("websocket connection closed")
		return nil
	}

	switch msg.Action {
	case "subscribe":
		s.book(msg.Symbol) // ensures depth-change notifications are wired
		c.mu.Lock()
		c.subs[msg.Symbol] = true
		c.mu.Unlock()
	case "unsubscribe":
		c.mu.Lock()
		delete(c.subs, msg.Symbol)
		c.mu.Unlock()
	default:
		if err := c.send(errorFrame("unknown action")); err != nil {
			log.Error().Err(err).Msg("error sending error frame")
		}
	}

	s.pool.AddTask(c)
	return nil
}
