package net

import (
	"context"
	"errors"
	"net/http"
	"time"

	"matchcore/internal/engine"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	defaultNWorkers    = 10
	defaultReadTimeout = 5 * time.Second
)

var ErrImproperConversion = errors.New("improper type conversion")

// Server owns the REST and WebSocket adapters in front of one Engine and
// runs them as a pair of http.Servers under a shared tomb, following the
// teacher's Run(ctx)/Shutdown() lifecycle from internal/net/server.go. The
// raw TCP listener and binary framing are gone; net/http plus gorilla/mux
// and gorilla/websocket replace them (spec §6.5).
type Server struct {
	restAddr string
	wsAddr   string
	engine   Engine
	pool     *WorkerPool
	hub      *hub
	cancel   context.CancelFunc

	restSrv *http.Server
	wsSrv   *http.Server
}

// New constructs a Server that will listen for REST traffic on restAddr and
// WebSocket traffic on wsAddr once Run is called.
func New(restAddr, wsAddr string, eng Engine) *Server {
	s := &Server{
		restAddr: restAddr,
		wsAddr:   wsAddr,
		engine:   eng,
		pool:     NewWorkerPool(defaultNWorkers),
		hub:      newHub(),
	}
	eng.SetOnTrade(s.hub.broadcastTrade)
	return s
}

// book resolves symbol's book and (re-)wires its change notification to the
// WS hub, lazily, the same way Engine.Book lazily creates the book itself.
func (s *Server) book(symbol string) *engine.Book {
	b := s.engine.Book(symbol)
	b.SetOnChange(s.hub.broadcastDepth)
	return b
}

// Shutdown cancels the context passed to Run, triggering a graceful stop.
func (s *Server) Shutdown() {
	log.Info().Msg("net server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run starts the REST listener, the WebSocket listener, and the connection
// worker pool, and blocks until ctx is cancelled. On return, both listeners
// have been asked to shut down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	wsRouter := http.NewServeMux()
	wsRouter.HandleFunc("/ws", s.handleWS)

	s.restSrv = &http.Server{Addr: s.restAddr, Handler: s.routes(), ReadHeaderTimeout: defaultReadTimeout}
	s.wsSrv = &http.Server{Addr: s.wsAddr, Handler: wsRouter, ReadHeaderTimeout: defaultReadTimeout}

	t.Go(func() error {
		s.pool.Setup(t, s.handleWSConnection)
		return nil
	})

	t.Go(func() error {
		log.Info().Str("addr", s.restAddr).Msg("REST server listening")
		if err := s.restSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("REST server error")
			return err
		}
		return nil
	})

	t.Go(func() error {
		log.Info().Str("addr", s.wsAddr).Msg("WebSocket server listening")
		if err := s.wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("WebSocket server error")
			return err
		}
		return nil
	})

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.restSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down REST server")
	}
	if err := s.wsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down WebSocket server")
	}

	return t.Wait()
}
