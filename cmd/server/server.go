package main

import (
	"context"
	"os/signal"
	"syscall"

	"matchcore/internal/engine"
	"matchcore/internal/net"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default listen addresses match the original implementation's port
// convention: 8080 for REST, 9002 for WebSocket.
const (
	defaultRESTAddr = "0.0.0.0:8080"
	defaultWSAddr   = "0.0.0.0:9002"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Info().Msg("matching engine starting up")

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	eng := engine.New()
	srv := net.New(defaultRESTAddr, defaultWSAddr, eng)

	log.Info().
		Str("rest", defaultRESTAddr).
		Str("ws", defaultWSAddr).
		Msg("matching engine is running")

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("matching engine shutdown complete")
}
