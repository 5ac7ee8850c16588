package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"orderbook-arena/src/config"
	"orderbook-arena/src/handlers"
	"orderbook-arena/src/health"
	"orderbook-arena/src/logger"
	"orderbook-arena/src/metrics"
	"orderbook-arena/src/routes"
	"orderbook-arena/src/store"
)

func main() {
	logger.InitLogger()
	defer logger.CloseLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("port", cfg.Port).
		Str("grpc_port", cfg.GRPCPort).
		Bool("in_memory", cfg.InMemory()).
		Msg("Initializing order book index")

	m := metrics.New("orderbook")
	accounts, err := store.Open(store.Options{Dir: cfg.DataDir, Failures: m})
	if err != nil {
		log.Fatal().Err(err).Str("data_dir", cfg.DataDir).Msg("Failed to open account store")
	}

	marketHandler := handlers.NewMarketHandler(accounts, m, cfg.Ladder)
	app := routes.NewApp(cfg, marketHandler, m)

	healthServer := health.NewServer()
	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("grpc_port", cfg.GRPCPort).Msg("gRPC health server failed to start")
	}
	go func() {
		if err := healthServer.Serve(grpcListener); err != nil {
			log.Error().Err(err).Msg("gRPC health server stopped")
		}
	}()

	serverError := make(chan error, 1)
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			serverError <- err
		}
	}()

	healthServer.SetServing(true)
	log.Info().
		Str("port", cfg.Port).
		Int("markets", accounts.Len()).
		Msg("Order book index started")
	log.Info().Strs("endpoints", routes.Endpoints()).Msg("API endpoints registered")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	select {
	case err := <-serverError:
		log.Error().
			Err(err).
			Str("port", cfg.Port).
			Str("hint", "Port may be already in use. Try: PORT=3000 go run main.go").
			Msg("Server failed")
	case <-quit:
		log.Info().Msg("Received shutdown signal, shutting down...")
	}
	healthServer.SetServing(false)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", cfg.ShutdownTimeout).
				Msg("Timeout exceeded, shutting down...")
		} else {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}
	healthServer.Stop()

	if err := accounts.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close account store")
	}
	log.Info().Msg("Shutdown complete")
}
