package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wavesend/wavesend/internal/config"
	"github.com/wavesend/wavesend/internal/logging"
	"github.com/wavesend/wavesend/internal/peers"
	"github.com/wavesend/wavesend/internal/relay"
	"github.com/wavesend/wavesend/internal/session"
)

func main() {
	cfg := config.ParseServerConfig()
	logger := logging.New("waveserv", cfg.LogLevel)

	store := session.NewStore(cfg.SessionTTL)
	hub := peers.NewHub()
	srv := relay.New(store, hub, relay.OptionsFromConfig(cfg, logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go srv.RunSweeper(ctx, cfg.SweepInterval)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("server listening", "addr", cfg.Addr, "session_ttl", cfg.SessionTTL)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server shut down")
}
