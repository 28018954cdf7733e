// Humidity API owns the serial session and serves the latest reading over HTTP and websocket.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/humidity_monitor/pkg/api"
	"github.com/NotCoffee418/humidity_monitor/pkg/config"
	"github.com/NotCoffee418/humidity_monitor/pkg/logging"
	"github.com/NotCoffee418/humidity_monitor/pkg/pathing"
	"github.com/NotCoffee418/humidity_monitor/pkg/session"
	"github.com/NotCoffee418/humidity_monitor/pkg/sessiondb"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := pathing.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create directories")
	}

	// Load config
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	cfg := config.ActiveConfig
	logging.Setup(cfg.LogLevel)

	sessionOpts := session.Options{
		Serial: cfg.SerialConfig(""),
		Reader: cfg.ReaderOptions(),
	}
	apiOpts := api.Options{Identifier: cfg.Identifier}

	if cfg.SessionLogEnabled {
		store, err := sessiondb.Open(pathing.GetSessionDbPath())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open session log")
		}
		defer store.Close()
		sessionOpts.Recorder = store
		apiOpts.History = store
	}

	manager := session.NewManager(sessionOpts)
	defer manager.Close()
	apiOpts.Sessions = manager

	// The device may show up later, POST /open retries
	if err := manager.Open(""); err != nil {
		log.Warn().Err(err).Msg("Configured serial device not opened")
	}

	server := api.NewServer(apiOpts)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.RunBroadcaster(ctx)
	})
	g.Go(func() error {
		log.Info().Msgf("Starting Humidity Monitor API on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("API stopped")
		return
	}
	log.Info().Msg("API stopped")
}
