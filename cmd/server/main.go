package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/helio-dev/helio/internal/adapters/http"
	"github.com/helio-dev/helio/internal/adapters/ws"
	"github.com/helio-dev/helio/internal/app"
	"github.com/helio-dev/helio/internal/config"
	"github.com/helio-dev/helio/internal/lsp"
	"github.com/helio-dev/helio/internal/runner"
	"github.com/helio-dev/helio/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		// The room protocol degrades to memory-only rather than refusing
		// to serve.
		log.Error().Err(err).Msg("storage unavailable, running memory-only")
		store = nil
	} else {
		defer store.Close()
	}

	var roomStore storage.RoomStore
	if store != nil {
		roomStore = store
	}

	hub := app.NewHub(roomStore, app.NewMemoryDocSync())
	lspManager := lsp.NewManager(cfg.LspTimeout)
	ctl := &ws.Controller{Hub: hub, Lsp: lspManager, ReadLimit: cfg.ReadLimit}
	run := runner.New(cfg.RunURL, cfg.RunClientID, cfg.RunClientSecret)

	r := router.SetupRouter(ctx, cfg, ctl, roomStore, run)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Helio server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
