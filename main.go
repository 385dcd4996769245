package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"parley/internal/api"
	"parley/internal/config"
	"parley/internal/http"
	"parley/internal/hub"
	"parley/internal/logging"
	"parley/internal/storage"
	"parley/internal/ws"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "parley",
	})

	g, gCtx := errgroup.WithContext(ctx)

	var (
		archiver hub.Archiver
		store    *storage.BboltStorage
		lastID   int64
	)
	if cfg.ArchiveDB != "" {
		store, err = storage.NewBboltStorage(cfg.ArchiveDB)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		lastID, err = store.LastMessageID()
		if err != nil {
			return err
		}

		journal := storage.NewJournal(store, cfg.ArchiveQueue, logger)
		archiver = journal
		g.Go(func() error {
			return journal.Run(gCtx)
		})
		logger.Info().Str("path", cfg.ArchiveDB).Int64("last_message_id", lastID).Msg("archive enabled")
	}

	outbox := ws.NewOutbox(cfg.OutboxSize, logger)
	chatHub := hub.New(hub.Config{
		DefaultRoom:   cfg.DefaultRoom,
		Rooms:         cfg.Rooms(),
		HistoryCap:    cfg.HistoryCap,
		SnapshotSize:  cfg.SnapshotSize,
		SearchLimit:   cfg.SearchLimit,
		PreviewLength: cfg.PreviewLength,
		PageLimitMax:  cfg.PageLimitMax,
		LastMessageID: lastID,
	}, outbox, archiver, logger)

	wsServer := ws.NewServer(chatHub, outbox, ws.ServerConfig{
		AllowedOrigins: cfg.Origins(),
		MaxFrameBytes:  cfg.MaxFrameBytes,
	}, logger)

	apiHandlers := api.New(chatHub, nil, logger)
	if store != nil {
		apiHandlers = api.New(chatHub, store, logger)
	}

	apiServer := http.NewAPIServer(apiHandlers, wsServer, cfg.APIAddr, logger)

	// Start API Server
	g.Go(func() error {
		return apiServer.Start()
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API server shutdown error")
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("application error")
	}
}
