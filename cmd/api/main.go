package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notehub/internal/catalog"
	"notehub/internal/changefeed"
	"notehub/internal/config"
	"notehub/internal/http"
	"notehub/internal/identity"
	"notehub/internal/live"
	"notehub/internal/service"
	"notehub/internal/storage"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API serves curated university notes: live term and batch views for
// students and note curation for admins.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: NoteHub API
//   description: |
//     Note sharing API. Notes point at Google Drive files and folders and are
//     browsed by term level and batch. Views stay current over a websocket.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Change feed: Redis when several instances share the store, in-process otherwise
	var feed changefeed.Feed
	if cfg.RedisURL != "" {
		redisFeed, err := changefeed.NewRedisFeed(ctx, cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			log.Fatalf("Failed to connect change feed: %v", err)
		}
		feed = redisFeed
		slog.Info("Redis change feed connected", "channel", cfg.RedisChannel)
	} else {
		feed = changefeed.NewHub()
		slog.Info("In-process change feed")
	}
	defer func() {
		_ = feed.Close()
	}()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	slog.Info("Catalog loaded", "term_levels", len(cat.TermLevels), "batches", len(cat.Batches))

	// Create repository instances
	docs := storage.NewDocumentRepo(db, feed)
	accounts := storage.NewAccountRepo(db)
	sessions := storage.NewSessionRepo(db)

	identitySvc := identity.New(identity.Config{
		Secret:           []byte(cfg.JWTSecret),
		SessionTTL:       cfg.SessionTTL,
		FederationSecret: []byte(cfg.FederationSecret),
	}, accounts, sessions, docs, identity.LogMailer{})

	noteSvc := service.NewNoteService(docs, cat, cfg.DefaultUniversity)
	views := live.NewSubscriber(docs, cat, cfg.MergePrecedence)
	slog.Info("Note views ready", "merge_precedence", cfg.MergePrecedence.String())

	router, err := http.NewRouter(&http.Deps{
		Identity:        identitySvc,
		Notes:           noteSvc,
		Views:           views,
		Catalog:         cat,
		DB:              db,
		AdminInviteCode: cfg.AdminInviteCode,
	})
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	// Start API server
	addr := ":" + cfg.APIPort
	srv := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed to start: %v", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}
}
