package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"notehub/internal/catalog"
	"notehub/internal/changefeed"
	"notehub/internal/config"
	"notehub/internal/identity"
	"notehub/internal/storage"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notesctl",
	Short: "Operator tooling for the NoteHub note store",
	Long: `notesctl reads the same environment as the API server and works on the
same database. Set REDIS_URL so running servers see the writes it makes.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// app is the wiring shared by commands that touch the store.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	feed     changefeed.Feed
	docs     *storage.DocumentRepo
	catalog  *catalog.Catalog
	identity identity.Service
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	var feed changefeed.Feed
	if cfg.RedisURL != "" {
		redisFeed, err := changefeed.NewRedisFeed(ctx, cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connect change feed: %w", err)
		}
		feed = redisFeed
	} else {
		slog.Debug("No REDIS_URL; running servers will not be notified of changes")
		feed = changefeed.NewHub()
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		_ = feed.Close()
		_ = db.Close()
		return nil, err
	}

	docs := storage.NewDocumentRepo(db, feed)
	return &app{
		cfg:     cfg,
		db:      db,
		feed:    feed,
		docs:    docs,
		catalog: cat,
		identity: identity.New(identity.Config{
			Secret:     []byte(cfg.JWTSecret),
			SessionTTL: cfg.SessionTTL,
		}, storage.NewAccountRepo(db), storage.NewSessionRepo(db), docs, identity.LogMailer{}),
	}, nil
}

func (a *app) Close() {
	_ = a.feed.Close()
	_ = a.db.Close()
}
