package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"woosync/internal/backend"
	"woosync/internal/cache"
	"woosync/internal/config"
	server "woosync/internal/http"
	"woosync/internal/migrate"
	"woosync/internal/runs"
	"woosync/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	role := flag.String("role", "all", "process role: api|worker|all")
	flag.Parse()

	cfg := config.Load(*configPath)

	// Run migrations on a short-lived connection
	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	// Create a shared *sql.DB with pooling for the Store
	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db failed: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	st := store.New(db)

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	client, err := backend.NewClient(&cfg.Backend, logger)
	if err != nil {
		log.Fatalf("backend client: %v", err)
	}
	poller := backend.NewPoller(client, cfg.Poller)

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("invalid redis url: %v", err)
		}
		rdb = redis.NewClient(opt)
	}

	previewStore := cache.NewPreviewStore(rdb, time.Duration(cfg.Preview.TTLMinutes)*time.Minute)

	rootCtx := context.Background()

	if cfg.Preview.WarmOnStart {
		go warmPreview(rootCtx, client, previewStore, logger)
	}

	startWorker := func() {
		runner := runs.NewRunner(cfg, st, client, poller, previewStore, logger)
		go runner.Start(rootCtx)
	}

	switch *role {
	case "api":
		s := server.NewServer(cfg, st, client, previewStore, rdb, logger)
		if err := s.Listen(); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case "worker":
		startWorker()
		select {}
	case "all":
		startWorker()
		s := server.NewServer(cfg, st, client, previewStore, rdb, logger)
		if err := s.Listen(); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	default:
		log.Fatalf("invalid role: %s (expected api|worker|all)", *role)
	}
}

// warmPreview primes the preview cache so the first dashboard load
// does not pay for a full backend catalog walk.
func warmPreview(ctx context.Context, client *backend.Client, previewStore *cache.PreviewStore, logger *slog.Logger) {
	if _, ok := previewStore.Get(ctx); ok {
		return
	}
	snapshot, _, err := client.FetchPreview(ctx)
	if err != nil {
		logger.Warn("preview warm-up failed", "error", err)
		return
	}
	previewStore.Set(ctx, snapshot)
	logger.Info("preview cache warmed")
}
