// The worker process drains the refresh queue and runs the periodic
// sweep that enqueues auto-update profiles. It shares the database and
// Redis with the API server but serves no HTTP traffic besides metrics.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gramvault/gramvault/internal/config"
	"github.com/gramvault/gramvault/internal/pkg/logger"
	"github.com/gramvault/gramvault/internal/queue"
	"github.com/gramvault/gramvault/internal/refresher"
	"github.com/gramvault/gramvault/internal/repository"
	"github.com/gramvault/gramvault/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)

	db, err := repository.NewDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("✅ Connected to PostgreSQL")

	redisClient, err := repository.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	logger.Info("✅ Connected to Redis")

	profileRepo := repository.NewPostgresProfileRepo(db)
	blobs, err := storage.NewManager(cfg.Media.Root)
	if err != nil {
		log.Fatalf("Failed to initialize media storage: %v", err)
	}

	pictureFetcher := refresher.NewHTTPFetcher(
		time.Duration(cfg.Refresher.FetchTimeoutSeconds)*time.Second,
		cfg.Refresher.FetchRateLimitPerSec,
	)
	refresherCfg := refresher.Config{MaxAttempts: cfg.Refresher.MaxAttempts}
	if cfg.Refresher.RetryDelaySeconds > 0 {
		refresherCfg.Backoff = refresher.FixedBackoff{Delay: time.Duration(cfg.Refresher.RetryDelaySeconds) * time.Second}
	}
	pictureRefresher := refresher.New(profileRepo, pictureFetcher, blobs, refresherCfg)

	refreshQueue := queue.NewRedisQueue(redisClient.Client, cfg.Redis.QueueKey)
	locks := queue.NewRedisLocker(redisClient.Client, time.Duration(cfg.Refresher.LockTTLSeconds)*time.Second)
	pool := queue.NewPool(refreshQueue, locks, pictureRefresher, cfg.Refresher.Workers)
	scheduler := queue.NewScheduler(profileRepo, refreshQueue,
		time.Duration(cfg.Refresher.ScanIntervalMinutes)*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			addr := ":" + cfg.Server.Port
			logger.Info("metrics listener started", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	go scheduler.Run(ctx)

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()
	logger.Info("🚀 Refresh worker started", "workers", cfg.Refresher.Workers)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down worker...")

	cancel()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn("workers did not drain in time")
	}

	logger.Info("Worker exiting")
}
