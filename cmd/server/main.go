package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gramvault/gramvault/internal/config"
	"github.com/gramvault/gramvault/internal/handler"
	"github.com/gramvault/gramvault/internal/igapi"
	"github.com/gramvault/gramvault/internal/middleware"
	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/payments"
	"github.com/gramvault/gramvault/internal/pkg/logger"
	"github.com/gramvault/gramvault/internal/queue"
	"github.com/gramvault/gramvault/internal/refresher"
	"github.com/gramvault/gramvault/internal/repository"
	"github.com/gramvault/gramvault/internal/service"
	"github.com/gramvault/gramvault/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)

	// Persistence. Postgres is mandatory; Redis is optional and only
	// disables the background refresh queue when absent.
	db, err := repository.NewDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("✅ Connected to PostgreSQL")

	settingRepo := repository.NewPostgresSettingRepo(db)
	apiLogRepo := repository.NewPostgresAPILogRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	paymentRepo := repository.NewPostgresPaymentRepo(db)

	// Seed the fetcher setting from env config so a fresh deploy works
	// without a manual PUT.
	if cfg.Fetcher.BaseURL != "" || cfg.Fetcher.APIKey != "" {
		seed := settingFromConfig(cfg)
		if err := settingRepo.SeedIfEmpty(context.Background(), seed); err != nil {
			logger.Warn("could not seed fetcher setting", "error", err)
		}
	}

	var refreshQueue *queue.RedisQueue
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			refreshQueue = queue.NewRedisQueue(redisClient.Client, cfg.Redis.QueueKey)
		} else {
			logger.Error("⚠️ Failed to connect to Redis, background refresh disabled", "error", err)
		}
	}

	blobs, err := storage.NewManager(cfg.Media.Root)
	if err != nil {
		log.Fatalf("Failed to initialize media storage: %v", err)
	}

	// Upstream API client. Settings are read per call, so rotated
	// credentials apply immediately.
	apiClient := igapi.NewClient(settingRepo, apiLogRepo,
		igapi.WithMaxBodyBytes(cfg.Fetcher.MaxBodyBytes))

	pictureFetcher := refresher.NewHTTPFetcher(
		time.Duration(cfg.Refresher.FetchTimeoutSeconds)*time.Second,
		cfg.Refresher.FetchRateLimitPerSec,
	)
	refresherCfg := refresher.Config{MaxAttempts: cfg.Refresher.MaxAttempts}
	if cfg.Refresher.RetryDelaySeconds > 0 {
		refresherCfg.Backoff = refresher.FixedBackoff{Delay: time.Duration(cfg.Refresher.RetryDelaySeconds) * time.Second}
	}
	pictureRefresher := refresher.New(profileRepo, pictureFetcher, blobs, refresherCfg)

	paymentRegistry := payments.NewRegistry()
	if err := paymentRegistry.Register(payments.NewManualGateway(cfg.Auth.AdminKey)); err != nil {
		log.Fatalf("Failed to register payment gateway: %v", err)
	}

	var refreshSink queue.Sink
	if refreshQueue != nil {
		refreshSink = refreshQueue
	}
	profileSvc := service.NewProfileService(profileRepo, apiClient, refreshSink, pictureRefresher)

	profileHandler := handler.NewProfileHandler(profileSvc)
	settingHandler := handler.NewSettingHandler(settingRepo, apiClient)
	apiLogHandler := handler.NewAPILogHandler(apiLogRepo)
	paymentHandler := handler.NewPaymentHandler(paymentRegistry, paymentRepo, cfg.Payments.DefaultProvider, cfg.Payments.Currency)

	// Call log retention.
	retentionCtx, stopRetention := context.WithCancel(context.Background())
	defer stopRetention()
	go runLogCleanup(retentionCtx, apiLogRepo, cfg)

	r := gin.Default()
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RateLimitMiddleware(cfg.Server.RateLimitQPS, cfg.Server.RateLimitBurst))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "gramvault"})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	{
		v1.GET("/profiles", profileHandler.List)
		v1.POST("/profiles", profileHandler.Create)
		v1.GET("/profiles/:id", profileHandler.Get)
		v1.PATCH("/profiles/:id", profileHandler.Update)
		v1.DELETE("/profiles/:id", profileHandler.Delete)
		v1.GET("/profiles/by-username/:username", profileHandler.GetByUsername)
		v1.POST("/profiles/:id/sync", profileHandler.Sync)
		v1.POST("/profiles/:id/refresh", profileHandler.Refresh)
		v1.GET("/profiles/:id/stories", profileHandler.Stories)
		v1.GET("/profiles/:id/posts", profileHandler.Posts)
	}

	admin := r.Group("/admin")
	admin.Use(middleware.AdminMiddleware(cfg))
	{
		admin.GET("/setting", settingHandler.Get)
		admin.PUT("/setting", settingHandler.Put)
		admin.POST("/setting/check", settingHandler.CheckConnection)
		admin.GET("/api-logs", apiLogHandler.List)
		admin.GET("/payments/providers", paymentHandler.Providers)
		admin.POST("/payments", paymentHandler.Create)
		admin.GET("/payments", paymentHandler.List)
		admin.GET("/payments/:reference", paymentHandler.Get)
		admin.POST("/payments/:reference/sync", paymentHandler.SyncStatus)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 GramVault started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stopRetention()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}

func settingFromConfig(cfg *config.Config) *model.FetcherSetting {
	return &model.FetcherSetting{
		BaseURL:        cfg.Fetcher.BaseURL,
		APIKey:         cfg.Fetcher.APIKey,
		TimeoutSeconds: cfg.Fetcher.TimeoutSeconds,
	}
}

// runLogCleanup prunes old API call log entries on an interval. Zero
// retention keeps logs forever.
func runLogCleanup(ctx context.Context, repo *repository.PostgresAPILogRepo, cfg *config.Config) {
	if cfg.Database.APILogRetentionDays <= 0 {
		return
	}
	interval := time.Duration(cfg.Database.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	retention := time.Duration(cfg.Database.APILogRetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repo.Cleanup(ctx, retention); err != nil {
				logger.Warn("api log cleanup failed", "error", err)
			}
		}
	}
}
