package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"corpfeed/internal/cache"
	"corpfeed/internal/gateway"
	"corpfeed/internal/ingestor"
	"corpfeed/internal/queue"
	"corpfeed/internal/store"
	"corpfeed/internal/truedata"
	"corpfeed/internal/writer"
	"corpfeed/pkg/logger"
)

func main() {
	// 0. Environment
	envMissing := godotenv.Load(".env") != nil
	logger.Init()
	if envMissing {
		slog.Info("No .env file found, using system environment variables")
	}

	// 1. Configuration
	port := envOr("PORT", "8080")
	dbPath := envOr("DB_PATH", "corpfeed.db")
	redisAddr := os.Getenv("REDIS_ADDR") // empty disables the cache
	connectionsFile := os.Getenv("CONNECTIONS_FILE")
	frontendURL := os.Getenv("FRONTEND_URL")
	queueCapacity := envInt("QUEUE_CAPACITY", queue.DefaultCapacity)
	batchSize := envInt("WRITER_BATCH_SIZE", 0)
	backfillDays := envInt("BACKFILL_WINDOW_DAYS", 0)

	// 2. Storage
	st, err := store.NewStore(dbPath)
	if err != nil {
		slog.Error("Failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := st.AutoMigrate(); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", dbPath)

	// 3. Redis cache, optional
	var latestCache *cache.Client
	if redisAddr != "" {
		latestCache, err = cache.New(redisAddr)
		if err != nil {
			slog.Warn("Redis unavailable, latest-announcement cache disabled", "error", err)
			latestCache = nil
		} else {
			defer latestCache.Close()
			slog.Info("Connected to Redis", "addr", redisAddr)
		}
	}

	// 4. Ingest pipeline: queue feeding the batch writer
	q := queue.New(queueCapacity, queue.DropOldest)

	writerOpts := writer.Options{BatchSize: batchSize}
	if latestCache != nil {
		writerOpts.Cache = latestCache
	}
	w := writer.New(q, st, writerOpts)
	w.Start()

	// 5. Feed connections
	configs, err := loadConnections(connectionsFile)
	if err != nil {
		slog.Error("Failed to load connections", "error", err)
		os.Exit(1)
	}
	manager := ingestor.NewManager(truedata.NewWSDialer(), q, ingestor.Options{})
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	manager.Reconcile(workerCtx, configs)

	// 6. Vendor REST client for history backfill and attachments. REST
	// shares credentials with the feed unless overridden.
	restUser := os.Getenv("TRUEDATA_USERNAME")
	restPass := os.Getenv("TRUEDATA_PASSWORD")
	if restUser == "" {
		for _, cfg := range configs {
			if cfg.Enabled {
				restUser, restPass = cfg.Username, cfg.Password
				break
			}
		}
	}
	var rest *truedata.RESTClient
	if restUser != "" {
		rest = truedata.NewRESTClient(os.Getenv("TRUEDATA_REST_URL"), restUser, restPass)
	} else {
		slog.Warn("No vendor credentials, history backfill and attachments disabled")
	}

	var fallback *gateway.Fallback
	var files gateway.AttachmentFetcher
	if rest != nil {
		fallback = gateway.NewFallback(st, rest, backfillDays)
		files = rest
	}
	var latestReader gateway.LatestCache
	if latestCache != nil {
		latestReader = latestCache
	}

	// 7. HTTP API
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	if frontendURL != "" {
		corsConfig.AllowOrigins = []string{frontendURL}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	handler := gateway.NewHandler(st, gateway.NewPipeline(manager, q, w), fallback, latestReader, files)

	router.GET("/health", handler.GetHealth)
	router.GET("/announcements", handler.GetAnnouncements)
	router.GET("/announcements/status", handler.GetStatus)
	router.GET("/announcements/latest/:symbol", handler.GetLatest)
	router.GET("/announcements/:id/attachment/:attachmentId", handler.GetAttachment)

	go func() {
		slog.Info("API listening", "port", port)
		if err := router.Run(":" + port); err != nil {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// 8. Signals: SIGHUP reloads connections, SIGINT/SIGTERM shut down
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range stop {
		if sig == syscall.SIGHUP {
			slog.Info("Reloading connections on SIGHUP")
			reloaded, err := loadConnections(connectionsFile)
			if err != nil {
				slog.Error("Reload failed, keeping current connections", "error", err)
				continue
			}
			manager.Reconcile(workerCtx, reloaded)
			continue
		}
		slog.Info("Shutdown signal received", "signal", sig.String())
		break
	}

	// 9. Stop producers first so the writer can drain everything
	manager.Stop()
	cancelWorkers()
	w.Stop()
	slog.Info("Shutdown complete")
}

// loadConnections reads the connections file when configured, otherwise
// builds a single connection from TRUEDATA_* variables.
func loadConnections(path string) ([]ingestor.ConnectionConfig, error) {
	if path != "" {
		return ingestor.LoadConnections(path)
	}

	url := os.Getenv("TRUEDATA_WS_URL")
	if url == "" {
		return nil, fmt.Errorf("CONNECTIONS_FILE or TRUEDATA_WS_URL must be set")
	}
	return []ingestor.ConnectionConfig{{
		ConnectionID: "primary",
		Name:         "TrueData primary",
		URL:          url,
		Username:     os.Getenv("TRUEDATA_USERNAME"),
		Password:     os.Getenv("TRUEDATA_PASSWORD"),
		Enabled:      true,
	}}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}
