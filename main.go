package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/exam-engine/internal/cache"
	"github.com/SAP-F-2025/exam-engine/internal/config"
	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/handlers"
	"github.com/SAP-F-2025/exam-engine/internal/metrics"
	"github.com/SAP-F-2025/exam-engine/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
	"github.com/SAP-F-2025/exam-engine/pkg"
)

const sweeperLockKey = "exam-engine:sweeper"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache and sweeper lease", "error", err)
			redisClient = nil
		}
	}

	// Initialize repositories
	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	// Metrics
	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.NewMetrics(reg)
		gatherer = reg
	}

	// Event transport
	wmLogger := watermill.NewSlogLogger(slogLogger)
	transport, err := events.NewTransport(cfg.Kafka, wmLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event transport: %v", err)
	}
	publisher := events.NewWatermillPublisher(transport.Publisher, cfg.Kafka.Topic, slogLogger)

	recorder, err := events.NewActivityRecorder(transport.Subscriber, cfg.Kafka.Topic, repoManager.GetRepository().ActivityLog(), wmLogger, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize activity recorder: %v", err)
	}

	// Initialize services
	validator := validator.New()

	smConfig := services.ServiceManagerConfig{SweeperInterval: cfg.Sweeper.Interval}
	if redisClient != nil {
		ttl := cfg.Sweeper.LockTTL
		if ttl <= 0 {
			ttl = 2 * cfg.Sweeper.Interval
		}
		smConfig.SweeperLock = cache.NewLeaseLock(redisClient, sweeperLockKey, ttl)
	}

	serviceManager := services.NewServiceManager(repoManager, slogLogger, validator, publisher, m, smConfig)
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := recorder.Run(ctx); err != nil {
			logger.Error("Activity recorder stopped", "error", err)
		}
	}()

	if cfg.Sweeper.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serviceManager.Sweeper().Run(ctx)
		}()
	} else {
		logger.Warn("Expiry sweeper disabled; attempts expire lazily on access")
	}

	// Initialize handlers
	authMiddleware := handlers.NewCasdoorAuthMiddleware(cfg.Casdoor)
	handlerManager := handlers.NewHandlerManager(serviceManager, validator, logger, authMiddleware, gatherer)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger, m)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	if err := recorder.Close(); err != nil {
		logger.Warn("Failed to close activity recorder", "error", err)
	}
	wg.Wait()

	if err := transport.Close(); err != nil {
		logger.Warn("Failed to close event transport", "error", err)
	}

	// Closes the database and redis through the repository manager
	if err := serviceManager.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}

	logger.Info("Server exited")
}
