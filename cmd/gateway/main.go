package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/config"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/handler"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/middleware"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/queue"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/service"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/storage"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/store"
)

func main() {
	startedAt := time.Now()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg.Server.LogLevel)

	ctx := context.Background()

	// Redis backs both the job status store and the rate limiter.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not available at startup")
	}

	// Postgres is optional; the gateway owns no schema and uses the pool
	// only for the readiness probe.
	var dbPool *pgxpool.Pool
	if cfg.Postgres.DSN != "" {
		dbPool, err = pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Warn().Err(err).Msg("postgres pool not initialized")
		} else {
			defer dbPool.Close()
		}
	} else {
		log.Info().Msg("postgres not configured, readiness check will skip it")
	}

	fileManager, err := storage.NewManager(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize file storage")
	}

	// Broker topology problems should surface here, not per request.
	publisher, err := queue.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize rabbitmq publisher")
	}
	defer publisher.Close()

	jobStore := store.New(redisClient, cfg.Redis.JobTTL)

	visionService := service.NewVisionService(fileManager, publisher, jobStore)
	chatService := service.NewChatService()

	visionHandler := handler.NewVisionHandler(visionService, fileManager.MaxFileSize())
	chatHandler := handler.NewChatHandler(chatService)
	healthHandler := handler.NewHealthHandler(startedAt, readinessDB(dbPool), jobStore, publisher)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		AppName: handler.ServiceName,
		// Stream the body so the submit handler can size-check the image
		// part while reading it. The hard limit leaves slack above the
		// storage max for multipart framing.
		StreamRequestBody: true,
		BodyLimit:         int(fileManager.MaxFileSize()) + 1024*1024,
		ReadTimeout:       cfg.Server.RequestTimeout,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Get("/health", healthHandler.Health)
	app.Get("/ready", healthHandler.Ready)
	app.Get("/metrics", healthHandler.Metrics)

	app.Post("/chat", chatHandler.Chat)

	vision := app.Group("/vision")
	vision.Post("/analyze", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerMin), visionHandler.Submit)
	vision.Get("/jobs/:job_id", visionHandler.GetStatus)
	vision.Delete("/jobs/:job_id/cancel", visionHandler.Cancel)
	vision.Get("/files/stats", visionHandler.FileStats)
	vision.Post("/files/cleanup", visionHandler.CleanupFiles)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go runCleanupSweep(sweepCtx, fileManager, cfg.Storage.CleanupInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info().Msg("shutting down gateway")
		stopSweep()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Msg("gateway starting")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// runCleanupSweep deletes expired uploads on a fixed interval until the
// context ends.
func runCleanupSweep(ctx context.Context, m *storage.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.CleanupExpired(); err != nil {
				log.Error().Err(err).Msg("cleanup sweep failed")
			}
		}
	}
}

// readinessDB adapts the optional pool to the health handler; a typed nil
// pool must become a true nil interface.
func readinessDB(pool *pgxpool.Pool) interface {
	Ping(ctx context.Context) error
} {
	if pool == nil {
		return nil
	}
	return pool
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
