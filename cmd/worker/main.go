package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/config"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/queue"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/storage"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/store"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis not available")
	}
	jobStore := store.New(redisClient, cfg.Redis.JobTTL)

	// The worker reads the same temp directory the gateway writes to.
	fileManager, err := storage.NewManager(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize file storage")
	}

	consumer, err := queue.NewConsumer(cfg.RabbitMQ)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize rabbitmq consumer")
	}
	defer consumer.Close()

	deliveries, err := consumer.Deliveries()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open delivery stream")
	}

	processor := worker.NewProcessor(jobStore, fileManager, worker.NewAnalyzer())

	log.Info().Str("queue", cfg.RabbitMQ.QueueName).Msg("worker consuming")
	processor.Run(ctx, deliveries)
	log.Info().Msg("worker stopped")
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
