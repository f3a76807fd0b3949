package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"slideflow/internal/ai"
	"slideflow/internal/cache"
	"slideflow/internal/config"
	"slideflow/internal/database"
	"slideflow/internal/generation"
	"slideflow/internal/log"
	"slideflow/internal/queue"
	"slideflow/internal/repository"
	"slideflow/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer redisClient.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	setRepo := repository.NewSetRepository(dbPool)
	imageRepo := repository.NewImageRepository(dbPool)
	videoRepo := repository.NewVideoRepository(dbPool)

	editor := ai.NewImageEditor(cfg.OpenAI)
	producer := queue.NewProducer(redisClient, cfg.Redis.Stream)

	processor := generation.NewProcessor(setRepo, imageRepo, videoRepo, editor, objectStore,
		cfg.Generation.BatchSize, cfg.Generation.ProviderSlots, cfg.Generation.FallbackPrompt, logger)
	controller := generation.NewController(processor, producer, setRepo, logger)

	consumer := queue.NewConsumer(
		redisClient,
		cfg.Redis.Stream,
		cfg.Redis.Group,
		cfg.Redis.Consumer,
		time.Minute,
		logger,
		controller,
	)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := consumer.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-runCtx.Done()
	logger.Info().Msg("shutdown signal received")
	time.Sleep(500 * time.Millisecond)
}
