package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"usersapp/internal/cache"
	"usersapp/internal/config"
	"usersapp/internal/events"
	"usersapp/internal/log"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		bootstrap := log.New("production", "info")
		bootstrap.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	logger := log.New(cfg.Environment, cfg.Log.Level)

	client, err := cache.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	consumer := events.NewConsumer(
		client,
		cfg.Events.Stream,
		cfg.Events.Group,
		cfg.Events.Consumer,
		cfg.Events.ClaimInterval,
		logger,
		events.NewAuditLog(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- consumer.Start(ctx)
	}()

	logger.Info().
		Str("stream", cfg.Events.Stream).
		Str("group", cfg.Events.Group).
		Msg("event worker started")

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			logger.Warn().Msg("consumer did not stop in time")
		}
	}
}
