package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studynotion/internal/activity"
	"studynotion/internal/config"
	"studynotion/internal/logging"
	"studynotion/internal/metrics"
	"studynotion/internal/queue"
	"studynotion/internal/store"
	"studynotion/internal/telemetry"
)

// Worker consumes interaction events from Redis and folds them into the
// per-user activity counters.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Production())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !cfg.UsesRedis() {
		logger.Error(ctx, "worker needs QUEUE_BACKEND=redis; with the memory queue the API consumes events itself")
		os.Exit(1)
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info(ctx, "shutdown signal received")
		cancel()
	}()

	shutdownTracing := telemetry.Setup(ctx, "studynotion-worker", cfg.OTLPEndpoint, cfg.OTLPInsecure, logger)
	defer func() {
		flushCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = shutdownTracing(flushCtx)
	}()

	redisClient := store.NewRedis(cfg.Redis())
	defer redisClient.Close()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn(ctx, "redis not reachable yet, will keep retrying", "addr", cfg.RedisAddr, "error", err)
	}

	q := queue.NewRedisQueue(redisClient.Client, activity.QueueKey)
	tracker := activity.NewRedisTracker(redisClient.Client)

	if err := activity.Consume(ctx, q, tracker, metrics.New(), logger); err != nil {
		logger.Error(ctx, "queue consume init failed", "error", err)
		os.Exit(1)
	}
	logger.Info(context.Background(), "worker stopped")
}
