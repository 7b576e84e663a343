package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"studynotion/internal/account"
	"studynotion/internal/activity"
	"studynotion/internal/auth"
	"studynotion/internal/config"
	"studynotion/internal/handler"
	"studynotion/internal/httpmiddleware"
	"studynotion/internal/llm"
	"studynotion/internal/logging"
	"studynotion/internal/metrics"
	"studynotion/internal/queue"
	"studynotion/internal/store"
	"studynotion/internal/store/memory"
	"studynotion/internal/store/sqlstore"
	"studynotion/internal/study"
	"studynotion/internal/telemetry"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := logging.New(cfg.Production())

	if err := runHTTP(cfg, logger); err != nil {
		logger.Error(context.Background(), "http server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, log logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, "studynotion-api", cfg.OTLPEndpoint, cfg.OTLPInsecure, log)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info(ctx, "store ready", "backend", cfg.StoreBackend)

	m := metrics.New()
	health := []handler.HealthCheck{{Name: "store", Check: st.Ping}}

	var (
		q           queue.Queue
		tracker     activity.Tracker
		revocations auth.Revocations
	)
	if cfg.UsesRedis() {
		redisClient := store.NewRedis(cfg.Redis())
		defer redisClient.Close()
		if err := redisClient.Ping(ctx); err != nil {
			log.Warn(ctx, "redis not reachable yet", "addr", cfg.RedisAddr, "error", err)
		}
		health = append(health, handler.HealthCheck{Name: "redis", Check: redisClient.Ping})
		q = queue.NewRedisQueue(redisClient.Client, activity.QueueKey)
		tracker = activity.NewRedisTracker(redisClient.Client)
		revocations = auth.NewRedisRevocations(redisClient.Client)
	} else {
		q = queue.NewInMemory(256)
		tracker = activity.NewMemoryTracker()
		revocations = auth.NewMemoryRevocations()
		// Nobody else can read an in-process queue, so consume it here.
		go func() {
			if err := activity.Consume(ctx, q, tracker, m, log); err != nil {
				log.Error(ctx, "activity consumer failed", "error", err)
			}
		}()
	}

	if cfg.ProviderAPIKey == "" {
		log.Warn(ctx, "no provider API key set; AI endpoints will fail", "model", cfg.ProviderModel)
	}
	provider := llm.New(llm.Options{
		URL:       cfg.ProviderURL,
		APIKey:    cfg.ProviderAPIKey,
		Model:     cfg.ProviderModel,
		MaxTokens: cfg.ProviderMaxTokens,
		Timeout:   cfg.ProviderTimeout,
	}, m, log)

	tokens := auth.NewTokens(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	router := handler.NewRouter(handler.Deps{
		Accounts: account.NewService(st, st, tokens, revocations, log),
		Study: study.NewService(study.Deps{
			LLM:        provider,
			History:    st,
			Publisher:  activity.NewPublisher(q, log),
			Tracker:    tracker,
			Metrics:    m,
			Logger:     log,
			PromptMode: study.PromptMode(cfg.AskPromptMode),
		}),
		Auth:        auth.NewAuthenticator(tokens, revocations),
		Limiter:     httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitBurst, cfg.RateLimitPerMin, m),
		Metrics:     m,
		Logger:      log,
		CORSOrigins: cfg.CORSAllowOrigins,
		Health:      health,
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     otelhttp.NewHandler(router, "studynotion-api"),
		ReadTimeout: 15 * time.Second,
		// Provider calls can take up to ProviderTimeout.
		WriteTimeout: cfg.ProviderTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting server", "port", cfg.Port, "model", cfg.ProviderModel)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info(context.Background(), "shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "server forced shutdown", "error", err)
	}

	log.Info(shutdownCtx, "server exited")
	return nil
}

func openStore(ctx context.Context, cfg config.App) (store.Store, error) {
	switch cfg.StoreBackend {
	case "memory", "":
		return memory.New(), nil
	case "postgres":
		db, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return sqlstore.New(db), nil
	case "sqlite":
		db, err := store.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return sqlstore.New(db), nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
