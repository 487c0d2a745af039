package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/auth"
	"github.com/emitkithq/emitkit/internal/background"
	"github.com/emitkithq/emitkit/internal/cache"
	"github.com/emitkithq/emitkit/internal/cache/valkey"
	"github.com/emitkithq/emitkit/internal/config"
	"github.com/emitkithq/emitkit/internal/encryption"
	"github.com/emitkithq/emitkit/internal/fanout"
	"github.com/emitkithq/emitkit/internal/handler"
	"github.com/emitkithq/emitkit/internal/idempotency"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/metrics"
	"github.com/emitkithq/emitkit/internal/queue/sqs"
	"github.com/emitkithq/emitkit/internal/repository/clickhouse"
	"github.com/emitkithq/emitkit/internal/repository/postgres"
	"github.com/emitkithq/emitkit/internal/service"
	"github.com/emitkithq/emitkit/internal/stream"
)

// @title EmitKit Events API
// @version 1.0
// @description Event ingestion, query and live stream API
// @BasePath /api/v1
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting API service",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.APIPort))

	metrics.InitAPIMetrics()

	ctx := context.Background()

	db, err := postgres.Connect(ctx, cfg.Postgres, log)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	chClient, err := clickhouse.NewClient(ctx, cfg.ClickHouse, log)
	if err != nil {
		log.Fatal("Failed to create ClickHouse client", zap.Error(err))
	}
	defer func() {
		if err := chClient.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}()

	events := clickhouse.NewRepository(chClient, log)
	if err := events.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}

	kv, err := valkey.NewClient(ctx, cfg.Valkey, log)
	if err != nil {
		log.Fatal("Failed to create Valkey client", zap.Error(err))
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Error("Failed to close Valkey client", zap.Error(err))
		}
	}()

	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	cipher, err := encryption.New(cfg.Encryption.Key)
	if err != nil {
		log.Fatal("Failed to initialize encryption", zap.Error(err))
	}

	bg := background.NewGroup(30*time.Second, log)
	readCache := cache.New(kv, bg, log)
	dispatcher := fanout.NewDispatcher(readCache, sqsClient, bg, log)

	eventService := service.NewEventService(
		postgres.NewChannelRepository(db.Pool),
		postgres.NewOrganizationRepository(db.Pool),
		events,
		events,
		readCache,
		dispatcher,
		log,
	)

	deps := handler.Dependencies{
		Events:     eventService,
		Identities: service.NewIdentityService(events, log),
		Keys: auth.NewKeyVerifier(postgres.NewAPIKeyRepository(db.Pool), kv,
			time.Duration(cfg.Auth.APIKeyCacheSec)*time.Second, log),
		Limiter:           auth.NewRateLimiter(kv, cfg.RateLimit.DefaultLimit, cfg.RateLimit.FallbackBurst, log),
		Sessions:          auth.NewSessionAuthenticator(postgres.NewSessionRepository(db.Pool)),
		Webhooks:          postgres.NewWebhookRepository(db.Pool),
		PushSubscriptions: postgres.NewPushSubscriptionRepository(db.Pool),
		Cipher:            cipher,
		Resolver:          net.DefaultResolver,
		Streamer:          stream.NewStreamer(cfg.Stream.PollInterval(), log),
		Health: map[string]handler.Pinger{
			"postgres":   db,
			"clickhouse": events,
			"valkey":     kv,
		},
	}
	if cfg.Valkey.IdempotencyEnabled {
		deps.Idempotency = idempotency.NewStore(kv, idempotency.DefaultTTL, log)
	}

	h := handler.NewHandler(deps, cfg.Auth, log)

	srv := newServer(ctx, ":"+cfg.Service.APIPort, h)

	go func() {
		log.Info("API server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down API service gracefully")

	if err := shutdown(srv, bg, time.Duration(cfg.Service.ShutdownTimeoutSec)*time.Second, log); err != nil {
		log.Warn("Shutdown incomplete", zap.Error(err))
		return
	}
	log.Info("API service stopped")
}
