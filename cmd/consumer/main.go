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
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/config"
	"github.com/emitkithq/emitkit/internal/consumer"
	"github.com/emitkithq/emitkit/internal/encryption"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/metrics"
	"github.com/emitkithq/emitkit/internal/push"
	"github.com/emitkithq/emitkit/internal/queue/sqs"
	"github.com/emitkithq/emitkit/internal/repository/clickhouse"
	"github.com/emitkithq/emitkit/internal/repository/postgres"
	"github.com/emitkithq/emitkit/internal/webhook"
	"github.com/emitkithq/emitkit/internal/workflow"
)

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

	log.Info("Starting workflow consumer",
		zap.String("environment", cfg.Service.Environment),
		zap.Int("concurrency", cfg.Consumer.Concurrency))

	metrics.InitWorkerMetrics()

	ctx := context.Background()

	db, err := postgres.Connect(ctx, cfg.Postgres, log)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer db.Close()

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

	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	cipher, err := encryption.New(cfg.Encryption.Key)
	if err != nil {
		log.Fatal("Failed to initialize encryption", zap.Error(err))
	}

	if !cfg.Push.Configured() {
		log.Warn("VAPID keys not configured, push notifications are disabled")
	}
	pushService := push.NewService(
		postgres.NewPushSubscriptionRepository(db.Pool),
		push.NewWebPushSender(cfg.Push, &http.Client{Timeout: 30 * time.Second}),
		cfg.Push.Configured(),
		cfg.Push.MaxConcurrency,
		log,
	)

	runner := workflow.NewRunner(
		events,
		postgres.NewWebhookRepository(db.Pool),
		webhook.NewDispatcher(cfg.Webhook, webhook.NewHTTPClient(), log),
		pushService,
		cipher,
		cfg.Service.AppURL,
		log,
	)

	c := consumer.NewConsumer(cfg, sqsClient, runner, log)

	healthSrv := &http.Server{
		Addr:              ":" + cfg.Consumer.HealthCheckPort,
		Handler:           healthRouter(db, events, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Health check server starting", zap.String("address", healthSrv.Addr))
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health check server error", zap.Error(err))
		}
	}()

	consumerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("Consumer starting")
		if err := c.Start(consumerCtx); err != nil {
			log.Error("Consumer error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down consumer gracefully")
	cancel()

	shutdownCtx, stop := context.WithTimeout(ctx, time.Duration(cfg.Service.ShutdownTimeoutSec)*time.Second)
	defer stop()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("Consumer did not drain before shutdown timeout")
	}
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down health server", zap.Error(err))
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func healthRouter(db, events pinger, log *zap.Logger) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		for name, p := range map[string]pinger{"postgres": db, "clickhouse": events} {
			if err := p.Ping(ctx); err != nil {
				log.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "failing": name})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
