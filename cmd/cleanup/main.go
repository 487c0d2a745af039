// Command cleanup runs one retention sweep and exits. It is meant to be
// scheduled daily.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/config"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/metrics"
	"github.com/emitkithq/emitkit/internal/repository/clickhouse"
	"github.com/emitkithq/emitkit/internal/repository/postgres"
	"github.com/emitkithq/emitkit/internal/retention"
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

	metrics.InitRetentionMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	sweeper := retention.NewSweeper(
		postgres.NewProjectRepository(db.Pool),
		clickhouse.NewRepository(chClient, log),
		cfg.Retention,
		log,
	)

	if _, err := sweeper.Run(ctx); err != nil {
		log.Error("Retention sweep failed", zap.Error(err))
		os.Exit(1)
	}
}
