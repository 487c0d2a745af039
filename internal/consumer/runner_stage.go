package consumer

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/emitkithq/emitkit/internal/logger"
)

// RunnerStageConfig configures the runner stage
type RunnerStageConfig struct {
	MaxBatchSize int
	FlushTimeout time.Duration
	Concurrency  int
}

// RunnerStage collects envelopes into batches and runs each batch's
// workflows concurrently, settling every message on its own outcome.
type RunnerStage struct {
	runner WorkflowRunner
	config RunnerStageConfig
	log    *zap.Logger
}

func NewRunnerStage(runner WorkflowRunner, config RunnerStageConfig, log *zap.Logger) *RunnerStage {
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = 10
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = 2 * time.Second
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &RunnerStage{
		runner: runner,
		config: config,
		log:    log,
	}
}

// Start consumes envelopes until ctx is done or in is closed. Pending
// envelopes are run before returning.
func (s *RunnerStage) Start(ctx context.Context, in <-chan *Envelope) {
	ticker := time.NewTicker(s.config.FlushTimeout)
	defer ticker.Stop()

	batch := make([]*Envelope, 0, s.config.MaxBatchSize)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Runner stage shutting down")
			if len(batch) > 0 {
				s.log.Info("Running final batch", zap.Int("envelope_count", len(batch)))
				s.processBatch(context.WithoutCancel(ctx), batch)
			}
			return

		case envelope, ok := <-in:
			if !ok {
				s.log.Info("Runner stage input channel closed")
				if len(batch) > 0 {
					s.processBatch(ctx, batch)
				}
				return
			}

			batch = append(batch, envelope)

			if len(batch) >= s.config.MaxBatchSize {
				s.processBatch(ctx, batch)
				batch = make([]*Envelope, 0, s.config.MaxBatchSize)
				ticker.Reset(s.config.FlushTimeout)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = make([]*Envelope, 0, s.config.MaxBatchSize)
			}
		}
	}
}

// processBatch runs the workflows and acks the successful ones. Failed runs
// are nacked for a later retry.
func (s *RunnerStage) processBatch(ctx context.Context, envelopes []*Envelope) {
	var failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for _, env := range envelopes {
		g.Go(func() error {
			requestID := env.RequestID
			if requestID == "" {
				requestID = env.MessageID
			}
			runCtx := logger.WithRequestID(ctx, requestID)
			log := logger.FromContext(runCtx, s.log).With(
				zap.String("event_id", env.Workflow.EventID),
				zap.String("message_id", env.MessageID))

			if _, err := s.runner.Run(runCtx, env.Workflow); err != nil {
				failed.Add(1)
				log.Error("Workflow run failed, will retry", zap.Error(err))
				if err := env.Nack(runCtx); err != nil {
					log.Error("Failed to nack envelope", zap.Error(err))
				}
				return nil
			}

			if err := env.Ack(runCtx); err != nil {
				log.Error("Failed to ack envelope", zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("Processed workflow batch",
		zap.Int("count", len(envelopes)),
		zap.Int64("failed", failed.Load()))
}
