// Package consumer is the workflow worker: it drains the SQS workflow queue
// and runs webhook and push delivery for each stored event.
package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/config"
	"github.com/emitkithq/emitkit/internal/queue"
)

// Consumer wires receive, parse and run stages into one pipeline
type Consumer struct {
	receiver *Receiver
	parser   *ParserStage
	runner   *RunnerStage
}

func NewConsumer(cfg *config.Config, queueConsumer queue.QueueConsumer, runner WorkflowRunner, log *zap.Logger) *Consumer {
	receiver := NewReceiver(queueConsumer, ReceiverConfig{
		MaxMessages:     10,
		WaitTimeSeconds: 20,
	}, log)

	parser := NewParserStage(queueConsumer, NewJSONWorkflowParser(),
		time.Duration(cfg.Consumer.RetryDelaySec)*time.Second, log)

	runnerStage := NewRunnerStage(runner, RunnerStageConfig{
		MaxBatchSize: cfg.Consumer.BatchSizeMax,
		FlushTimeout: time.Duration(cfg.Consumer.BatchTimeoutSec) * time.Second,
		Concurrency:  cfg.Consumer.Concurrency,
	}, log)

	return &Consumer{
		receiver: receiver,
		parser:   parser,
		runner:   runnerStage,
	}
}

// Start runs the pipeline and blocks until every stage has stopped
func (c *Consumer) Start(ctx context.Context) error {
	messageChan := make(chan types.Message, 100)
	envelopeChan := make(chan *Envelope, 100)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		c.receiver.Start(ctx, messageChan)
	}()

	go func() {
		defer wg.Done()
		c.parser.Start(ctx, messageChan, envelopeChan)
	}()

	go func() {
		defer wg.Done()
		c.runner.Start(ctx, envelopeChan)
	}()

	wg.Wait()
	return nil
}
