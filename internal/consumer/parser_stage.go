package consumer

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/queue"
)

// ParserStage turns queue messages into envelopes. Malformed messages are
// deleted since no retry can fix them.
type ParserStage struct {
	consumer   queue.QueueConsumer
	parser     MessageParser
	retryDelay time.Duration
	log        *zap.Logger
}

func NewParserStage(consumer queue.QueueConsumer, parser MessageParser, retryDelay time.Duration, log *zap.Logger) *ParserStage {
	return &ParserStage{
		consumer:   consumer,
		parser:     parser,
		retryDelay: retryDelay,
		log:        log,
	}
}

// Start parses messages from in until ctx is done or in is closed, then closes out.
func (p *ParserStage) Start(ctx context.Context, in <-chan types.Message, out chan<- *Envelope) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Parser stage shutting down")
			return
		case msg, ok := <-in:
			if !ok {
				p.log.Info("Parser stage input channel closed")
				return
			}

			envelope := p.parseMessage(ctx, msg)
			if envelope == nil {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- envelope:
			}
		}
	}
}

func (p *ParserStage) parseMessage(ctx context.Context, msg types.Message) *Envelope {
	messageID := aws.ToString(msg.MessageId)
	wf, err := p.parser.Parse([]byte(aws.ToString(msg.Body)))
	if err != nil {
		p.log.Warn("Failed to parse workflow trigger",
			zap.String("message_id", messageID),
			zap.Error(err))
		if err := p.deleteMessage(ctx, msg); err != nil {
			p.log.Error("Failed to delete malformed message",
				zap.String("message_id", messageID),
				zap.Error(err))
		}
		return nil
	}

	ack := func(ctx context.Context) error {
		return p.deleteMessage(ctx, msg)
	}
	nack := func(ctx context.Context) error {
		return p.delayMessage(ctx, msg)
	}

	envelope := NewEnvelope(wf, messageID, ack, nack)
	if attr, ok := msg.MessageAttributes["RequestId"]; ok {
		envelope.RequestID = aws.ToString(attr.StringValue)
	}
	return envelope
}

func (p *ParserStage) deleteMessage(ctx context.Context, msg types.Message) error {
	_, err := p.consumer.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.consumer.QueueURL()),
		ReceiptHandle: msg.ReceiptHandle,
	})
	return err
}

// delayMessage hides the message for retryDelay so a failed run is retried
// later instead of after the queue's full visibility timeout.
func (p *ParserStage) delayMessage(ctx context.Context, msg types.Message) error {
	_, err := p.consumer.ChangeMessageVisibility(ctx, &awssqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(p.consumer.QueueURL()),
		ReceiptHandle:     msg.ReceiptHandle,
		VisibilityTimeout: int32(p.retryDelay / time.Second),
	})
	return err
}
