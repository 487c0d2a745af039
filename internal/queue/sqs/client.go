package sqs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	envConfig "github.com/emitkithq/emitkit/internal/config"
	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/logger"
)

// API is the subset of the SQS client used here
type API interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Client carries workflow triggers between the API and the workflow worker
type Client struct {
	client API
	config envConfig.SQS
	log    *zap.Logger
}

// NewClient creates a new SQS client
func NewClient(ctx context.Context, SQSConfig envConfig.SQS, log *zap.Logger) (*Client, error) {
	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(SQSConfig.Region),
	}

	var clientOpts []func(*sqs.Options)

	// Configure for local development with ElasticMQ
	if SQSConfig.Endpoint != "" {
		log.Info("Configuring SQS for local development",
			zap.String("endpoint", SQSConfig.Endpoint))
		configOpts = append(configOpts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))

		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(SQSConfig.Endpoint)
		})
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	sqsClient := sqs.NewFromConfig(cfg, clientOpts...)

	log.Info("SQS client created",
		zap.String("region", SQSConfig.Region),
		zap.String("queue_url", SQSConfig.QueueURL))

	return NewWithAPI(sqsClient, SQSConfig, log), nil
}

// NewWithAPI builds a client over an existing SQS API implementation.
func NewWithAPI(api API, SQSConfig envConfig.SQS, log *zap.Logger) *Client {
	return &Client{
		client: api,
		config: SQSConfig,
		log:    log,
	}
}

// ReceiveMessages long-polls SQS for workflow triggers
func (c *Client) ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
	return c.client.ReceiveMessage(ctx, input)
}

// DeleteMessage deletes a message from SQS
func (c *Client) DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error) {
	return c.client.DeleteMessage(ctx, input)
}

// ChangeMessageVisibility shortens or extends a received message's visibility
func (c *Client) ChangeMessageVisibility(ctx context.Context, input *sqs.ChangeMessageVisibilityInput) (*sqs.ChangeMessageVisibilityOutput, error) {
	return c.client.ChangeMessageVisibility(ctx, input)
}

// QueueURL returns the configured queue URL
func (c *Client) QueueURL() string {
	return c.config.QueueURL
}

// PublishWorkflow enqueues the notification workflow trigger for a stored event
func (c *Client) PublishWorkflow(ctx context.Context, workflow *domain.EventWorkflow) error {
	log := logger.FromContext(ctx, c.log).With(
		zap.String("event_id", workflow.EventID),
		zap.String("channel_id", workflow.ChannelID))

	bodyJSON, err := json.Marshal(workflow)
	if err != nil {
		log.Error("Failed to marshal workflow trigger", zap.Error(err))
		return fmt.Errorf("failed to marshal workflow trigger: %w", err)
	}

	attributes := map[string]types.MessageAttributeValue{
		"OrganizationId": {
			DataType:    aws.String("String"),
			StringValue: aws.String(workflow.OrganizationID),
		},
		"ChannelId": {
			DataType:    aws.String("String"),
			StringValue: aws.String(workflow.ChannelID),
		},
	}
	if requestID := logger.RequestID(ctx); requestID != "" {
		attributes["RequestId"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(requestID),
		}
	}

	_, err = c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(c.config.QueueURL),
		MessageBody:       aws.String(string(bodyJSON)),
		MessageAttributes: attributes,
	})
	if err != nil {
		log.Error("Failed to send workflow trigger to SQS", zap.Error(err))
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	log.Info("Workflow trigger published to SQS")

	return nil
}
