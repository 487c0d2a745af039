package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testQueueURL = "https://sqs.eu-central-1.amazonaws.com/123/emitkit-workflows"

// MockQueueConsumer is a mock implementation of queue.QueueConsumer
type MockQueueConsumer struct {
	mock.Mock
}

func (m *MockQueueConsumer) ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ReceiveMessageOutput), args.Error(1)
}

func (m *MockQueueConsumer) DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.DeleteMessageOutput), args.Error(1)
}

func (m *MockQueueConsumer) ChangeMessageVisibility(ctx context.Context, input *sqs.ChangeMessageVisibilityInput) (*sqs.ChangeMessageVisibilityOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ChangeMessageVisibilityOutput), args.Error(1)
}

func (m *MockQueueConsumer) QueueURL() string {
	args := m.Called()
	return args.String(0)
}

func drain(out <-chan types.Message, within time.Duration) []types.Message {
	var msgs []types.Message
	timeout := time.After(within)
	for {
		select {
		case msg, ok := <-out:
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		case <-timeout:
			return msgs
		}
	}
}

func TestReceiver_Start_Success(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	receiver := NewReceiver(mockConsumer, ReceiverConfig{MaxMessages: 10, WaitTimeSeconds: 20}, zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	messages := []types.Message{
		{MessageId: aws.String("msg-1"), Body: aws.String(`{"eventId":"event_1"}`)},
		{MessageId: aws.String("msg-2"), Body: aws.String(`{"eventId":"event_2"}`)},
	}
	mockConsumer.On("ReceiveMessages", mock.Anything, mock.MatchedBy(func(in *sqs.ReceiveMessageInput) bool {
		return aws.ToString(in.QueueUrl) == testQueueURL && in.MaxNumberOfMessages == 10 && in.WaitTimeSeconds == 20
	})).Return(&sqs.ReceiveMessageOutput{Messages: messages}, nil).Once()
	mockConsumer.On("ReceiveMessages", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{}, nil).Maybe()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	out := make(chan types.Message, 10)
	go receiver.Start(ctx, out)

	received := drain(out, 200*time.Millisecond)

	require.Len(t, received, 2)
	assert.Equal(t, "msg-1", aws.ToString(received[0].MessageId))
	assert.Equal(t, "msg-2", aws.ToString(received[1].MessageId))
}

func TestReceiver_Start_BacksOffAfterError(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	receiver := NewReceiver(mockConsumer, ReceiverConfig{
		MaxMessages:     10,
		WaitTimeSeconds: 20,
		ErrorBackoff:    time.Hour,
	}, zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	mockConsumer.On("ReceiveMessages", mock.Anything, mock.Anything).
		Return(nil, errors.New("SQS connection error"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := make(chan types.Message, 10)
	done := make(chan struct{})
	go func() {
		receiver.Start(ctx, out)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("receiver did not stop during backoff")
	}

	assert.Empty(t, drain(out, 10*time.Millisecond))
	mockConsumer.AssertNumberOfCalls(t, "ReceiveMessages", 1)
}

func TestReceiver_Start_ContextCancellation(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	receiver := NewReceiver(mockConsumer, ReceiverConfig{MaxMessages: 10}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan types.Message, 10)
	receiver.Start(ctx, out)

	_, ok := <-out
	assert.False(t, ok, "Channel should be closed after context cancellation")
	mockConsumer.AssertNotCalled(t, "ReceiveMessages", mock.Anything, mock.Anything)
}

func TestReceiver_Start_Backpressure(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	receiver := NewReceiver(mockConsumer, ReceiverConfig{MaxMessages: 10}, zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	messages := make([]types.Message, 5)
	for i := range messages {
		messages[i] = types.Message{MessageId: aws.String(string(rune('a' + i)))}
	}
	mockConsumer.On("ReceiveMessages", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{Messages: messages}, nil).Once()
	mockConsumer.On("ReceiveMessages", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{}, nil).Maybe()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out := make(chan types.Message, 1)
	go receiver.Start(ctx, out)

	var received []types.Message
	for range messages {
		select {
		case msg := <-out:
			received = append(received, msg)
			time.Sleep(10 * time.Millisecond)
		case <-ctx.Done():
		}
	}

	assert.Len(t, received, 5)
}
