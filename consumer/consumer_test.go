package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hatsunemiku3939/underwriter"
	utypes "github.com/hatsunemiku3939/underwriter/types"
)

// --- Mock SQSClient ---

type MockSQSClient struct{ mock.Mock }

func (m *MockSQSClient) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ReceiveMessageOutput), args.Error(1)
}

func (m *MockSQSClient) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.DeleteMessageOutput), args.Error(1)
}

const validBody = `{"uuid":"owner-1","agregador":"agg-1","document_id":"doc-1","document_type":"cnh","message_type":"standard"}`

func createSQSMessage(body, receiptHandle string) types.Message {
	return types.Message{
		Body:          &body,
		ReceiptHandle: &receiptHandle,
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func newRouter(t *testing.T, h underwriter.MessageHandler) *underwriter.Router {
	router, err := underwriter.NewRouter(underwriter.MessageSchema)
	require.NoError(t, err)
	if h != nil {
		router.Register(utypes.MessageStandard, h)
	}
	return router
}

func TestNewConsumer(t *testing.T) {
	mockClient := new(MockSQSClient)
	router := newRouter(t, nil)
	c := NewConsumer(mockClient, "test-queue-url", router, WithProcessingTimeout(time.Minute))

	assert.Equal(t, "test-queue-url", c.queueURL)
	assert.Equal(t, mockClient, c.client)
	assert.Equal(t, router, c.router)
	assert.Equal(t, time.Minute, c.processingTimeout)

	c = NewConsumer(mockClient, "q", router, WithProcessingTimeout(0), WithMaxMessages(11))
	assert.Equal(t, defaultProcessingTimeout, c.processingTimeout)
	assert.Equal(t, int32(defaultMaxMessages), c.maxMessages)
}

func TestConsumer_receiveInput(t *testing.T) {
	c := NewConsumer(new(MockSQSClient), "validation-queue", newRouter(t, nil), WithMaxMessages(10))
	in := c.receiveInput()

	assert.Equal(t, "validation-queue", *in.QueueUrl)
	assert.Equal(t, int32(10), in.MaxNumberOfMessages)
	assert.Equal(t, int32(waitTimeSeconds), in.WaitTimeSeconds)
	assert.Contains(t, in.MessageSystemAttributeNames, types.MessageSystemAttributeNameApproximateReceiveCount)
}

func TestConsumer_processMessage(t *testing.T) {
	queueURL := "test-queue"

	tests := []struct {
		name             string
		body             string
		handler          underwriter.MessageHandler
		expectDeleteCall bool
		deleteShouldFail bool
	}{
		{
			name: "success, should delete",
			body: validBody,
			handler: func(context.Context, *utypes.Message) underwriter.HandlerResult {
				return underwriter.HandlerResult{ShouldDelete: true}
			},
			expectDeleteCall: true,
		},
		{
			name: "handler error, but should delete",
			body: validBody,
			handler: func(context.Context, *utypes.Message) underwriter.HandlerResult {
				return underwriter.HandlerResult{ShouldDelete: true, Error: errors.New("permanent failure")}
			},
			expectDeleteCall: true,
		},
		{
			name: "handler error, should not delete (retry)",
			body: validBody,
			handler: func(context.Context, *utypes.Message) underwriter.HandlerResult {
				return underwriter.HandlerResult{ShouldDelete: false, Error: errors.New("store unavailable")}
			},
		},
		{
			name: "success, but delete fails",
			body: validBody,
			handler: func(context.Context, *utypes.Message) underwriter.HandlerResult {
				return underwriter.HandlerResult{ShouldDelete: true}
			},
			expectDeleteCall: true,
			deleteShouldFail: true,
		},
		{
			name:             "malformed body is deleted",
			body:             `{"document_id": 7}`,
			expectDeleteCall: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := new(MockSQSClient)
			c := NewConsumer(mockClient, queueURL, newRouter(t, tt.handler))
			sqsMsg := createSQSMessage(tt.body, "receipt-1")

			if tt.expectDeleteCall {
				deleteCall := mockClient.On("DeleteMessage", mock.Anything, mock.MatchedBy(func(in *sqs.DeleteMessageInput) bool {
					return *in.QueueUrl == queueURL && *in.ReceiptHandle == "receipt-1"
				}))
				if tt.deleteShouldFail {
					deleteCall.Return(nil, errors.New("failed to delete"))
				} else {
					deleteCall.Return(&sqs.DeleteMessageOutput{}, nil)
				}
			}

			c.processMessage(context.Background(), &sqsMsg)

			mockClient.AssertExpectations(t)
			if !tt.expectDeleteCall {
				mockClient.AssertNotCalled(t, "DeleteMessage")
			}
		})
	}

	t.Run("should not process message with nil body", func(t *testing.T) {
		mockClient := new(MockSQSClient)
		c := NewConsumer(mockClient, queueURL, newRouter(t, nil))

		sqsMsg := types.Message{Body: nil, ReceiptHandle: new(string)}
		c.processMessage(context.Background(), &sqsMsg)
		mockClient.AssertNotCalled(t, "DeleteMessage")
	})
}

func TestConsumer_Start(t *testing.T) {
	queueURL := "test-queue"
	router := newRouter(t, func(context.Context, *utypes.Message) underwriter.HandlerResult {
		return underwriter.HandlerResult{ShouldDelete: true}
	})

	t.Run("receives and deletes message successfully", func(t *testing.T) {
		mockClient := new(MockSQSClient)
		c := NewConsumer(mockClient, queueURL, router)
		ctx, cancel := context.WithCancel(context.Background())

		receiveOutput := &sqs.ReceiveMessageOutput{Messages: []types.Message{createSQSMessage(validBody, "receipt-1")}}
		mockClient.On("ReceiveMessage", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			cancel()
		}).Return(receiveOutput, nil).Once()
		mockClient.On("DeleteMessage", mock.Anything, mock.Anything).Return(&sqs.DeleteMessageOutput{}, nil).Once()

		c.Start(ctx)

		mockClient.AssertExpectations(t)
	})

	t.Run("handles receive message error gracefully", func(t *testing.T) {
		mockClient := new(MockSQSClient)
		c := NewConsumer(mockClient, queueURL, router)
		ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
		defer cancel()

		mockClient.On("ReceiveMessage", mock.Anything, mock.Anything).Return(nil, errors.New("SQS error")).Run(func(args mock.Arguments) {
			go func() {
				time.Sleep(50 * time.Millisecond)
				cancel()
			}()
		}).Once()

		start := time.Now()
		c.Start(ctx)

		mockClient.AssertExpectations(t)
		assert.Less(t, time.Since(start), receiveBackoff, "shutdown should not wait out the backoff")
	})

	t.Run("stops on canceled receive", func(t *testing.T) {
		mockClient := new(MockSQSClient)
		c := NewConsumer(mockClient, queueURL, router)

		mockClient.On("ReceiveMessage", mock.Anything, mock.Anything).Return(nil, context.Canceled).Once()

		c.Start(context.Background())
		mockClient.AssertExpectations(t)
	})
}
