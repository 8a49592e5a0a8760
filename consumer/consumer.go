// Package consumer long-polls an SQS queue and feeds every message to a router.
package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/hatsunemiku3939/underwriter"
)

// --- SQS Consumer Configuration ---
const (
	// defaultMaxMessages is the default number of messages retrieved in one SQS API call.
	defaultMaxMessages = 5
	// waitTimeSeconds enables SQS Long Polling, reducing cost and empty responses.
	waitTimeSeconds = 10
	// deleteTimeout sets a client-side timeout for the DeleteMessage API call.
	deleteTimeout = 5 * time.Second
	// defaultProcessingTimeout bounds one message, including every store round trip and requeue.
	// Keep it below the queue visibility timeout and the container's graceful shutdown period.
	defaultProcessingTimeout = 30 * time.Second
	// receiveBackoff is the pause after a failed ReceiveMessage call.
	receiveBackoff = 2 * time.Second
)

// SQSClient defines the interface for SQS operations needed by the Consumer.
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Consumer encapsulates the SQS polling and message processing logic.
type Consumer struct {
	client            SQSClient
	queueURL          string
	router            *underwriter.Router
	processingTimeout time.Duration
	maxMessages       int32
	log               *zap.SugaredLogger
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithProcessingTimeout overrides the per-message deadline.
func WithProcessingTimeout(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.processingTimeout = d
		}
	}
}

// WithMaxMessages sets how many messages one receive call may return, between 1 and 10.
func WithMaxMessages(n int32) Option {
	return func(c *Consumer) {
		if n >= 1 && n <= 10 {
			c.maxMessages = n
		}
	}
}

// NewConsumer creates a new SQS message consumer.
func NewConsumer(client SQSClient, queueURL string, router *underwriter.Router, opts ...Option) *Consumer {
	c := &Consumer{
		client:            client,
		queueURL:          queueURL,
		router:            router,
		processingTimeout: defaultProcessingTimeout,
		maxMessages:       defaultMaxMessages,
		log:               zap.S().Named("consumer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins the consumer's polling loop. It blocks until the context is canceled and every
// in-flight message is handled.
func (c *Consumer) Start(ctx context.Context) {
	c.log.Infow("polling validation queue", "queue", c.queueURL, "batch", c.maxMessages)
	var wg sync.WaitGroup

	for {
		if ctx.Err() != nil {
			c.log.Info("shutdown requested, polling stopped")
			break
		}

		output, err := c.client.ReceiveMessage(ctx, c.receiveInput())
		if err != nil {
			if errors.Is(err, context.Canceled) {
				c.log.Info("receive canceled, polling stopped")
				break
			}
			c.log.Errorw("receive failed", "error", err, "backoff", receiveBackoff)
			select {
			case <-ctx.Done():
			case <-time.After(receiveBackoff):
			}
			continue
		}

		if len(output.Messages) == 0 {
			continue
		}
		c.log.Debugw("batch received", "messages", len(output.Messages))

		for _, msg := range output.Messages {
			wg.Add(1)
			go func(m types.Message) {
				defer wg.Done()
				// Detached from ctx so a shutdown lets in-flight messages finish.
				msgCtx, cancelMsg := context.WithTimeout(context.Background(), c.processingTimeout)
				defer cancelMsg()
				c.processMessage(msgCtx, &m)
			}(msg)
		}
	}

	c.log.Info("waiting for in-flight validations")
	wg.Wait()
	c.log.Info("consumer stopped")
}

// processMessage routes, handles, and deletes a single SQS message.
func (c *Consumer) processMessage(ctx context.Context, msg *types.Message) {
	if msg.Body == nil {
		c.log.Errorw("message without body", "message_id", aws.ToString(msg.MessageId))
		return
	}

	routed := c.router.Route(ctx, []byte(*msg.Body))
	fields := []any{
		"message_id", aws.ToString(msg.MessageId),
		"message_type", routed.MessageType,
		"document_type", routed.DocumentType,
		"document_id", routed.DocumentID,
		"attempt", routed.Attempt,
		"receive_count", msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)],
	}

	if routed.HandlerResult.Error != nil {
		c.log.Errorw("validation failed", append(fields, "failure", routed.Failure.String(), "error", routed.HandlerResult.Error)...)
	} else {
		c.log.Infow("validation handled", fields...)
	}

	if !routed.HandlerResult.ShouldDelete {
		c.log.Infow("message kept for redelivery", fields...)
		return
	}

	deleteCtx, cancelDelete := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancelDelete()

	if _, err := c.client.DeleteMessage(deleteCtx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	}); err != nil {
		c.log.Errorw("delete failed", append(fields, "error", err)...)
		return
	}
	c.log.Debugw("message deleted", fields...)
}

// receiveInput asks for the receive count so redeliveries show up in the logs.
func (c *Consumer) receiveInput() *sqs.ReceiveMessageInput {
	return &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: c.maxMessages,
		WaitTimeSeconds:     waitTimeSeconds,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	}
}
