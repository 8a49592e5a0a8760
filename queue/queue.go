// Package queue sends validation messages back to SQS and publishes terminal outcomes.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/hatsunemiku3939/underwriter/types"
)

// MaxDelay is the longest delay SQS accepts on a message.
const MaxDelay = 15 * time.Minute

// SQSSender is the subset of the SQS API used to send messages.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Requeuer schedules another attempt of a validation message.
type Requeuer struct {
	client   SQSSender
	queueURL string
	log      *zap.SugaredLogger
}

func NewRequeuer(client SQSSender, queueURL string) *Requeuer {
	return &Requeuer{client: client, queueURL: queueURL, log: zap.S().Named("requeue")}
}

// Requeue sends msg with a delivery delay. Delays are truncated to whole seconds and capped at MaxDelay.
func (r *Requeuer) Requeue(ctx context.Context, msg *types.Message, delay time.Duration) error {
	if delay > MaxDelay {
		delay = MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.DocumentID, err)
	}
	out, err := r.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(r.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: int32(delay / time.Second),
	})
	if err != nil {
		return fmt.Errorf("requeue %s: %w", msg.DocumentID, err)
	}
	r.log.Infow("message requeued",
		"document_id", msg.DocumentID,
		"attempt", msg.Attempt,
		"delay_seconds", int32(delay/time.Second),
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}

// Publisher sends terminal outcomes downstream.
type Publisher struct {
	client   SQSSender
	queueURL string
	log      *zap.SugaredLogger
}

func NewPublisher(client SQSSender, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL, log: zap.S().Named("publish")}
}

func (p *Publisher) Publish(ctx context.Context, outcome *types.Outcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome %s: %w", outcome.DocumentID, err)
	}
	if _, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	}); err != nil {
		return fmt.Errorf("publish %s: %w", outcome.DocumentID, err)
	}
	p.log.Infow("outcome published", "document_id", outcome.DocumentID, "results", len(outcome.Results))
	return nil
}
