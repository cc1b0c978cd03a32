package sqs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/risingstars/video-pipeline/internal/domain/entity"
	"github.com/risingstars/video-pipeline/internal/domain/port"
	"go.uber.org/zap"
)

const (
	maxBatch       = 10
	maxWaitSeconds = 20
)

var ErrNoDLQ = errors.New("no dead-letter queue configured")

// API is the subset of the SQS client used by Queue.
type API interface {
	SendMessage(ctx context.Context, params *awssqs.SendMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
}

type Queue struct {
	client   API
	queueURL string
	dlqURL   string
	logger   *zap.Logger
}

var (
	_ port.JobQueue     = (*Queue)(nil)
	_ port.DLQPublisher = (*Queue)(nil)
)

func NewQueue(client API, queueURL, dlqURL string, logger *zap.Logger) *Queue {
	return &Queue{client: client, queueURL: queueURL, dlqURL: dlqURL, logger: logger}
}

func NewClient(cfg aws.Config, endpoint string) *awssqs.Client {
	return awssqs.NewFromConfig(cfg, func(o *awssqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func (q *Queue) Enqueue(ctx context.Context, job entity.ProcessingJob) bool {
	body, err := job.Encode()
	if err != nil {
		q.logger.Error("failed to encode job", zap.Int64("video_id", job.ID), zap.Error(err))
		return false
	}

	out, err := q.client.SendMessage(ctx, &awssqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		q.logger.Error("failed to enqueue job", zap.Int64("video_id", job.ID), zap.Error(err))
		return false
	}

	q.logger.Info("job enqueued",
		zap.Int64("video_id", job.ID),
		zap.String("message_id", aws.ToString(out.MessageId)),
	)
	return true
}

func (q *Queue) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]entity.QueueMessage, error) {
	out, err := q.client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: clamp(int32(maxMessages), 1, maxBatch),
		WaitTimeSeconds:     clamp(int32(wait/time.Second), 0, maxWaitSeconds),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("receive from %s: %w", q.queueURL, err)
	}

	msgs := make([]entity.QueueMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, entity.QueueMessage{
			Body:          []byte(aws.ToString(m.Body)),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Attempt:       receiveCount(m),
		})
	}
	return msgs, nil
}

// receiveCount is zero when SQS did not report the attribute.
func receiveCount(m types.Message) int {
	n, err := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
	if err != nil {
		return 0
	}
	return n
}

func (q *Queue) Acknowledge(ctx context.Context, msg entity.QueueMessage) bool {
	_, err := q.client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		q.logger.Error("failed to delete message", zap.Error(err))
		return false
	}
	return true
}

func (q *Queue) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	if q.dlqURL == "" {
		return ErrNoDLQ
	}

	_, err := q.client.SendMessage(ctx, &awssqs.SendMessageInput{
		QueueUrl:    aws.String(q.dlqURL),
		MessageBody: aws.String(string(msg)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"x-dlq-reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(reason),
			},
		},
	})
	if err != nil {
		q.logger.Error("failed to publish to DLQ", zap.Error(err))
		return err
	}

	q.logger.Warn("message sent to DLQ", zap.String("reason", reason))
	return nil
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
