package rabbitmq

import (
	"context"
	"time"

	"github.com/risingstars/video-pipeline/internal/domain/entity"
	"github.com/risingstars/video-pipeline/internal/domain/port"
)

// Queue pairs a publisher with a consumer. The consumer is optional: the
// API only ever enqueues.
type Queue struct {
	publisher *Publisher
	consumer  *Consumer
}

var _ port.JobQueue = (*Queue)(nil)

func NewQueue(publisher *Publisher, consumer *Consumer) *Queue {
	return &Queue{publisher: publisher, consumer: consumer}
}

func (q *Queue) Enqueue(ctx context.Context, job entity.ProcessingJob) bool {
	return q.publisher.PublishJob(ctx, job)
}

func (q *Queue) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]entity.QueueMessage, error) {
	if q.consumer == nil {
		return nil, nil
	}
	return q.consumer.Receive(ctx, maxMessages, wait)
}

func (q *Queue) Acknowledge(ctx context.Context, msg entity.QueueMessage) bool {
	if q.consumer == nil {
		return false
	}
	return q.consumer.Acknowledge(ctx, msg)
}
