package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/risingstars/video-pipeline/internal/domain/entity"
	"go.uber.org/zap"
)

// Publisher serializes publishes; an amqp channel is not safe for
// concurrent use.
type Publisher struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

func NewPublisher(conn *amqp.Connection, topology Topology, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := DeclareTopology(ch, topology); err != nil {
		ch.Close()
		return nil, err
	}
	return &Publisher{channel: ch, exchange: topology.Exchange, logger: logger}, nil
}

func (p *Publisher) publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
}

func (p *Publisher) PublishJob(ctx context.Context, job entity.ProcessingJob) bool {
	body, err := job.Encode()
	if err != nil {
		p.logger.Error("failed to encode job", zap.Int64("video_id", job.ID), zap.Error(err))
		return false
	}

	err = p.publish(ctx, p.exchange, processingRoutingKey, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		p.logger.Error("failed to publish job", zap.Int64("video_id", job.ID), zap.Error(err))
		return false
	}

	p.logger.Info("job enqueued", zap.Int64("video_id", job.ID))
	return true
}

type DLQPublisher struct {
	pub   *Publisher
	queue string
}

func NewDLQPublisher(pub *Publisher, dlqQueue string) *DLQPublisher {
	return &DLQPublisher{pub: pub, queue: dlqQueue}
}

func (dp *DLQPublisher) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	return dp.pub.publish(ctx,
		"",
		dp.queue,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         msg,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers: amqp.Table{
				"x-dlq-reason": reason,
			},
		},
	)
}
