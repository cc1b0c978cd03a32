// Package bootstrap builds the backend adapters selected by configuration.
// Both binaries share it so the API and the worker always agree on where
// objects and jobs live.
package bootstrap

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/risingstars/video-pipeline/internal/domain/port"
	"github.com/risingstars/video-pipeline/internal/infra/awsconfig"
	"github.com/risingstars/video-pipeline/internal/infra/config"
	miniostorage "github.com/risingstars/video-pipeline/internal/infra/minio"
	"github.com/risingstars/video-pipeline/internal/infra/rabbitmq"
	s3storage "github.com/risingstars/video-pipeline/internal/infra/s3"
	"github.com/risingstars/video-pipeline/internal/infra/sqs"
	"go.uber.org/zap"
)

// Queues is the job queue plus the dead-letter sink of the same backend.
// Ready is nil when the backend has no connection to lose.
type Queues struct {
	Jobs  port.JobQueue
	DLQ   port.DLQPublisher
	Ready func(ctx context.Context) error
	close []func() error
}

func (q *Queues) Close() {
	for i := len(q.close) - 1; i >= 0; i-- {
		_ = q.close[i]()
	}
}

// NewBlobStore opens the configured bucket. AWS credentials are only
// loaded for the AWS backends.
func NewBlobStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.BlobStore, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendMinIO:
		store, err := miniostorage.NewStorage(miniostorage.StorageConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.Bucket,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
		return store, nil

	case config.StorageBackendS3:
		awsCfg, err := awsconfig.Load(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return s3storage.NewStorage(s3storage.NewClient(awsCfg, cfg.AWSEndpoint), cfg.Bucket, logger), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// NewQueues connects the configured queue backend. With consume false only
// the publishing side is opened, which is all the API needs.
func NewQueues(ctx context.Context, cfg *config.Config, consume bool, logger *zap.Logger) (*Queues, error) {
	switch cfg.QueueBackend {
	case config.QueueBackendSQS:
		awsCfg, err := awsconfig.Load(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		q := sqs.NewQueue(sqs.NewClient(awsCfg, cfg.AWSEndpoint), cfg.SQSQueueURL, cfg.SQSDLQURL, logger)
		return &Queues{Jobs: q, DLQ: q}, nil

	case config.QueueBackendRabbitMQ:
		return newRabbitMQQueues(cfg, consume, logger)
	}
	return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
}

func newRabbitMQQueues(cfg *config.Config, consume bool, logger *zap.Logger) (*Queues, error) {
	topology := rabbitmq.Topology{
		Exchange: cfg.RabbitMQExchange,
		Queue:    cfg.RabbitMQProcessingQueue,
		DLQ:      cfg.RabbitMQDLQ,
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	qs := &Queues{close: []func() error{conn.Close}}

	pub, err := rabbitmq.NewPublisher(conn, topology, logger)
	if err != nil {
		qs.Close()
		return nil, err
	}

	var consumer *rabbitmq.Consumer
	if consume {
		consumer, err = rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
			URL:       cfg.RabbitMQURL,
			Topology:  topology,
			Prefetch:  cfg.RabbitMQPrefetch,
			BaseDelay: cfg.RabbitMQRetryBaseDelay,
		}, logger)
		if err != nil {
			qs.Close()
			return nil, err
		}
		qs.close = append(qs.close, consumer.Close)
	}

	qs.Jobs = rabbitmq.NewQueue(pub, consumer)
	qs.DLQ = rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)
	qs.Ready = func(ctx context.Context) error {
		if conn.IsClosed() {
			return fmt.Errorf("rabbitmq publisher: %w", port.ErrQueueClosed)
		}
		if consumer != nil {
			return consumer.Ready(ctx)
		}
		return nil
	}
	return qs, nil
}
