package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/risingstars/video-pipeline/internal/domain/entity"
	"github.com/risingstars/video-pipeline/internal/domain/port"
	"github.com/risingstars/video-pipeline/internal/infra/metrics"
	"go.uber.org/zap"
)

// JobProcessor handles one raw message body.
type JobProcessor interface {
	Execute(ctx context.Context, rawMsg []byte) entity.JobResult
}

type LoopConfig struct {
	ReceiveBatch int
	ReceiveWait  time.Duration
	PollInterval time.Duration

	// MaxAttempts turns a transient failure terminal once the queue reports
	// this many deliveries; zero never gives up.
	MaxAttempts int

	// JobTimeout bounds one job attempt; zero means unbounded.
	JobTimeout time.Duration
}

// Loop is the single sequential consumer of a worker process.
type Loop struct {
	queue     port.JobQueue
	processor JobProcessor
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       LoopConfig
}

func NewLoop(
	queue port.JobQueue,
	processor JobProcessor,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg LoopConfig,
) *Loop {
	if cfg.ReceiveBatch < 1 {
		cfg.ReceiveBatch = 1
	}
	return &Loop{
		queue:     queue,
		processor: processor,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run receives until ctx is cancelled or the queue closes for good. A job
// already started runs to completion on a context detached from ctx.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("worker loop started",
		zap.Int("batch", l.cfg.ReceiveBatch),
		zap.Duration("wait", l.cfg.ReceiveWait),
	)

	for {
		if ctx.Err() != nil {
			l.logger.Info("worker loop stopping")
			return nil
		}

		msgs, err := l.queue.Receive(ctx, l.cfg.ReceiveBatch, l.cfg.ReceiveWait)
		if errors.Is(err, port.ErrQueueClosed) {
			l.logger.Error("job queue closed, stopping worker loop", zap.Error(err))
			return fmt.Errorf("receive jobs: %w", err)
		}
		if err != nil {
			l.logger.Warn("failed to receive jobs", zap.Error(err))
		}
		if len(msgs) == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(l.cfg.PollInterval):
			}
			continue
		}

		for _, msg := range msgs {
			if ctx.Err() != nil {
				// Not acknowledged, so the queue hands it out again.
				break
			}
			l.Handle(ctx, msg)
		}
	}
}

// Handle processes one message and acknowledges it at most once.
func (l *Loop) Handle(ctx context.Context, msg entity.QueueMessage) entity.JobResult {
	jobCtx := context.WithoutCancel(ctx)
	if l.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, l.cfg.JobTimeout)
		defer cancel()
	}

	result := l.execute(jobCtx, msg.Body)
	log := l.logger.With(zap.String("file", result.File), zap.Int("attempt", msg.Attempt))

	if !result.ShouldAcknowledge() && l.exhausted(msg) {
		log.Warn("giving up on job after repeated transient failures", zap.String("error", result.Error))
		result = entity.Failed(result.File, entity.FailureTerminal,
			fmt.Sprintf("gave up after %d attempts: %s", msg.Attempt, result.Error))
	}

	if !result.ShouldAcknowledge() {
		log.Warn("job failed transiently, leaving message for redelivery", zap.String("error", result.Error))
		metrics.MessagesAcknowledgedTotal.WithLabelValues("redeliver").Inc()
		return result
	}

	if !result.Success {
		log.Error("job failed terminally", zap.String("error", result.Error))
		l.deadLetter(jobCtx, msg, result, log)
	}

	if l.queue.Acknowledge(jobCtx, msg) {
		metrics.MessagesAcknowledgedTotal.WithLabelValues("ack").Inc()
	} else {
		log.Error("failed to acknowledge message")
		metrics.MessagesAcknowledgedTotal.WithLabelValues("ack_failed").Inc()
	}
	return result
}

func (l *Loop) exhausted(msg entity.QueueMessage) bool {
	return l.cfg.MaxAttempts > 0 && msg.Attempt >= l.cfg.MaxAttempts
}

// execute is the job boundary: a panic becomes a terminal failure.
func (l *Loop) execute(ctx context.Context, body []byte) (result entity.JobResult) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("job panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			file := ""
			if job, err := entity.DecodeProcessingJob(body); err == nil {
				file = job.Filename
			}
			result = entity.Failed(file, entity.FailureTerminal, fmt.Sprintf("unexpected error: %v", r))
		}
	}()
	return l.processor.Execute(ctx, body)
}

func (l *Loop) deadLetter(ctx context.Context, msg entity.QueueMessage, result entity.JobResult, log *zap.Logger) {
	if l.dlq != nil {
		if err := l.dlq.PublishToDLQ(ctx, msg.Body, result.Error); err != nil {
			log.Error("failed to publish to DLQ", zap.Error(err))
		}
	}

	if l.notifier != nil {
		var videoID int64
		if job, err := entity.DecodeProcessingJob(msg.Body); err == nil {
			videoID = job.ID
		}
		if err := l.notifier.NotifyFailure(ctx, videoID, result.File, result.Error); err != nil {
			log.Warn("failed to send failure notification", zap.Error(err))
		}
	}
}
