package port

import (
	"context"
	"errors"
	"time"

	"github.com/risingstars/video-pipeline/internal/domain/entity"
)

// ErrQueueClosed means the queue connection is gone for good and no
// further Receive can succeed.
var ErrQueueClosed = errors.New("job queue closed")

type JobQueue interface {
	Enqueue(ctx context.Context, job entity.ProcessingJob) bool
	// Receive long-polls for up to maxMessages, returning an empty slice
	// once wait elapses.
	Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]entity.QueueMessage, error)
	Acknowledge(ctx context.Context, msg entity.QueueMessage) bool
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
