package usecase

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/risingstars/video-pipeline/internal/apperror"
	"github.com/risingstars/video-pipeline/internal/domain/entity"
	"github.com/risingstars/video-pipeline/internal/domain/port"
	"github.com/risingstars/video-pipeline/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type UploadVideoInput struct {
	Title    string
	Filename string
	Size     int64
	Content  io.Reader
	OwnerID  int64
}

type UploadVideoOutput struct {
	VideoID int64
	Key     string
}

type UploadVideoUseCase struct {
	repo      port.VideoRepository
	store     port.BlobStore
	queue     port.JobQueue
	inspector port.MediaInspector
	logger    *zap.Logger
	tempDir   string
	maxSize   int64
}

type UploadVideoConfig struct {
	TempDir string
	MaxSize int64
}

func NewUploadVideoUseCase(
	repo port.VideoRepository,
	store port.BlobStore,
	queue port.JobQueue,
	inspector port.MediaInspector,
	logger *zap.Logger,
	cfg UploadVideoConfig,
) *UploadVideoUseCase {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = MaxUploadBytes
	}
	return &UploadVideoUseCase{
		repo:      repo,
		store:     store,
		queue:     queue,
		inspector: inspector,
		logger:    logger,
		tempDir:   cfg.TempDir,
		maxSize:   cfg.MaxSize,
	}
}

// Execute validates, stores and enqueues one upload. The staged file is
// removed on every path. If the job cannot be enqueued the record and the
// stored original are rolled back so nothing sits in uploaded forever.
func (uc *UploadVideoUseCase) Execute(ctx context.Context, in UploadVideoInput) (*UploadVideoOutput, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "UploadVideoUseCase.Execute")
	defer span.End()

	log := uc.logger.With(zap.Int64("owner_id", in.OwnerID), zap.String("upload_name", in.Filename))

	if strings.TrimSpace(in.Title) == "" {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, apperror.WithMessage(apperror.ErrBadRequest, "A title is required")
	}
	if d := ValidateUpload(in.Filename, in.Size, uc.maxSize); !d.Accepted {
		return nil, uc.rejected(log, d)
	}

	staged, err := StageUpload(uc.tempDir, in.Content, uc.maxSize)
	if err != nil {
		if apperror.Is(err, apperror.ErrFileTooLarge) {
			metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		log.Error("failed to stage upload", zap.Error(err))
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}
	defer func() {
		if err := staged.Remove(); err != nil {
			log.Warn("failed to remove staged upload", zap.String("path", staged.Path()), zap.Error(err))
		}
	}()

	info := uc.inspector.Inspect(ctx, staged.Path())
	span.SetAttributes(
		attribute.Float64("video.duration", info.Duration),
		attribute.Int("video.width", info.Width),
		attribute.Int("video.height", info.Height),
	)
	if d := ValidateMedia(info); !d.Accepted {
		return nil, uc.rejected(log, d)
	}

	key := entity.UnprocessedPrefix + uuid.NewString() + AcceptedExtension
	log = log.With(zap.String("key", key))

	if !uc.store.Put(ctx, staged.Path(), key) {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, apperror.ErrStorageUnavailable
	}

	video := entity.NewVideoRecord(strings.TrimSpace(in.Title), key, in.OwnerID)
	if err := uc.repo.Create(ctx, video); err != nil {
		log.Error("failed to create video record", zap.Error(err))
		uc.store.Delete(ctx, key)
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}
	log = log.With(zap.Int64("video_id", video.ID))

	if !uc.queue.Enqueue(ctx, entity.NewProcessingJob(video)) {
		log.Error("failed to enqueue processing job, rolling back upload")
		uc.rollback(ctx, video, log)
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, apperror.ErrQueueUnavailable
	}

	metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	log.Info("upload accepted",
		zap.Float64("duration_secs", info.Duration),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
	)
	return &UploadVideoOutput{VideoID: video.ID, Key: key}, nil
}

func (uc *UploadVideoUseCase) rejected(log *zap.Logger, d Decision) error {
	metrics.UploadsTotal.WithLabelValues("rejected").Inc()
	log.Info("upload rejected", zap.String("reason", d.Reason.Code))
	return d.Reason
}

// rollback runs detached from the request so a client disconnect cannot
// strand half of it.
func (uc *UploadVideoUseCase) rollback(ctx context.Context, video *entity.VideoRecord, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := uc.repo.Delete(ctx, video.ID); err != nil {
		log.Error("failed to delete video record during rollback", zap.Error(err))
	}
	if !uc.store.Delete(ctx, video.Filename) {
		log.Error("failed to delete stored original during rollback")
	}
}
