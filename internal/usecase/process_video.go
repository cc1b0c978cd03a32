package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/risingstars/video-pipeline/internal/domain/entity"
	"github.com/risingstars/video-pipeline/internal/domain/port"
	"github.com/risingstars/video-pipeline/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProcessVideoUseCase struct {
	repo        port.VideoRepository
	store       port.BlobStore
	inspector   port.MediaInspector
	transformer port.Transformer
	logger      *zap.Logger
	tempDir     string
	watermark   string
}

type ProcessVideoConfig struct {
	TempDir       string
	WatermarkPath string
}

func NewProcessVideoUseCase(
	repo port.VideoRepository,
	store port.BlobStore,
	inspector port.MediaInspector,
	transformer port.Transformer,
	logger *zap.Logger,
	cfg ProcessVideoConfig,
) *ProcessVideoUseCase {
	return &ProcessVideoUseCase{
		repo:        repo,
		store:       store,
		inspector:   inspector,
		transformer: transformer,
		logger:      logger,
		tempDir:     cfg.TempDir,
		watermark:   cfg.WatermarkPath,
	}
}

// Execute runs one job attempt: download, transform, upload, record.
// It never returns an error; the JobResult says what happened and whether
// the message may be acknowledged.
func (uc *ProcessVideoUseCase) Execute(ctx context.Context, rawMsg []byte) entity.JobResult {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	result := uc.execute(ctx, rawMsg)

	outcome := "success"
	if !result.Success {
		outcome = string(result.Kind)
		span.SetStatus(codes.Error, result.Error)
	}
	metrics.JobsProcessedTotal.WithLabelValues(outcome).Inc()
	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return result
}

func (uc *ProcessVideoUseCase) execute(ctx context.Context, rawMsg []byte) entity.JobResult {
	tracer := otel.Tracer("usecase")

	job, err := entity.DecodeProcessingJob(rawMsg)
	if err != nil {
		uc.logger.Error("failed to decode message", zap.Error(err), zap.ByteString("body", rawMsg))
		return entity.Failed("", entity.FailureTerminal, err.Error())
	}

	oteltrace.SpanFromContext(ctx).SetAttributes(
		attribute.Int64("video.id", job.ID),
		attribute.String("video.key", job.Filename),
	)
	log := uc.logger.With(zap.Int64("video_id", job.ID), zap.String("filename", job.Filename))

	video, err := uc.repo.FindByID(ctx, job.ID)
	if errors.Is(err, entity.ErrVideoNotFound) {
		log.Warn("video record not found, dropping job")
		return entity.Failed(job.Filename, entity.FailureTerminal, fmt.Sprintf("video record %d not found", job.ID))
	}
	if err != nil {
		log.Error("failed to load video record", zap.Error(err))
		return entity.Failed(job.Filename, entity.FailureTransient, "load video record: "+err.Error())
	}
	if video.IsProcessed() {
		log.Info("video already processed, skipping duplicate delivery", zap.String("processed_key", video.Filename))
		return entity.Succeeded(job.Filename, video.Filename)
	}

	if uc.tempDir != "" {
		if err := os.MkdirAll(uc.tempDir, 0o755); err != nil {
			log.Error("failed to create temp dir", zap.Error(err))
			return entity.Failed(job.Filename, entity.FailureTransient, "create temp dir: "+err.Error())
		}
	}
	workDir, err := os.MkdirTemp(uc.tempDir, fmt.Sprintf("job-%d-*", job.ID))
	if err != nil {
		log.Error("failed to create scratch dir", zap.Error(err))
		return entity.Failed(job.Filename, entity.FailureTransient, "create scratch dir: "+err.Error())
	}
	defer uc.cleanup(workDir, log)

	// Download
	dlStart := time.Now()
	dlCtx, spanDl := tracer.Start(ctx, "download_video")
	sourcePath := filepath.Join(workDir, path.Base(job.Filename))
	ok := uc.store.Get(dlCtx, job.Filename, sourcePath)
	spanDl.End()
	if !ok {
		log.Error("source video could not be downloaded")
		return entity.Failed(job.Filename, entity.FailureTransient,
			fmt.Sprintf("source object %s not found or unreadable", job.Filename))
	}
	metrics.JobProcessingDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Transform
	txCtx, spanTx := tracer.Start(ctx, "transform_video")
	info := uc.inspector.Inspect(txCtx, sourcePath)
	if !info.Probed {
		spanTx.End()
		// Without a readable stream list the audio decision would be a guess.
		log.Error("source streams could not be probed")
		return entity.Failed(job.Filename, entity.FailureTransient,
			fmt.Sprintf("source object %s could not be probed", job.Filename))
	}
	outputPath, err := uc.transformer.Transform(txCtx, port.TransformInput{
		SourcePath:     sourcePath,
		WatermarkPath:  uc.watermark,
		WorkDir:        workDir,
		SourceHasAudio: info.HasAudio,
	})
	spanTx.End()
	if err != nil {
		log.Error("transform failed", zap.Error(err))
		return entity.Failed(job.Filename, entity.FailureTerminal, err.Error())
	}

	// Upload
	upStart := time.Now()
	upCtx, spanUp := tracer.Start(ctx, "upload_processed")
	processedKey := entity.ProcessedKey(job.Filename)
	ok = uc.store.Put(upCtx, outputPath, processedKey)
	spanUp.End()
	if !ok {
		log.Error("processed video could not be uploaded", zap.String("processed_key", processedKey))
		return entity.Failed(job.Filename, entity.FailureTransient,
			fmt.Sprintf("failed to upload processed video to %s", processedKey))
	}
	metrics.JobProcessingDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	// Record
	if err := uc.repo.MarkProcessed(ctx, job.ID, processedKey, time.Now().UTC()); err != nil {
		if errors.Is(err, entity.ErrVideoNotFound) {
			log.Warn("video record deleted during processing, removing processed object")
			uc.store.Delete(ctx, processedKey)
			return entity.Failed(job.Filename, entity.FailureTerminal, fmt.Sprintf("video record %d not found", job.ID))
		}
		log.Error("failed to mark video processed", zap.Error(err))
		return entity.Failed(job.Filename, entity.FailureTransient, "record processed video: "+err.Error())
	}

	log.Info("video processed successfully", zap.String("processed_key", processedKey))
	return entity.Succeeded(job.Filename, processedKey)
}

// cleanup never changes the job's result.
func (uc *ProcessVideoUseCase) cleanup(workDir string, log *zap.Logger) {
	if err := os.RemoveAll(workDir); err != nil {
		log.Warn("failed to remove scratch dir", zap.String("dir", workDir), zap.Error(err))
	}
}
