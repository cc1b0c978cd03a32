package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/risingstars/video-pipeline/internal/apperror"
	"github.com/risingstars/video-pipeline/internal/domain/entity"
	"github.com/risingstars/video-pipeline/internal/domain/port"
	"go.uber.org/zap"
)

type ManageVideosUseCase struct {
	repo   port.VideoRepository
	store  port.BlobStore
	logger *zap.Logger
}

func NewManageVideosUseCase(repo port.VideoRepository, store port.BlobStore, logger *zap.Logger) *ManageVideosUseCase {
	return &ManageVideosUseCase{repo: repo, store: store, logger: logger}
}

func (uc *ManageVideosUseCase) ListOwned(ctx context.Context, ownerID int64) ([]entity.VideoRecord, error) {
	videos, err := uc.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}
	return videos, nil
}

// Get returns the caller's own video. Another owner's video is forbidden,
// not hidden.
func (uc *ManageVideosUseCase) Get(ctx context.Context, ownerID, videoID int64) (*entity.VideoRecord, error) {
	video, err := uc.repo.FindByID(ctx, videoID)
	if errors.Is(err, entity.ErrVideoNotFound) {
		return nil, apperror.WithMessage(apperror.ErrNotFound, fmt.Sprintf("Video %d not found", videoID))
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}
	if video.OwnerID != ownerID {
		return nil, apperror.ErrForbidden
	}
	return video, nil
}

// Delete removes an owner's video that has not been processed yet, then
// its stored original. A leftover object is logged, not surfaced.
func (uc *ManageVideosUseCase) Delete(ctx context.Context, ownerID, videoID int64) error {
	video, err := uc.Get(ctx, ownerID, videoID)
	if err != nil {
		return err
	}
	if !video.CanDelete() {
		return apperror.ErrNotDeletable
	}

	switch err := uc.repo.Delete(ctx, videoID); {
	case errors.Is(err, entity.ErrVideoNotDeletable):
		return apperror.ErrNotDeletable
	case errors.Is(err, entity.ErrVideoNotFound):
		return apperror.WithMessage(apperror.ErrNotFound, fmt.Sprintf("Video %d not found", videoID))
	case err != nil:
		return apperror.Wrap(err, apperror.ErrInternal)
	}

	if !uc.store.Delete(ctx, video.Filename) {
		uc.logger.Warn("video record deleted but object remains",
			zap.Int64("video_id", videoID),
			zap.String("key", video.Filename),
		)
	}
	return nil
}

// ListPublic returns processed public videos, most voted first.
func (uc *ManageVideosUseCase) ListPublic(ctx context.Context) ([]entity.VideoRecord, error) {
	videos, err := uc.repo.ListPublic(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}
	if len(videos) == 0 {
		return nil, apperror.WithMessage(apperror.ErrNotFound, "No public videos are available")
	}
	return videos, nil
}
