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

const (
	DefaultRankingLimit = 10
	MaxRankingLimit     = 100
)

type VoteUseCase struct {
	votes  port.VoteRepository
	logger *zap.Logger
}

func NewVoteUseCase(votes port.VoteRepository, logger *zap.Logger) *VoteUseCase {
	return &VoteUseCase{votes: votes, logger: logger}
}

// Cast records one vote by userID and returns the video's new total.
func (uc *VoteUseCase) Cast(ctx context.Context, userID, videoID int64) (int, error) {
	total, err := uc.votes.CastVote(ctx, videoID, userID)
	switch {
	case errors.Is(err, entity.ErrVideoNotFound):
		return 0, apperror.WithMessage(apperror.ErrNotFound,
			fmt.Sprintf("Video %d does not exist or is not public", videoID))
	case errors.Is(err, entity.ErrAlreadyVoted):
		return 0, apperror.ErrAlreadyVoted
	case err != nil:
		return 0, apperror.Wrap(err, apperror.ErrInternal)
	}

	uc.logger.Info("vote cast", zap.Int64("video_id", videoID), zap.Int64("user_id", userID), zap.Int("total", total))
	return total, nil
}

func (uc *VoteUseCase) Rankings(ctx context.Context, skip, limit int) ([]entity.RankingEntry, error) {
	if skip < 0 || limit < 1 || limit > MaxRankingLimit {
		return nil, apperror.WithMessage(apperror.ErrBadRequest,
			fmt.Sprintf("skip must be >= 0 and limit between 1 and %d", MaxRankingLimit))
	}

	entries, err := uc.votes.Rankings(ctx, skip, limit)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}
	if len(entries) == 0 {
		return nil, apperror.WithMessage(apperror.ErrNotFound, "No ranking data is available")
	}
	return entries, nil
}
