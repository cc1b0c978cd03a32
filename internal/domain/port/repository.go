package port

import (
	"context"
	"time"

	"github.com/risingstars/video-pipeline/internal/domain/entity"
)

type VideoRepository interface {
	Create(ctx context.Context, video *entity.VideoRecord) error
	FindByID(ctx context.Context, id int64) (*entity.VideoRecord, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]entity.VideoRecord, error)
	ListPublic(ctx context.Context) ([]entity.VideoRecord, error)
	// Delete removes the record only while it is still uploaded.
	Delete(ctx context.Context, id int64) error
	// MarkProcessed sets status, processed_at and filename in one update.
	MarkProcessed(ctx context.Context, id int64, processedKey string, at time.Time) error
}

type VoteRepository interface {
	// CastVote records one vote and returns the video's new total.
	CastVote(ctx context.Context, videoID, userID int64) (int, error)
	Rankings(ctx context.Context, skip, limit int) ([]entity.RankingEntry, error)
}
