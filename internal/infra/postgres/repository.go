package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/risingstars/video-pipeline/internal/domain/entity"
	"github.com/risingstars/video-pipeline/internal/domain/port"
)

const videoColumns = `id, title, filename, status, uploaded_at, processed_at, owner_id, votes_count, is_public`

type VideoRepository struct {
	pool *pgxpool.Pool
}

var _ port.VideoRepository = (*VideoRepository)(nil)

func NewVideoRepository(pool *pgxpool.Pool) *VideoRepository {
	return &VideoRepository{pool: pool}
}

func (r *VideoRepository) Create(ctx context.Context, video *entity.VideoRecord) error {
	query := `
		INSERT INTO videos (title, filename, status, uploaded_at, owner_id, votes_count, is_public)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		video.Title, video.Filename, string(video.Status), video.UploadedAt,
		video.OwnerID, video.VotesCount, video.IsPublic,
	).Scan(&video.ID)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

func (r *VideoRepository) FindByID(ctx context.Context, id int64) (*entity.VideoRecord, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id=$1`

	video, err := scanVideo(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find video by id: %w", err)
	}
	return video, nil
}

func (r *VideoRepository) ListByOwner(ctx context.Context, ownerID int64) ([]entity.VideoRecord, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE owner_id=$1 ORDER BY uploaded_at DESC, id DESC`
	return r.list(ctx, query, ownerID)
}

func (r *VideoRepository) ListPublic(ctx context.Context) ([]entity.VideoRecord, error) {
	query := `
		SELECT ` + videoColumns + ` FROM videos
		WHERE status='processed' AND is_public
		ORDER BY votes_count DESC, id`
	return r.list(ctx, query)
}

func (r *VideoRepository) list(ctx context.Context, query string, args ...any) ([]entity.VideoRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	videos := []entity.VideoRecord{}
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, *video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

func (r *VideoRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE id=$1 AND status='uploaded'`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM videos WHERE id=$1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if exists {
		return entity.ErrVideoNotDeletable
	}
	return entity.ErrVideoNotFound
}

// MarkProcessed is a single statement so status, processed_at and filename
// are never observed half-updated. A repeat keeps the first processed_at.
func (r *VideoRepository) MarkProcessed(ctx context.Context, id int64, processedKey string, at time.Time) error {
	query := `
		UPDATE videos SET
			status='processed',
			processed_at=COALESCE(processed_at, $2),
			filename=$3
		WHERE id=$1`

	tag, err := r.pool.Exec(ctx, query, id, at.UTC(), processedKey)
	if err != nil {
		return fmt.Errorf("mark video processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrVideoNotFound
	}
	return nil
}

func scanVideo(row pgx.Row) (*entity.VideoRecord, error) {
	video := &entity.VideoRecord{}
	var status string
	err := row.Scan(
		&video.ID, &video.Title, &video.Filename, &status,
		&video.UploadedAt, &video.ProcessedAt, &video.OwnerID,
		&video.VotesCount, &video.IsPublic,
	)
	if err != nil {
		return nil, err
	}
	video.Status = entity.VideoStatus(status)
	return video, nil
}
