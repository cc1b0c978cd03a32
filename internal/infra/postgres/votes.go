package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/risingstars/video-pipeline/internal/domain/entity"
	"github.com/risingstars/video-pipeline/internal/domain/port"
)

type VoteRepository struct {
	pool *pgxpool.Pool
}

var _ port.VoteRepository = (*VoteRepository)(nil)

func NewVoteRepository(pool *pgxpool.Pool) *VoteRepository {
	return &VoteRepository{pool: pool}
}

// CastVote locks the video row so the counter and the votes table move
// together. The unique (video_id, user_id) constraint enforces one vote.
func (r *VoteRepository) CastVote(ctx context.Context, videoID, userID int64) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin vote: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM videos WHERE id=$1 AND status='processed' AND is_public FOR UPDATE`,
		videoID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, entity.ErrVideoNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock video: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO votes (video_id, user_id) VALUES ($1,$2) ON CONFLICT (video_id, user_id) DO NOTHING`,
		videoID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert vote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, entity.ErrAlreadyVoted
	}

	var total int
	err = tx.QueryRow(ctx,
		`UPDATE videos SET votes_count = votes_count + 1 WHERE id=$1 RETURNING votes_count`,
		videoID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("increment votes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit vote: %w", err)
	}
	return total, nil
}

func (r *VoteRepository) Rankings(ctx context.Context, skip, limit int) ([]entity.RankingEntry, error) {
	query := `
		SELECT u.id, u.first_name, COALESCE(SUM(v.votes_count), 0) AS votes
		FROM users u
		JOIN videos v ON v.owner_id = u.id
		WHERE v.status='processed'
		GROUP BY u.id, u.first_name
		ORDER BY votes DESC, u.id
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("query rankings: %w", err)
	}
	defer rows.Close()

	entries := []entity.RankingEntry{}
	for rows.Next() {
		var e entity.RankingEntry
		if err := rows.Scan(&e.OwnerID, &e.Player, &e.Votes); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query rankings: %w", err)
	}
	return entries, nil
}
