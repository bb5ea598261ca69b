package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dailypoll/backend/internal/models"
)

// Postgres is the pgx-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Store on an already migrated pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ Store = (*Postgres)(nil)

const pollColumns = `id, message_id, channel_id, question_a, question_b, COALESCE(tag, ''), start_at, end_at, is_active`

func scanPoll(row pgx.Row) (*models.Poll, error) {
	var p models.Poll
	err := row.Scan(&p.ID, &p.MessageID, &p.ChannelID, &p.QuestionA, &p.QuestionB, &p.Tag, &p.StartAt, &p.EndAt, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetSetting returns a setting value by key.
func (r *Postgres) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(value, '') FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// SetSetting upserts a setting.
func (r *Postgres) SetSetting(ctx context.Context, key, value string) error {
	const query = `INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	_, err := r.pool.Exec(ctx, query, key, value)
	return err
}

// CreatePoll inserts a new poll.
func (r *Postgres) CreatePoll(ctx context.Context, p *models.Poll) error {
	const query = `INSERT INTO polls (message_id, channel_id, question_a, question_b, tag, start_at, end_at, is_active)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		RETURNING id`
	return r.pool.QueryRow(ctx, query, p.MessageID, p.ChannelID, p.QuestionA, p.QuestionB, p.Tag, p.StartAt, p.EndAt, p.IsActive).
		Scan(&p.ID)
}

// GetActivePollByMessage returns the active poll for a message.
func (r *Postgres) GetActivePollByMessage(ctx context.Context, messageID string) (*models.Poll, error) {
	return scanPoll(r.pool.QueryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE message_id = $1 AND is_active`, messageID))
}

// GetPollByMessage returns the most recent poll for a message.
func (r *Postgres) GetPollByMessage(ctx context.Context, messageID string) (*models.Poll, error) {
	return scanPoll(r.pool.QueryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE message_id = $1 ORDER BY id DESC LIMIT 1`, messageID))
}

// ListActivePolls returns all active polls.
func (r *Postgres) ListActivePolls(ctx context.Context) ([]models.Poll, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pollColumns+` FROM polls WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// ClosePoll sets is_active to false if it is still true.
func (r *Postgres) ClosePoll(ctx context.Context, pollID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE polls SET is_active = FALSE WHERE id = $1 AND is_active`, pollID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertVote records a user's choice. One row per user per poll.
func (r *Postgres) UpsertVote(ctx context.Context, v models.Vote) error {
	const query = `INSERT INTO votes (poll_id, user_id, choice, voted_at)
		SELECT $1::bigint, $2::text, $3::text, $4::timestamptz WHERE EXISTS (SELECT 1 FROM polls WHERE id = $1 AND is_active)
		ON CONFLICT (poll_id, user_id) DO UPDATE SET choice = EXCLUDED.choice, voted_at = EXCLUDED.voted_at`
	tag, err := r.pool.Exec(ctx, query, v.PollID, v.UserID, string(v.Choice), v.VotedAt)
	if err != nil {
		return fmt.Errorf("upsert vote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPollClosed
	}
	return nil
}

// GetVote returns one vote row.
func (r *Postgres) GetVote(ctx context.Context, pollID int64, userID string) (*models.Vote, error) {
	var v models.Vote
	var choice string
	err := r.pool.QueryRow(ctx, `SELECT poll_id, user_id, choice, voted_at FROM votes WHERE poll_id = $1 AND user_id = $2`, pollID, userID).
		Scan(&v.PollID, &v.UserID, &choice, &v.VotedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	v.Choice = models.Choice(choice)
	return &v, nil
}

// CountVotes counts A and B votes for a poll.
func (r *Postgres) CountVotes(ctx context.Context, pollID int64) (int, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT choice, COUNT(*) FROM votes WHERE poll_id = $1 GROUP BY choice`, pollID)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()
	var counts []countRow
	for rows.Next() {
		var c countRow
		if err := rows.Scan(&c.Choice, &c.C); err != nil {
			return 0, 0, err
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	a, b := sumCounts(counts)
	return a, b, nil
}

// VoterStats summarises a user's votes.
func (r *Postgres) VoterStats(ctx context.Context, userID string) (models.VoterStats, error) {
	const query = `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE v.choice = 'A'),
			COUNT(*) FILTER (WHERE v.choice = 'B'),
			COUNT(*) FILTER (WHERE p.is_active)
		FROM votes v JOIN polls p ON p.id = v.poll_id
		WHERE v.user_id = $1`
	s := models.VoterStats{UserID: userID}
	err := r.pool.QueryRow(ctx, query, userID).Scan(&s.Total, &s.A, &s.B, &s.Open)
	return s, err
}

func (r *Postgres) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the pool.
func (r *Postgres) Close() error {
	r.pool.Close()
	return nil
}
