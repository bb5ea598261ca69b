package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dailypoll/backend/internal/models"
)

// SQLite is the gorm-backed Store used for single-node deployments and tests.
type SQLite struct {
	db *gorm.DB
}

var _ Store = (*SQLite)(nil)

// NewSQLite migrates the schema on db and returns a Store.
func NewSQLite(db *gorm.DB) (*SQLite, error) {
	if err := db.AutoMigrate(&models.Setting{}, &models.Poll{}, &models.Vote{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	// At most one active poll per message.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_polls_active_message ON polls(message_id) WHERE is_active`).Error; err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &SQLite{db: db}, nil
}

// DB exposes the underlying handle.
func (s *SQLite) DB() *gorm.DB {
	return s.db
}

func (s *SQLite) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var setting models.Setting
	err := s.db.WithContext(ctx).Where("`key` = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return setting.Value, true, nil
}

func (s *SQLite) SetSetting(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.Setting{Key: key, Value: value}).Error
}

func (s *SQLite) CreatePoll(ctx context.Context, p *models.Poll) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *SQLite) findPoll(ctx context.Context, query interface{}, args ...interface{}) (*models.Poll, error) {
	var p models.Poll
	err := s.db.WithContext(ctx).Where(query, args...).Order("id DESC").First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *SQLite) GetActivePollByMessage(ctx context.Context, messageID string) (*models.Poll, error) {
	return s.findPoll(ctx, "message_id = ? AND is_active = ?", messageID, true)
}

func (s *SQLite) GetPollByMessage(ctx context.Context, messageID string) (*models.Poll, error) {
	return s.findPoll(ctx, "message_id = ?", messageID)
}

func (s *SQLite) ListActivePolls(ctx context.Context) ([]models.Poll, error) {
	var list []models.Poll
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&list).Error
	return list, err
}

func (s *SQLite) ClosePoll(ctx context.Context, pollID int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Poll{}).
		Where("id = ? AND is_active = ?", pollID, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpsertVote relies on sqlite's upsert; the WHERE clause on the SELECT is required by
// sqlite to disambiguate ON CONFLICT and doubles as the active-poll guard.
func (s *SQLite) UpsertVote(ctx context.Context, v models.Vote) error {
	const query = `INSERT INTO votes (poll_id, user_id, choice, voted_at)
		SELECT ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM polls WHERE id = ? AND is_active = ?)
		ON CONFLICT (poll_id, user_id) DO UPDATE SET choice = excluded.choice, voted_at = excluded.voted_at`
	res := s.db.WithContext(ctx).Exec(query, v.PollID, v.UserID, string(v.Choice), v.VotedAt.UTC(), v.PollID, true)
	if res.Error != nil {
		return fmt.Errorf("upsert vote: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrPollClosed
	}
	return nil
}

func (s *SQLite) GetVote(ctx context.Context, pollID int64, userID string) (*models.Vote, error) {
	var v models.Vote
	err := s.db.WithContext(ctx).Where("poll_id = ? AND user_id = ?", pollID, userID).First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (s *SQLite) CountVotes(ctx context.Context, pollID int64) (int, int, error) {
	var rows []countRow
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("choice, COUNT(*) AS c").
		Where("poll_id = ?", pollID).
		Group("choice").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}
	a, b := sumCounts(rows)
	return a, b, nil
}

func (s *SQLite) VoterStats(ctx context.Context, userID string) (models.VoterStats, error) {
	var row struct {
		Total int
		A     int
		B     int
		Open  int
	}
	err := s.db.WithContext(ctx).Raw(`SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN v.choice = 'A' THEN 1 ELSE 0 END), 0) AS a,
			COALESCE(SUM(CASE WHEN v.choice = 'B' THEN 1 ELSE 0 END), 0) AS b,
			COALESCE(SUM(CASE WHEN p.is_active THEN 1 ELSE 0 END), 0) AS open
		FROM votes v JOIN polls p ON p.id = v.poll_id
		WHERE v.user_id = ?`, userID).Scan(&row).Error
	if err != nil {
		return models.VoterStats{}, err
	}
	return models.VoterStats{UserID: userID, Total: row.Total, A: row.A, B: row.B, Open: row.Open}, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
