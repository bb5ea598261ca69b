// Package store persists settings, polls and votes.
//
// Two backends implement Store: Postgres (pgx) and SQLite (gorm). Both honour the same
// invariants: one vote row per (poll, voter), vote writes only land on active polls, and
// a poll can be closed exactly once.
package store

import (
	"context"

	"github.com/dailypoll/backend/internal/models"
)

// Store is the durable state behind the poll lifecycle.
type Store interface {
	// GetSetting returns the value for key; ok is false when the key was never set.
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
	// SetSetting inserts or updates key in one statement.
	SetSetting(ctx context.Context, key, value string) error

	// CreatePoll inserts p and fills in its ID.
	CreatePoll(ctx context.Context, p *models.Poll) error
	// GetActivePollByMessage returns the active poll posted as messageID, or nil.
	GetActivePollByMessage(ctx context.Context, messageID string) (*models.Poll, error)
	// GetPollByMessage returns the poll posted as messageID regardless of state, or nil.
	GetPollByMessage(ctx context.Context, messageID string) (*models.Poll, error)
	// ListActivePolls returns every poll whose active flag is set.
	ListActivePolls(ctx context.Context) ([]models.Poll, error)
	// ClosePoll flips the active flag off. closed is true only for the call that performed the flip.
	ClosePoll(ctx context.Context, pollID int64) (closed bool, err error)

	// UpsertVote records v in one insert-or-update statement, conditional on the poll being
	// active. It returns models.ErrPollClosed when the poll is not active.
	UpsertVote(ctx context.Context, v models.Vote) error
	// GetVote returns the vote of userID on pollID, or nil.
	GetVote(ctx context.Context, pollID int64, userID string) (*models.Vote, error)
	// CountVotes returns the number of A and B votes on pollID.
	CountVotes(ctx context.Context, pollID int64) (a, b int, err error)
	// VoterStats summarises all votes by userID.
	VoterStats(ctx context.Context, userID string) (models.VoterStats, error)

	// Ping checks the database is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// countRow is one GROUP BY choice result.
type countRow struct {
	Choice string
	C      int
}

func sumCounts(rows []countRow) (a, b int) {
	for _, r := range rows {
		switch models.Choice(r.Choice) {
		case models.ChoiceA:
			a = r.C
		case models.ChoiceB:
			b = r.C
		}
	}
	return a, b
}
