package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailypoll/backend/internal/models"
	"github.com/dailypoll/backend/pkg/database"
)

func newSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := database.NewSQLite(t.TempDir(), nil)
	require.NoError(t, err)
	s, err := NewSQLite(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createPoll(t *testing.T, s *SQLite, messageID string) *models.Poll {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	p := &models.Poll{
		MessageID: messageID,
		ChannelID: "chan",
		QuestionA: "朝早",
		QuestionB: "夜晚",
		StartAt:   now,
		EndAt:     now.Add(time.Hour),
		IsActive:  true,
	}
	require.NoError(t, s.CreatePoll(context.Background(), p))
	require.NotZero(t, p.ID)
	return p
}

func vote(pollID int64, user string, c models.Choice) models.Vote {
	return models.Vote{PollID: pollID, UserID: user, Choice: c, VotedAt: time.Now()}
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	_, ok, err := s.GetSetting(ctx, "poll_channel_id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSetting(ctx, "poll_channel_id", "1"))
	require.NoError(t, s.SetSetting(ctx, "poll_channel_id", "2"))

	v, ok, err := s.GetSetting(ctx, "poll_channel_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestPollLookup(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	p := createPoll(t, s, "m1")

	got, err := s.GetActivePollByMessage(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "朝早", got.QuestionA)

	got, err = s.GetActivePollByMessage(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := s.ListActivePolls(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestClosePollOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	p := createPoll(t, s, "m1")

	closed, err := s.ClosePoll(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = s.ClosePoll(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, closed)

	active, err := s.GetActivePollByMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, active)

	poll, err := s.GetPollByMessage(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, poll)
	assert.False(t, poll.IsActive)

	list, err := s.ListActivePolls(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpsertVoteKeepsOneRowPerVoter(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	p := createPoll(t, s, "m1")

	require.NoError(t, s.UpsertVote(ctx, vote(p.ID, "u1", models.ChoiceA)))
	require.NoError(t, s.UpsertVote(ctx, vote(p.ID, "u1", models.ChoiceB)))
	require.NoError(t, s.UpsertVote(ctx, vote(p.ID, "u2", models.ChoiceB)))

	v, err := s.GetVote(ctx, p.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, models.ChoiceB, v.Choice)

	a, b, err := s.CountVotes(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, a)
	assert.Equal(t, 2, b)
}

func TestUpsertVoteRejectsClosedPoll(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	p := createPoll(t, s, "m1")
	require.NoError(t, s.UpsertVote(ctx, vote(p.ID, "u1", models.ChoiceA)))

	_, err := s.ClosePoll(ctx, p.ID)
	require.NoError(t, err)

	err = s.UpsertVote(ctx, vote(p.ID, "u1", models.ChoiceB))
	assert.ErrorIs(t, err, models.ErrPollClosed)
	err = s.UpsertVote(ctx, vote(p.ID, "u2", models.ChoiceB))
	assert.ErrorIs(t, err, models.ErrPollClosed)

	v, err := s.GetVote(ctx, p.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ChoiceA, v.Choice)

	assert.ErrorIs(t, s.UpsertVote(ctx, vote(9999, "u1", models.ChoiceA)), models.ErrPollClosed)
}

func TestCountVotesEmpty(t *testing.T) {
	s := newSQLite(t)
	p := createPoll(t, s, "m1")
	a, b, err := s.CountVotes(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Zero(t, a)
	assert.Zero(t, b)
}

func TestVoterStats(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	p1 := createPoll(t, s, "m1")
	p2 := createPoll(t, s, "m2")
	p3 := createPoll(t, s, "m3")

	require.NoError(t, s.UpsertVote(ctx, vote(p1.ID, "u1", models.ChoiceA)))
	require.NoError(t, s.UpsertVote(ctx, vote(p2.ID, "u1", models.ChoiceB)))
	require.NoError(t, s.UpsertVote(ctx, vote(p3.ID, "u1", models.ChoiceA)))
	require.NoError(t, s.UpsertVote(ctx, vote(p3.ID, "u2", models.ChoiceB)))
	_, err := s.ClosePoll(ctx, p1.ID)
	require.NoError(t, err)

	stats, err := s.VoterStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.VoterStats{UserID: "u1", Total: 3, A: 2, B: 1, Open: 2}, stats)

	stats, err = s.VoterStats(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, models.VoterStats{UserID: "nobody"}, stats)
}

func TestPing(t *testing.T) {
	s := newSQLite(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestSumCounts(t *testing.T) {
	a, b := sumCounts([]countRow{{Choice: "B", C: 4}, {Choice: "A", C: 1}, {Choice: "x", C: 9}})
	assert.Equal(t, 1, a)
	assert.Equal(t, 4, b)
}
