package polls

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailypoll/backend/internal/models"
)

func TestRevoteOverwrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, err := h.manager.Create(ctx, "c1", models.Question{A: "a", B: "b"}, time.Hour)
	require.NoError(t, err)

	require.NoError(t, h.intake.CastVote(ctx, p, Voter{ID: "x", Name: "X"}, models.ChoiceA))
	require.NoError(t, h.intake.CastVote(ctx, p, Voter{ID: "x", Name: "X"}, models.ChoiceB))
	h.manager.Wait()

	v, err := h.store.GetVote(ctx, p.ID, "x")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, models.ChoiceB, v.Choice)

	tl, err := h.manager.Tally(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 0, tl.A)
	assert.Equal(t, 1, tl.B)

	card := h.platform.message(p.MessageID)
	assert.Equal(t, "A：0（0.0%）\nB：1（100.0%）", card.Embeds[0].Fields[0].Value)
}

func TestConcurrentPressesKeepOneRow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, err := h.manager.Create(ctx, "c1", models.Question{A: "a", B: "b"}, time.Hour)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		choice := models.ChoiceA
		if i%2 == 1 {
			choice = models.ChoiceB
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.intake.CastVote(ctx, p, Voter{ID: "same"}, choice))
		}()
	}
	wg.Wait()
	h.manager.Wait()

	a, b, err := h.store.CountVotes(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a+b)
}

func TestVoteOnClosedPoll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, err := h.manager.Create(ctx, "c1", models.Question{A: "a", B: "b"}, time.Minute)
	require.NoError(t, err)

	h.clock = h.clock.Add(time.Hour)
	_, err = h.manager.Sweep(ctx)
	require.NoError(t, err)

	err = h.intake.CastVote(ctx, p, Voter{ID: "late"}, models.ChoiceA)
	assert.ErrorIs(t, err, models.ErrPollClosed)

	v, err := h.store.GetVote(ctx, p.ID, "late")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestVoteInvalidChoice(t *testing.T) {
	h := newHarness(t)
	p, err := h.manager.Create(context.Background(), "c1", models.Question{A: "a", B: "b"}, time.Hour)
	require.NoError(t, err)
	assert.Error(t, h.intake.CastVote(context.Background(), p, Voter{ID: "u"}, models.Choice("C")))
}

func TestVoteSurvivesDisplayFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, err := h.manager.Create(ctx, "c1", models.Question{A: "a", B: "b"}, time.Hour)
	require.NoError(t, err)
	h.platform.editErr = fmt.Errorf("rate limited")

	require.NoError(t, h.intake.CastVote(ctx, p, Voter{ID: "u"}, models.ChoiceA))
	h.manager.Wait()

	a, _, err := h.store.CountVotes(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a)
}

func TestVoteStorageFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, err := h.manager.Create(ctx, "c1", models.Question{A: "a", B: "b"}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, h.store.Close())

	err = h.intake.CastVote(ctx, p, Voter{ID: "u"}, models.ChoiceA)
	assert.ErrorIs(t, err, models.ErrStorageWrite)
}

func TestVoterStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.manager.Create(ctx, "c1", models.Question{A: "a", B: "b"}, time.Minute)
	require.NoError(t, err)
	second, err := h.manager.Create(ctx, "c1", models.Question{A: "c", B: "d"}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, h.intake.CastVote(ctx, first, Voter{ID: "u"}, models.ChoiceA))
	require.NoError(t, h.intake.CastVote(ctx, second, Voter{ID: "u"}, models.ChoiceB))
	h.manager.Wait()

	h.clock = h.clock.Add(10 * time.Minute)
	_, err = h.manager.Sweep(ctx)
	require.NoError(t, err)

	stats, err := h.intake.Stats(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, models.VoterStats{UserID: "u", Total: 2, A: 1, B: 1, Open: 1}, stats)
}
