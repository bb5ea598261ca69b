package polls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dailypoll/backend/internal/models"
)

// Voter identifies who pressed a vote button.
type Voter struct {
	ID   string
	Name string
}

// Intake records votes. The store upsert is the only synchronisation point: concurrent
// presses by one voter collapse into a single row holding the latest choice.
type Intake struct {
	manager *Manager
	logWait time.Duration
}

// NewIntake creates vote intake on top of manager. logWait bounds how long a vote waits
// for the event mirror.
func NewIntake(manager *Manager, logWait time.Duration) *Intake {
	return &Intake{manager: manager, logWait: logWait}
}

// CastVote records voter's choice on p. It fails with models.ErrPollClosed when p is no
// longer active, and with a models.ErrStorageWrite-wrapped error when the write fails.
// The card refresh and event mirror run after the write and never affect the result.
func (in *Intake) CastVote(ctx context.Context, p *models.Poll, voter Voter, choice models.Choice) error {
	m := in.manager
	if !choice.Valid() {
		return fmt.Errorf("invalid choice %q", choice)
	}

	err := m.store.UpsertVote(ctx, models.Vote{
		PollID:  p.ID,
		UserID:  voter.ID,
		Choice:  choice,
		VotedAt: m.now(),
	})
	switch {
	case errors.Is(err, models.ErrPollClosed):
		m.metrics.VoteRejected("closed")
		return models.ErrPollClosed
	case err != nil:
		m.metrics.VoteRejected("error")
		m.logger.Error("record vote failed", zap.Int64("poll_id", p.ID), zap.String("user_id", voter.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
	}
	m.metrics.Vote(string(choice))

	m.Refresh(p)

	if m.mirror.Enabled() {
		t, err := m.tally.Compute(ctx, p.ID)
		if err != nil {
			m.logger.Warn("tally for vote event failed", zap.Int64("poll_id", p.ID), zap.Error(err))
			return nil
		}
		evt := m.event(models.EventVote, p, t)
		evt.UserID = voter.ID
		evt.Username = voter.Name
		evt.Choice = choice
		m.mirror.Record(evt, in.logWait)
	}
	return nil
}

// Stats summarises every vote userID has cast.
func (in *Intake) Stats(ctx context.Context, userID string) (models.VoterStats, error) {
	return in.manager.store.VoterStats(ctx, userID)
}
