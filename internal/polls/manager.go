// Package polls runs the poll lifecycle: posting a poll, keeping its card current while
// votes arrive, and closing it with a final announcement once it expires.
package polls

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/dailypoll/backend/internal/eventlog"
	"github.com/dailypoll/backend/internal/metrics"
	"github.com/dailypoll/backend/internal/models"
	"github.com/dailypoll/backend/internal/questions"
	"github.com/dailypoll/backend/internal/settings"
	"github.com/dailypoll/backend/internal/store"
	"github.com/dailypoll/backend/internal/tally"
)

// ErrNoChannel is returned by PostNow when neither a configured nor a fallback channel exists.
var ErrNoChannel = errors.New("no poll channel configured")

// renderTimeout bounds background card refreshes.
const renderTimeout = 10 * time.Second

// Platform is the chat platform as seen by the lifecycle.
type Platform interface {
	// CheckChannel fails with models.ErrChannelUnavailable or models.ErrPermissionDenied.
	CheckChannel(ctx context.Context, channelID string) error
	Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (messageID string, err error)
	Edit(ctx context.Context, edit *discordgo.MessageEdit) error
	Fetch(ctx context.Context, channelID, messageID string) (*discordgo.Message, error)
}

// QuestionPicker supplies questions for new polls.
type QuestionPicker interface {
	Pick(ctx context.Context) (models.Question, questions.Origin)
}

// ChannelSettings reads the configured poll channel.
type ChannelSettings interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// Deps are the collaborators of a Manager. Mirror and Metrics may be nil.
type Deps struct {
	Store     store.Store
	Platform  Platform
	Questions QuestionPicker
	Settings  ChannelSettings
	Mirror    *eventlog.Mirror
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Options tune timing.
type Options struct {
	Location *time.Location
	Duration time.Duration // lifetime of a new poll
	LogWait  time.Duration // how long create/close wait for the event mirror
}

// Manager owns poll creation, live refresh and expiry.
type Manager struct {
	store     store.Store
	tally     *tally.Engine
	platform  Platform
	questions QuestionPicker
	settings  ChannelSettings
	render    *Renderer
	mirror    *eventlog.Mirror
	metrics   *metrics.Metrics
	logger    *zap.Logger
	opts      Options
	now       func() time.Time

	wg sync.WaitGroup
	// cards serialises edits of one poll's card: a refresh holds it across its active
	// check and edit, a sweep across closing and restyling.
	cards sync.Map // poll ID -> *sync.Mutex
}

// NewManager creates a lifecycle manager.
func NewManager(deps Deps, opts Options) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Duration <= 0 {
		opts.Duration = 24 * time.Hour
	}
	return &Manager{
		store:     deps.Store,
		tally:     tally.NewEngine(deps.Store),
		platform:  deps.Platform,
		questions: deps.Questions,
		settings:  deps.Settings,
		render:    NewRenderer(opts.Location),
		mirror:    deps.Mirror,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Renderer exposes the embed builder used for this manager's polls.
func (m *Manager) Renderer() *Renderer { return m.render }

// Create posts a new poll card to channelID and records it.
func (m *Manager) Create(ctx context.Context, channelID string, q models.Question, duration time.Duration) (*models.Poll, error) {
	if err := m.platform.CheckChannel(ctx, channelID); err != nil {
		return nil, err
	}
	if duration <= 0 {
		duration = m.opts.Duration
	}

	now := m.now()
	p := &models.Poll{
		ChannelID: channelID,
		QuestionA: q.A,
		QuestionB: q.B,
		Tag:       q.Tag,
		StartAt:   now,
		EndAt:     now.Add(duration),
		IsActive:  true,
	}
	messageID, err := m.platform.Send(ctx, channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{m.render.LiveEmbed(p, models.Tally{})},
		Components: VoteButtons(),
	})
	if err != nil {
		m.metrics.RenderFailed("post")
		return nil, fmt.Errorf("post poll: %w", err)
	}
	p.MessageID = messageID

	if err := m.store.CreatePoll(ctx, p); err != nil {
		// The card is already visible; strip its buttons so nobody votes into nothing.
		m.stripControls(ctx, p)
		return nil, fmt.Errorf("%w: create poll: %v", models.ErrStorageWrite, err)
	}
	m.metrics.PollCreated()
	m.logger.Info("poll created",
		zap.Int64("poll_id", p.ID),
		zap.String("channel_id", channelID),
		zap.String("message_id", messageID),
		zap.Time("end_at", p.EndAt))

	evt := m.event(models.EventPollCreated, p, models.Tally{})
	evt.DurationHours = roundTenth(duration.Hours())
	m.mirror.Record(evt, m.opts.LogWait)
	return p, nil
}

// PostNow picks a question and posts it to the configured channel, or to fallbackChannelID
// when no channel has been configured.
func (m *Manager) PostNow(ctx context.Context, fallbackChannelID string) (*models.Poll, error) {
	channelID, ok, err := m.settings.Get(ctx, settings.PollChannelKey)
	if err != nil {
		return nil, fmt.Errorf("read poll channel: %w", err)
	}
	if !ok || channelID == "" {
		channelID = fallbackChannelID
	}
	if channelID == "" {
		return nil, ErrNoChannel
	}
	q, origin := m.questions.Pick(ctx)
	m.logger.Debug("question picked", zap.String("origin", string(origin)), zap.String("tag", q.Tag))
	return m.Create(ctx, channelID, q, m.opts.Duration)
}

// FindActive returns the active poll posted as messageID, or nil.
func (m *Manager) FindActive(ctx context.Context, messageID string) (*models.Poll, error) {
	return m.store.GetActivePollByMessage(ctx, messageID)
}

// Tally recomputes the tally of p.
func (m *Manager) Tally(ctx context.Context, p *models.Poll) (models.Tally, error) {
	return m.tally.Compute(ctx, p.ID)
}

// Results builds the live results embed for an open poll.
func (m *Manager) Results(ctx context.Context, p *models.Poll) (*discordgo.MessageEmbed, error) {
	t, err := m.tally.Compute(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return m.render.ResultsEmbed(p, t, false), nil
}

// Summary is an active poll with its current tally.
type Summary struct {
	Poll  models.Poll  `json:"poll"`
	Tally models.Tally `json:"tally"`
}

// Active lists active polls with live tallies.
func (m *Manager) Active(ctx context.Context) ([]Summary, error) {
	polls, err := m.store.ListActivePolls(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(polls))
	for _, p := range polls {
		t, err := m.tally.Compute(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{Poll: p, Tally: t})
	}
	return out, nil
}

// Refresh re-renders p's card with a fresh tally in the background. Failures are logged.
func (m *Manager) Refresh(p *models.Poll) {
	poll := *p
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
		defer cancel()
		if err := m.refresh(ctx, &poll); err != nil {
			m.metrics.RenderFailed("refresh")
			m.logger.Warn("refresh poll card failed", zap.Int64("poll_id", poll.ID), zap.Error(err))
		}
	}()
}

// Wait blocks until background refreshes have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) lockCard(pollID int64) func() {
	v, _ := m.cards.LoadOrStore(pollID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (m *Manager) refresh(ctx context.Context, p *models.Poll) error {
	t, err := m.tally.Compute(ctx, p.ID)
	if err != nil {
		return err
	}

	unlock := m.lockCard(p.ID)
	defer unlock()
	// A sweep may have closed the poll since the vote; never repaint a closed card as live.
	current, err := m.store.GetActivePollByMessage(ctx, p.MessageID)
	if err != nil {
		return err
	}
	if current == nil {
		m.cards.Delete(p.ID)
		return nil
	}
	embeds := []*discordgo.MessageEmbed{m.render.LiveEmbed(p, t)}
	return m.platform.Edit(ctx, &discordgo.MessageEdit{
		Channel: p.ChannelID,
		ID:      p.MessageID,
		Embeds:  &embeds,
	})
}

// Sweep closes every active poll whose end time has passed and announces its result.
// Each poll is handled independently; it returns the number of polls this call closed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	start := m.now()
	defer m.metrics.ObserveSweep(start)

	active, err := m.store.ListActivePolls(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active polls: %w", err)
	}
	closed := 0
	for i := range active {
		p := &active[i]
		if !p.Expired(start) {
			continue
		}
		if m.close(ctx, p) {
			closed++
		}
	}
	return closed, nil
}

// close flips p inactive and announces it while holding the card lock, so an in-flight
// refresh either finishes before the restyle or sees the poll closed.
func (m *Manager) close(ctx context.Context, p *models.Poll) bool {
	unlock := m.lockCard(p.ID)
	defer unlock()

	ok, err := m.store.ClosePoll(ctx, p.ID)
	if err != nil {
		m.logger.Error("close poll failed", zap.Int64("poll_id", p.ID), zap.Error(err))
		return false
	}
	if !ok {
		// Someone else closed it first.
		return false
	}
	p.IsActive = false
	m.metrics.PollClosed()
	m.announce(ctx, p)
	m.cards.Delete(p.ID)
	return true
}

// announce restyles the original card and posts the final result. Every step is best effort.
func (m *Manager) announce(ctx context.Context, p *models.Poll) {
	log := m.logger.With(zap.Int64("poll_id", p.ID), zap.String("message_id", p.MessageID))

	t, err := m.tally.Compute(ctx, p.ID)
	if err != nil {
		log.Error("final tally failed", zap.Error(err))
		return
	}

	last := m.render.LiveEmbed(p, t)
	if msg, err := m.platform.Fetch(ctx, p.ChannelID, p.MessageID); err != nil {
		log.Warn("fetch poll card failed", zap.Error(err))
	} else if len(msg.Embeds) > 0 {
		last = msg.Embeds[0]
	}
	embeds := []*discordgo.MessageEmbed{m.render.ClosedEmbed(last)}
	components := []discordgo.MessageComponent{}
	if err := m.platform.Edit(ctx, &discordgo.MessageEdit{
		Channel:    p.ChannelID,
		ID:         p.MessageID,
		Embeds:     &embeds,
		Components: &components,
	}); err != nil {
		m.metrics.RenderFailed("close")
		log.Warn("restyle closed poll card failed", zap.Error(err))
	}

	if _, err := m.platform.Send(ctx, p.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{m.render.ResultsEmbed(p, t, true)},
	}); err != nil {
		m.metrics.RenderFailed("announce")
		log.Warn("post final result failed", zap.Error(err))
	}

	log.Info("poll closed", zap.Int("a", t.A), zap.Int("b", t.B), zap.Int("total", t.Total))

	evt := m.event(models.EventPollClosed, p, t)
	end := m.now()
	evt.PollEnd = end.In(m.opts.Location).Format(time.RFC3339)
	evt.DurationHours = roundTenth(end.Sub(p.StartAt).Hours())
	m.mirror.Record(evt, m.opts.LogWait)
}

func (m *Manager) stripControls(ctx context.Context, p *models.Poll) {
	components := []discordgo.MessageComponent{}
	if err := m.platform.Edit(ctx, &discordgo.MessageEdit{
		Channel:    p.ChannelID,
		ID:         p.MessageID,
		Components: &components,
	}); err != nil {
		m.logger.Warn("strip controls from orphaned card failed", zap.String("message_id", p.MessageID), zap.Error(err))
	}
}

func (m *Manager) event(typ models.EventType, p *models.Poll, t models.Tally) models.Event {
	return models.Event{
		Type:       typ,
		Timestamp:  m.now().In(m.opts.Location).Format(time.RFC3339),
		PollID:     p.ID,
		MessageID:  p.MessageID,
		ChannelID:  p.ChannelID,
		QuestionA:  p.QuestionA,
		QuestionB:  p.QuestionB,
		Tag:        p.Tag,
		A:          t.A,
		B:          t.B,
		APct:       t.APct,
		BPct:       t.BPct,
		TotalVotes: t.Total,
		PollStart:  p.StartAt.In(m.opts.Location).Format(time.RFC3339),
		PollEnd:    p.EndAt.In(m.opts.Location).Format(time.RFC3339),
	}
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
