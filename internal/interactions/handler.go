package interactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/dailypoll/backend/internal/models"
	"github.com/dailypoll/backend/internal/polls"
	"github.com/dailypoll/backend/internal/questions"
	"github.com/dailypoll/backend/internal/settings"
)

// Reply is the single ephemeral answer to an interaction.
type Reply struct {
	Content string
	Embeds  []*discordgo.MessageEmbed
}

// Responder acknowledges and answers one interaction.
type Responder interface {
	// Defer acknowledges the interaction with an ephemeral "thinking" state.
	Defer(ctx context.Context) error
	// Respond fills in the deferred answer.
	Respond(ctx context.Context, reply Reply) error
}

// PollService is the lifecycle surface interactions need.
type PollService interface {
	FindActive(ctx context.Context, messageID string) (*models.Poll, error)
	Results(ctx context.Context, p *models.Poll) (*discordgo.MessageEmbed, error)
	PostNow(ctx context.Context, fallbackChannelID string) (*models.Poll, error)
}

// VoteService records votes and reports voter stats.
type VoteService interface {
	CastVote(ctx context.Context, p *models.Poll, voter polls.Voter, choice models.Choice) error
	Stats(ctx context.Context, userID string) (models.VoterStats, error)
}

// QuestionService manages the question pool.
type QuestionService interface {
	Reload(ctx context.Context) (questions.ReloadResult, error)
	Add(ctx context.Context, q models.Question) (questions.Origin, error)
}

// SettingWriter persists settings.
type SettingWriter interface {
	Set(ctx context.Context, key, value string) error
}

const (
	msgGenericFailure = "抱歉，發生錯誤。"
	msgPollEnded      = "呢個投票已經完結。"
	msgVoteFailed     = "❌ 寫入投票失敗，請再試一次。"
	msgUnknownButton  = "🤔 未識別的按鈕。"
	msgUnknownCommand = "🤔 未識別的指令。"
	msgNeedManage     = "❌ 你需要「管理伺服器」權限先可以設定頻道。"
	msgPostFailed     = "❌ 發佈投票失敗（請檢查頻道權限/嵌入訊息）。"
	msgNoChannel      = "❌ 未設定出題頻道（/set-channel）。"
	msgReloadFailed   = "❌ 載入題庫失敗。"
	msgAddInvalid     = "❌ 請提供選項 A 同 B。"
)

// Handler dispatches interactions. Every interaction is deferred first and then
// answered exactly once, whatever happens in between.
type Handler struct {
	polls     PollService
	votes     VoteService
	questions QuestionService
	settings  SettingWriter
	duration  time.Duration
	logger    *zap.Logger
}

// NewHandler creates a handler. duration is the lifetime of polls posted by poll-now and
// is only used in the confirmation text.
func NewHandler(p PollService, v VoteService, q QuestionService, s SettingWriter, duration time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{polls: p, votes: v, questions: q, settings: s, duration: duration, logger: logger}
}

// Handle processes evt and answers through r.
func (h *Handler) Handle(ctx context.Context, evt Event, r Responder) {
	action := ParseAction(evt)
	log := h.logger.With(
		zap.String("action", action.String()),
		zap.String("name", evt.Name),
		zap.String("user_id", evt.UserID))

	if err := r.Defer(ctx); err != nil {
		log.Warn("defer interaction failed", zap.Error(err))
	}

	answered := false
	respond := func(reply Reply) {
		answered = true
		if err := r.Respond(ctx, reply); err != nil {
			log.Warn("respond to interaction failed", zap.Error(err))
		}
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("interaction panic", zap.Any("panic", rec), zap.Stack("stack"))
			if !answered {
				respond(Reply{Content: msgGenericFailure})
			}
		}
	}()

	reply, err := h.dispatch(ctx, action, evt)
	if err != nil {
		log.Error("interaction failed", zap.Error(err))
		reply = Reply{Content: msgGenericFailure}
	}
	respond(reply)
}

// dispatch returns the reply for action. A non-nil error means the failure has no
// specific message and the generic notice is shown.
func (h *Handler) dispatch(ctx context.Context, action Action, evt Event) (Reply, error) {
	switch action {
	case ActionVoteA:
		return h.vote(ctx, evt, models.ChoiceA)
	case ActionVoteB:
		return h.vote(ctx, evt, models.ChoiceB)
	case ActionShowResult:
		return h.showResult(ctx, evt)
	case ActionSetChannel:
		return h.setChannel(ctx, evt)
	case ActionPollNow:
		return h.pollNow(ctx, evt)
	case ActionReloadQuestions:
		return h.reloadQuestions(ctx)
	case ActionAddQuestion:
		return h.addQuestion(ctx, evt)
	case ActionMyStats:
		return h.myStats(ctx, evt)
	}
	if evt.Kind == KindButton {
		return Reply{Content: msgUnknownButton}, nil
	}
	return Reply{Content: msgUnknownCommand}, nil
}

func (h *Handler) vote(ctx context.Context, evt Event, choice models.Choice) (Reply, error) {
	p, err := h.polls.FindActive(ctx, evt.MessageID)
	if err != nil {
		return Reply{}, err
	}
	if p == nil {
		return Reply{Content: msgPollEnded}, nil
	}
	err = h.votes.CastVote(ctx, p, polls.Voter{ID: evt.UserID, Name: evt.Username}, choice)
	switch {
	case errors.Is(err, models.ErrPollClosed):
		return Reply{Content: msgPollEnded}, nil
	case errors.Is(err, models.ErrStorageWrite):
		return Reply{Content: msgVoteFailed}, nil
	case err != nil:
		return Reply{}, err
	}
	return Reply{Content: fmt.Sprintf("✅ 已記錄你投 **%s**（可以再改）", choice)}, nil
}

func (h *Handler) showResult(ctx context.Context, evt Event) (Reply, error) {
	p, err := h.polls.FindActive(ctx, evt.MessageID)
	if err != nil {
		return Reply{}, err
	}
	if p == nil {
		return Reply{Content: msgPollEnded}, nil
	}
	embed, err := h.polls.Results(ctx, p)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Embeds: []*discordgo.MessageEmbed{embed}}, nil
}

func (h *Handler) setChannel(ctx context.Context, evt Event) (Reply, error) {
	if !evt.CanManageGuild {
		return Reply{Content: msgNeedManage}, nil
	}
	channelID := evt.Option("channel")
	if channelID == "" {
		return Reply{}, errors.New("set-channel without channel option")
	}
	if err := h.settings.Set(ctx, settings.PollChannelKey, channelID); err != nil {
		return Reply{}, fmt.Errorf("save poll channel: %w", err)
	}
	h.logger.Info("poll channel set", zap.String("channel_id", channelID), zap.String("user_id", evt.UserID))
	return Reply{Content: fmt.Sprintf("✅ 已設定每日投票頻道為 <#%s>。", channelID)}, nil
}

func (h *Handler) pollNow(ctx context.Context, evt Event) (Reply, error) {
	_, err := h.polls.PostNow(ctx, evt.ChannelID)
	switch {
	case errors.Is(err, polls.ErrNoChannel):
		return Reply{Content: msgNoChannel}, nil
	case err != nil:
		h.logger.Warn("poll-now failed", zap.Error(err))
		return Reply{Content: msgPostFailed}, nil
	}
	return Reply{Content: fmt.Sprintf("✅ 已發佈一條即時投票（%s）。", humanDuration(h.duration))}, nil
}

func (h *Handler) reloadQuestions(ctx context.Context) (Reply, error) {
	res, err := h.questions.Reload(ctx)
	if err != nil {
		h.logger.Warn("reload questions failed", zap.Error(err))
		return Reply{Content: msgReloadFailed}, nil
	}
	if res.Origin == questions.OriginRemote {
		return Reply{Content: fmt.Sprintf("✅ 題庫已從 Google Sheets 重新載入，共 %d 條。", res.Count)}, nil
	}
	return Reply{Content: fmt.Sprintf("✅ 題庫已重新載入（本地），共 %d 條。", res.Count)}, nil
}

func (h *Handler) addQuestion(ctx context.Context, evt Event) (Reply, error) {
	q := models.Question{
		A:   strings.TrimSpace(evt.Option("a")),
		B:   strings.TrimSpace(evt.Option("b")),
		Tag: strings.TrimSpace(evt.Option("tag")),
	}
	if _, err := h.questions.Add(ctx, q); err != nil {
		if errors.Is(err, questions.ErrInvalidQuestion) {
			return Reply{Content: msgAddInvalid}, nil
		}
		return Reply{}, err
	}
	content := fmt.Sprintf("✅ 已加入題目：A. %s | B. %s", q.A, q.B)
	if q.Tag != "" {
		content += fmt.Sprintf("（tag: %s）", q.Tag)
	}
	return Reply{Content: content}, nil
}

func (h *Handler) myStats(ctx context.Context, evt Event) (Reply, error) {
	st, err := h.votes.Stats(ctx, evt.UserID)
	if err != nil {
		return Reply{}, err
	}
	if st.Total == 0 {
		return Reply{Content: "📊 你暫時未投過票。"}, nil
	}
	return Reply{Content: fmt.Sprintf("📊 你的投票統計\n總投票：%d\nA：%d｜B：%d\n進行中：%d", st.Total, st.A, st.B, st.Open)}, nil
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d 小時", int(d/time.Hour))
	}
	return fmt.Sprintf("%d 分鐘", int(d/time.Minute))
}
