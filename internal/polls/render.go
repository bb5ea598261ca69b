package polls

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/dailypoll/backend/internal/models"
	"github.com/dailypoll/backend/internal/tally"
)

// Button custom IDs on the live poll card.
const (
	ButtonVoteA      = "vote_A"
	ButtonVoteB      = "vote_B"
	ButtonShowResult = "show_result"
)

const (
	colorLive   = 0x5865F2
	colorClosed = 0x99AAB5
	colorFinal  = 0x2ECC71

	titleLive    = "每日 2選1 投票"
	footerLive   = "匿名投票｜每人限投一次（可更改選擇）"
	footerClosed = "投票已結束（匿名）"

	endTimeLayout = "2006年01月02日 15:04 MST"
)

// Renderer builds the embeds shown for a poll. All times are shown in loc.
type Renderer struct {
	loc *time.Location
	now func() time.Time
}

// NewRenderer creates a renderer for loc; nil means UTC.
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc, now: time.Now}
}

// FormatEnd formats a poll end time for display.
func (r *Renderer) FormatEnd(t time.Time) string {
	return t.In(r.loc).Format(endTimeLayout)
}

// LiveEmbed is the poll card while voting is open.
func (r *Renderer) LiveEmbed(p *models.Poll, t models.Tally) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       titleLive,
		Description: fmt.Sprintf("**A. %s**\n**B. %s**", p.QuestionA, p.QuestionB),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "投票狀態", Value: fmt.Sprintf("A：%d（%s）\nB：%d（%s）", t.A, tally.Percent(t.APct), t.B, tally.Percent(t.BPct))},
			{Name: "截止時間", Value: r.FormatEnd(p.EndAt)},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: footerLive},
		Timestamp: r.now().Format(time.RFC3339),
		Color:     colorLive,
	}
}

// ClosedEmbed returns a copy of the card's last embed restyled as ended.
func (r *Renderer) ClosedEmbed(last *discordgo.MessageEmbed) *discordgo.MessageEmbed {
	closed := *last
	closed.Footer = &discordgo.MessageEmbedFooter{Text: footerClosed}
	closed.Color = colorClosed
	return &closed
}

// ResultsEmbed shows the question with counts; final adds the end time.
func (r *Renderer) ResultsEmbed(p *models.Poll, t models.Tally, final bool) *discordgo.MessageEmbed {
	title, color := "📊 即時結果", colorLive
	if final {
		title, color = "📊 最終結果", colorFinal
	}
	stats := strings.Join([]string{
		fmt.Sprintf("A：%d（%s）", t.A, tally.Percent(t.APct)),
		fmt.Sprintf("B：%d（%s）", t.B, tally.Percent(t.BPct)),
		fmt.Sprintf("總票數：%d", t.Total),
	}, "\n")
	fields := []*discordgo.MessageEmbedField{{Name: "統計", Value: stats}}
	if final {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "截止時間", Value: r.FormatEnd(p.EndAt)})
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("**題目**\nA. %s\nB. %s", p.QuestionA, p.QuestionB),
		Fields:      fields,
		Timestamp:   r.now().Format(time.RFC3339),
		Color:       color,
	}
}

// VoteButtons is the control row attached to a live poll card.
func VoteButtons() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{CustomID: ButtonVoteA, Label: "投 A", Style: discordgo.PrimaryButton},
			discordgo.Button{CustomID: ButtonVoteB, Label: "投 B", Style: discordgo.SecondaryButton},
			discordgo.Button{CustomID: ButtonShowResult, Label: "查看結果", Style: discordgo.SuccessButton},
		}},
	}
}
