package models

// EventType identifies an event mirrored to the optional remote log.
type EventType string

const (
	EventPollCreated EventType = "poll_created"
	EventPollClosed  EventType = "poll_closed"
	EventVote        EventType = "vote"
)

// Event is a flat record describing a poll lifecycle step or a vote.
// Tally fields hold the counts at the time the event was produced.
type Event struct {
	Type          EventType `json:"type"`
	Timestamp     string    `json:"timestamp"`
	PollID        int64     `json:"poll_id"`
	MessageID     string    `json:"message_id"`
	ChannelID     string    `json:"channel_id"`
	UserID        string    `json:"user_id,omitempty"`
	Username      string    `json:"username,omitempty"`
	Choice        Choice    `json:"choice,omitempty"`
	QuestionA     string    `json:"question_a"`
	QuestionB     string    `json:"question_b"`
	Tag           string    `json:"tag"`
	A             int       `json:"a"`
	B             int       `json:"b"`
	APct          float64   `json:"a_pct"`
	BPct          float64   `json:"b_pct"`
	TotalVotes    int       `json:"total_votes"`
	PollStart     string    `json:"poll_start"`
	PollEnd       string    `json:"poll_end"`
	DurationHours float64   `json:"duration_hours"`
}

// Row flattens the event in the column order used by the remote log sheet.
func (e Event) Row() []interface{} {
	return []interface{}{
		string(e.Type), e.Timestamp, e.PollID, e.MessageID, e.ChannelID,
		e.UserID, e.Username, string(e.Choice), e.QuestionA, e.QuestionB, e.Tag,
		e.A, e.B, e.APct, e.BPct, e.TotalVotes, e.PollStart, e.PollEnd, e.DurationHours,
	}
}
