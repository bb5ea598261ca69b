package models

import (
	"time"
)

// Choice is one side of an either/or poll.
type Choice string

const (
	ChoiceA Choice = "A"
	ChoiceB Choice = "B"
)

// Valid reports whether c is A or B.
func (c Choice) Valid() bool {
	return c == ChoiceA || c == ChoiceB
}

// Setting is a process-wide key/value pair (e.g. the poll channel).
type Setting struct {
	Key   string `gorm:"primaryKey" json:"key"`
	Value string `json:"value"`
}

// Poll represents one posted A/B question with a fixed expiry.
type Poll struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID string    `gorm:"index" json:"message_id"`
	ChannelID string    `json:"channel_id"`
	QuestionA string    `json:"question_a"`
	QuestionB string    `json:"question_b"`
	Tag       string    `json:"tag,omitempty"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	IsActive  bool      `json:"is_active"`
}

// Expired reports whether now is at or past the poll's end time.
func (p *Poll) Expired(now time.Time) bool {
	return !now.Before(p.EndAt)
}

// Vote is one voter's current choice for one poll. (PollID, UserID) is unique.
type Vote struct {
	PollID  int64     `gorm:"primaryKey;autoIncrement:false" json:"poll_id"`
	UserID  string    `gorm:"primaryKey" json:"user_id"`
	Choice  Choice    `json:"choice"`
	VotedAt time.Time `json:"voted_at"`
}

// VoterStats summarises every vote a single user has on record.
type VoterStats struct {
	UserID string `json:"user_id"`
	Total  int    `json:"total"`
	A      int    `json:"a"`
	B      int    `json:"b"`
	Open   int    `json:"open"` // votes on polls that are still active
}
