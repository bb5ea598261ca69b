// Package interactions routes button presses and slash commands to the poll services.
package interactions

import "github.com/dailypoll/backend/internal/polls"

// Kind is the source of an inbound interaction.
type Kind int

const (
	KindButton Kind = iota + 1
	KindCommand
)

// Command names registered with the platform.
const (
	CommandSetChannel      = "set-channel"
	CommandPollNow         = "poll-now"
	CommandReloadQuestions = "reload-questions"
	CommandAddQuestion     = "add-question"
	CommandMyStats         = "my-stats"
)

// Event is a platform-neutral interaction.
type Event struct {
	Kind      Kind
	Name      string // button custom ID or command name
	UserID    string
	Username  string
	GuildID   string
	ChannelID string
	MessageID string // message the button sits on
	// CanManageGuild reports whether the invoking member holds Manage Server.
	CanManageGuild bool
	Options        map[string]string
}

// Option returns the named command option or "".
func (e Event) Option(name string) string {
	return e.Options[name]
}

// Action is the closed set of things an interaction can ask for.
type Action int

const (
	ActionUnknown Action = iota
	ActionVoteA
	ActionVoteB
	ActionShowResult
	ActionSetChannel
	ActionPollNow
	ActionReloadQuestions
	ActionAddQuestion
	ActionMyStats
)

var actionNames = map[Action]string{
	ActionUnknown:         "unknown",
	ActionVoteA:           "vote_a",
	ActionVoteB:           "vote_b",
	ActionShowResult:      "show_result",
	ActionSetChannel:      "set_channel",
	ActionPollNow:         "poll_now",
	ActionReloadQuestions: "reload_questions",
	ActionAddQuestion:     "add_question",
	ActionMyStats:         "my_stats",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "unknown"
}

// ParseAction maps an event to its action. Buttons and commands live in separate
// namespaces; anything unrecognised is ActionUnknown.
func ParseAction(e Event) Action {
	switch e.Kind {
	case KindButton:
		switch e.Name {
		case polls.ButtonVoteA:
			return ActionVoteA
		case polls.ButtonVoteB:
			return ActionVoteB
		case polls.ButtonShowResult:
			return ActionShowResult
		}
	case KindCommand:
		switch e.Name {
		case CommandSetChannel:
			return ActionSetChannel
		case CommandPollNow:
			return ActionPollNow
		case CommandReloadQuestions:
			return ActionReloadQuestions
		case CommandAddQuestion:
			return ActionAddQuestion
		case CommandMyStats:
			return ActionMyStats
		}
	}
	return ActionUnknown
}
