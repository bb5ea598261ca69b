package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailypoll/backend/internal/interactions"
)

func TestToEventButton(t *testing.T) {
	i := &discordgo.Interaction{
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   "g1",
		ChannelID: "c1",
		Message:   &discordgo.Message{ID: "m1"},
		Member: &discordgo.Member{
			User:        &discordgo.User{ID: "u1", Username: "amy"},
			Permissions: discordgo.PermissionSendMessages,
		},
		Data: discordgo.MessageComponentInteractionData{CustomID: "vote_A"},
	}
	evt, ok := ToEvent(i)
	require.True(t, ok)
	assert.Equal(t, interactions.KindButton, evt.Kind)
	assert.Equal(t, "vote_A", evt.Name)
	assert.Equal(t, "m1", evt.MessageID)
	assert.Equal(t, "u1", evt.UserID)
	assert.Equal(t, "amy", evt.Username)
	assert.False(t, evt.CanManageGuild)
	assert.Equal(t, interactions.ActionVoteA, interactions.ParseAction(evt))
}

func TestToEventCommand(t *testing.T) {
	i := &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   "g1",
		ChannelID: "c1",
		Member: &discordgo.Member{
			User:        &discordgo.User{ID: "admin"},
			Permissions: discordgo.PermissionManageServer,
		},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "set-channel",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: "c42"},
			},
		},
	}
	evt, ok := ToEvent(i)
	require.True(t, ok)
	assert.Equal(t, interactions.KindCommand, evt.Kind)
	assert.Equal(t, "c42", evt.Option("channel"))
	assert.True(t, evt.CanManageGuild)
}

func TestToEventIgnoresOtherTypes(t *testing.T) {
	_, ok := ToEvent(&discordgo.Interaction{Type: discordgo.InteractionPing, User: &discordgo.User{ID: "u"}})
	assert.False(t, ok)
}

func TestHasPerms(t *testing.T) {
	assert.True(t, hasPerms(RequiredChannelPerms, RequiredChannelPerms))
	assert.True(t, hasPerms(discordgo.PermissionAdministrator, RequiredChannelPerms))
	assert.False(t, hasPerms(discordgo.PermissionViewChannel|discordgo.PermissionSendMessages, RequiredChannelPerms))
}

func TestCommandsShape(t *testing.T) {
	cmds := interactions.Commands()
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"set-channel", "poll-now", "reload-questions", "add-question", "my-stats"}, names)
	require.NotNil(t, cmds[0].DefaultMemberPermissions)
	assert.EqualValues(t, discordgo.PermissionManageServer, *cmds[0].DefaultMemberPermissions)
}
