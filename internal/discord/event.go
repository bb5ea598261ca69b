package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/dailypoll/backend/internal/interactions"
)

// ToEvent converts a gateway interaction. ok is false for interaction types the bot
// does not handle (autocomplete, modals, pings).
func ToEvent(i *discordgo.Interaction) (evt interactions.Event, ok bool) {
	evt = interactions.Event{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Options:   map[string]string{},
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		evt.UserID = i.Member.User.ID
		evt.Username = i.Member.User.Username
		evt.CanManageGuild = i.Member.Permissions&(discordgo.PermissionManageServer|discordgo.PermissionAdministrator) != 0
	case i.User != nil:
		evt.UserID = i.User.ID
		evt.Username = i.User.Username
	}

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		evt.Kind = interactions.KindButton
		evt.Name = i.MessageComponentData().CustomID
		if i.Message != nil {
			evt.MessageID = i.Message.ID
		}
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		evt.Kind = interactions.KindCommand
		evt.Name = data.Name
		for _, opt := range data.Options {
			if opt.Value != nil {
				evt.Options[opt.Name] = fmt.Sprint(opt.Value)
			}
		}
	default:
		return evt, false
	}
	return evt, true
}
