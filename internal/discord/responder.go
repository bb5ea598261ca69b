package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/dailypoll/backend/internal/interactions"
)

// responder answers one interaction with an ephemeral deferred reply.
type responder struct {
	s *discordgo.Session
	i *discordgo.Interaction
}

func (r *responder) Defer(ctx context.Context) error {
	return r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
}

func (r *responder) Respond(ctx context.Context, reply interactions.Reply) error {
	edit := &discordgo.WebhookEdit{}
	if reply.Content != "" {
		content := reply.Content
		edit.Content = &content
	}
	if len(reply.Embeds) > 0 {
		embeds := reply.Embeds
		edit.Embeds = &embeds
	}
	_, err := r.s.InteractionResponseEdit(r.i, edit, discordgo.WithContext(ctx))
	return err
}
