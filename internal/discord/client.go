// Package discord binds the poll services to a Discord bot session.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/dailypoll/backend/internal/models"
)

// RequiredChannelPerms are needed to post a poll card.
const RequiredChannelPerms = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionEmbedLinks

// Client implements the lifecycle's Platform on a discordgo session.
type Client struct {
	s      *discordgo.Session
	logger *zap.Logger
}

// NewClient wraps s.
func NewClient(s *discordgo.Session, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{s: s, logger: logger}
}

// CheckChannel resolves channelID and verifies the bot can post embeds there.
func (c *Client) CheckChannel(ctx context.Context, channelID string) error {
	ch, err := c.s.State.Channel(channelID)
	if err != nil {
		ch, err = c.s.Channel(channelID, discordgo.WithContext(ctx))
	}
	if err != nil || ch == nil {
		return fmt.Errorf("%w: %s: %v", models.ErrChannelUnavailable, channelID, err)
	}
	if ch.GuildID == "" {
		// DM channels carry no permission overwrites.
		return nil
	}
	if c.s.State.User == nil {
		return fmt.Errorf("%w: session not ready", models.ErrChannelUnavailable)
	}
	perms, err := c.s.UserChannelPermissions(c.s.State.User.ID, channelID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: permissions for %s: %v", models.ErrChannelUnavailable, channelID, err)
	}
	if !hasPerms(perms, RequiredChannelPerms) {
		return fmt.Errorf("%w: need SendMessages and EmbedLinks in #%s (%s)", models.ErrPermissionDenied, ch.Name, ch.ID)
	}
	return nil
}

func (c *Client) Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	m, err := c.s.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (c *Client) Edit(ctx context.Context, edit *discordgo.MessageEdit) error {
	_, err := c.s.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return err
}

func (c *Client) Fetch(ctx context.Context, channelID, messageID string) (*discordgo.Message, error) {
	return c.s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
}

func hasPerms(have, want int64) bool {
	if have&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return have&want == want
}
