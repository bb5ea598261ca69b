package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/dailypoll/backend/internal/interactions"
)

// interactionTimeout bounds the handling of a single interaction. Discord allows
// 15 minutes to edit a deferred reply.
const interactionTimeout = 2 * time.Minute

// Bot owns the gateway session.
type Bot struct {
	session *discordgo.Session
	client  *Client
	appID   string
	guildID string
	logger  *zap.Logger
}

// NewBot creates an unopened session for token. appID and guildID select where slash
// commands are registered.
func NewBot(token, appID, guildID string, logger *zap.Logger) (*Bot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	return &Bot{
		session: s,
		client:  NewClient(s, logger),
		appID:   appID,
		guildID: guildID,
		logger:  logger,
	}, nil
}

// Client returns the Platform implementation bound to this session.
func (b *Bot) Client() *Client { return b.client }

// Start routes interactions to h, opens the gateway and registers slash commands.
// A command registration failure is logged but does not stop the bot.
func (b *Bot) Start(ctx context.Context, h *interactions.Handler) error {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("logged in", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
	})
	b.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		evt, ok := ToEvent(ic.Interaction)
		if !ok {
			return
		}
		ictx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
		defer cancel()
		h.Handle(ictx, evt, &responder{s: s, i: ic.Interaction})
	})
	b.session.AddHandler(func(s *discordgo.Session, d *discordgo.Disconnect) {
		b.logger.Warn("gateway disconnected")
	})
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Resumed) {
		b.logger.Info("gateway resumed")
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	b.registerCommands(ctx)
	return nil
}

func (b *Bot) registerCommands(ctx context.Context) {
	appID := b.appID
	if appID == "" && b.session.State.User != nil {
		appID = b.session.State.User.ID
	}
	cmds, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, interactions.Commands(), discordgo.WithContext(ctx))
	if err != nil {
		b.logger.Error("register slash commands failed", zap.Error(err))
		return
	}
	b.logger.Info("slash commands registered", zap.Int("count", len(cmds)), zap.String("guild_id", b.guildID))
}

// Close shuts the gateway session.
func (b *Bot) Close() error {
	return b.session.Close()
}
