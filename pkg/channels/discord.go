package channels

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/midorin-Linux/discord-parrot/pkg/config"
	"github.com/midorin-Linux/discord-parrot/pkg/dictionary"
	"github.com/midorin-Linux/discord-parrot/pkg/logger"
	"github.com/midorin-Linux/discord-parrot/pkg/message"
	"github.com/midorin-Linux/discord-parrot/pkg/playback"
	"github.com/midorin-Linux/discord-parrot/pkg/registry"
)

const (
	skipKeyword  = "!skip"
	joinGreeting = "接続しました"
	colorSuccess = 0x2ecc71
	colorFailure = 0xe74c3c
	colorInfo    = 0x3498db
)

type DiscordChannel struct {
	session      *discordgo.Session
	config       config.DiscordConfig
	orchestrator *playback.Orchestrator
	dictionary   *dictionary.Synchronizer
	registry     *registry.Store
	ctx          context.Context
}

func NewDiscordChannel(cfg config.DiscordConfig, orch *playback.Orchestrator, dict *dictionary.Synchronizer, reg *registry.Store) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	return &DiscordChannel{
		session:      session,
		config:       cfg,
		orchestrator: orch,
		dictionary:   dict,
		registry:     reg,
		ctx:          context.Background(),
	}, nil
}

func (c *DiscordChannel) getContext() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	c.ctx = ctx
	c.session.AddHandler(c.handleMessage)
	c.session.AddHandler(c.handleInteraction)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}
	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})

	if _, err := c.session.ApplicationCommandBulkOverwrite(c.session.State.User.ID, c.config.GuildID, slashCommands); err != nil {
		return fmt.Errorf("failed to register slash commands: %w", err)
	}
	logger.InfoCF("discord", "Slash commands registered", map[string]any{
		"guild_id": c.config.GuildID,
		"count":    len(slashCommands),
	})

	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}

	return nil
}

// handleMessage relays chat posted in a bound text channel into the
// guild's playback queue. Unbound channels and bot authors are ignored.
func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil {
		return
	}

	if m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}

	bound, err := c.registry.IsBound(c.getContext(), m.ChannelID)
	if err != nil {
		logger.ErrorCF("discord", "Failed to check channel binding", map[string]any{
			"channel_id": m.ChannelID,
			"error":      err.Error(),
		})
		return
	}
	if !bound {
		return
	}

	if m.Content == skipKeyword {
		if err := c.orchestrator.Skip(m.GuildID); err != nil {
			logger.WarnCF("discord", "Skip request failed", map[string]any{
				"guild_id": m.GuildID,
				"error":    err.Error(),
			})
		}
		return
	}

	text := message.Normalize(m.Content, c.resolverFor(s, m), len(m.Attachments))
	if text == "" {
		return
	}

	if err := c.orchestrator.Enqueue(c.getContext(), m.GuildID, text); err != nil {
		logger.ErrorCF("discord", "Failed to enqueue utterance", map[string]any{
			"guild_id": m.GuildID,
			"error":    err.Error(),
		})
	}
}

// resolverFor builds a mention resolver for one message: server
// nickname when set, otherwise the mentioned user's account name.
func (c *DiscordChannel) resolverFor(s *discordgo.Session, m *discordgo.MessageCreate) message.Resolver {
	usernames := make(map[string]string, len(m.Mentions))
	for _, user := range m.Mentions {
		usernames[user.ID] = user.Username
	}

	return func(userID string) string {
		if member, err := s.State.Member(m.GuildID, userID); err == nil && member.Nick != "" {
			return member.Nick
		}
		if name, ok := usernames[userID]; ok {
			return name
		}
		return userID
	}
}

func (c *DiscordChannel) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	switch data.Name {
	case "join":
		c.handleJoin(s, i)
	case "leave":
		c.handleLeave(s, i)
	case "dictionary":
		c.handleDictionary(s, i, data)
	}
}

func (c *DiscordChannel) handleJoin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := c.deferResponse(s, i); err != nil {
		return
	}

	if i.Member == nil || i.Member.User == nil {
		c.followUp(s, i, embedFailure("エラー", "サーバー内でのみ使用できます"))
		return
	}

	voiceState, err := s.State.VoiceState(i.GuildID, i.Member.User.ID)
	if err != nil || voiceState == nil || voiceState.ChannelID == "" {
		c.followUp(s, i, embedFailure("エラー", "先にボイスチャンネルに参加してください"))
		return
	}

	vc, err := s.ChannelVoiceJoin(i.GuildID, voiceState.ChannelID, false, true)
	if err != nil {
		logger.ErrorCF("discord", "Failed to join voice channel", map[string]any{
			"guild_id":   i.GuildID,
			"channel_id": voiceState.ChannelID,
			"error":      err.Error(),
		})
		c.followUp(s, i, embedFailure("エラー", "ボイスチャンネルへの接続に失敗しました"))
		return
	}

	c.orchestrator.Register(i.GuildID, voiceState.ChannelID, i.ChannelID, newVoiceConnection(vc))

	if err := c.registry.Bind(c.getContext(), i.GuildID, voiceState.ChannelID, i.ChannelID); err != nil {
		logger.ErrorCF("discord", "Failed to persist channel binding", map[string]any{
			"guild_id": i.GuildID,
			"error":    err.Error(),
		})
	}

	logger.InfoCF("discord", "Joined voice channel", map[string]any{
		"guild_id":         i.GuildID,
		"voice_channel_id": voiceState.ChannelID,
		"text_channel_id":  i.ChannelID,
	})

	c.followUp(s, i, embedSuccess("接続", fmt.Sprintf("<#%s> に接続しました", voiceState.ChannelID)))

	if err := c.orchestrator.Enqueue(c.getContext(), i.GuildID, joinGreeting); err != nil {
		logger.WarnCF("discord", "Failed to enqueue greeting", map[string]any{
			"guild_id": i.GuildID,
			"error":    err.Error(),
		})
	}
}

func (c *DiscordChannel) handleLeave(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := c.deferResponse(s, i); err != nil {
		return
	}

	if err := c.orchestrator.Remove(i.GuildID); err != nil {
		logger.WarnCF("discord", "Failed to close voice connection", map[string]any{
			"guild_id": i.GuildID,
			"error":    err.Error(),
		})
	}

	if err := c.registry.Unbind(c.getContext(), i.GuildID, i.ChannelID); err != nil {
		logger.ErrorCF("discord", "Failed to remove channel binding", map[string]any{
			"guild_id": i.GuildID,
			"error":    err.Error(),
		})
	}

	logger.InfoCF("discord", "Left voice channel", map[string]any{
		"guild_id": i.GuildID,
	})

	c.followUp(s, i, embedSuccess("切断", "ボイスチャンネルから切断しました"))
}

func (c *DiscordChannel) handleDictionary(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if err := c.deferResponse(s, i); err != nil {
		return
	}

	cmd, err := decodeDictionaryCommand(data)
	if err != nil {
		c.followUp(s, i, embedFailure("エラー", err.Error()))
		return
	}

	result, err := c.dictionary.Dispatch(c.getContext(), cmd)
	if err != nil {
		logger.WarnCF("discord", "Dictionary command failed", map[string]any{
			"guild_id": i.GuildID,
			"error":    err.Error(),
		})
		c.followUp(s, i, embedFailure("エラー", dictionaryErrorMessage(err)))
		return
	}

	c.followUp(s, i, embedInfo(result.Title, result.Detail))
}

func (c *DiscordChannel) deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		logger.ErrorCF("discord", "Failed to acknowledge interaction", map[string]any{
			"error": err.Error(),
		})
	}
	return err
}

func (c *DiscordChannel) followUp(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		logger.ErrorCF("discord", "Failed to send interaction response", map[string]any{
			"error": err.Error(),
		})
	}
}

func embedSuccess(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: colorSuccess}
}

func embedFailure(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: colorFailure}
}

func embedInfo(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: colorInfo}
}
