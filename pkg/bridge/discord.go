package bridge

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/cobblechat/cobblechat/pkg/relay"
)

// DiscordConfig configures the Discord mirror bridge.
type DiscordConfig struct {
	Token     string   `json:"token" env:"COBBLECHAT_DISCORD_TOKEN"`
	ChannelID string   `json:"channel_id" env:"COBBLECHAT_DISCORD_CHANNEL_ID"`
	Sessions  []string `json:"sessions,omitempty"`
}

// DiscordBridge mirrors relayed chat into one Discord channel.
type DiscordBridge struct {
	*BaseBridge
	config  DiscordConfig
	session *discordgo.Session
}

func NewDiscordBridge(cfg DiscordConfig) *DiscordBridge {
	return &DiscordBridge{
		BaseBridge: NewBaseBridge("discord", cfg.Sessions),
		config:     cfg,
	}
}

func (b *DiscordBridge) Start(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.config.Token)
	if err != nil {
		return fmt.Errorf("creating discord session: %w", err)
	}
	if err := dg.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	b.session = dg
	b.SetRunning(true)
	log.Info().Str("component", "bridge").Str("bridge", b.Name()).Msg("bridge started")
	return nil
}

func (b *DiscordBridge) Stop(ctx context.Context) error {
	b.SetRunning(false)
	if b.session == nil {
		return nil
	}
	return b.session.Close()
}

func (b *DiscordBridge) Mirror(ctx context.Context, ev relay.Event) error {
	if !b.IsRunning() || !b.ShouldMirror(ev.SessionID) {
		return nil
	}
	text := fmt.Sprintf("**[%s]** %s", ev.SessionID, RenderMarkdown(ev.Segments))
	_, err := b.session.ChannelMessageSend(b.config.ChannelID, text)
	return err
}
