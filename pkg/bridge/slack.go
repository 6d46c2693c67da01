package bridge

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/cobblechat/cobblechat/pkg/relay"
)

// SlackConfig configures the Slack mirror bridge.
type SlackConfig struct {
	BotToken  string   `json:"bot_token" env:"COBBLECHAT_SLACK_BOT_TOKEN"`
	ChannelID string   `json:"channel_id" env:"COBBLECHAT_SLACK_CHANNEL_ID"`
	Sessions  []string `json:"sessions,omitempty"`
}

// SlackBridge mirrors relayed chat into one Slack channel.
type SlackBridge struct {
	*BaseBridge
	config SlackConfig
	client *slack.Client
}

func NewSlackBridge(cfg SlackConfig) *SlackBridge {
	return &SlackBridge{
		BaseBridge: NewBaseBridge("slack", cfg.Sessions),
		config:     cfg,
	}
}

func (b *SlackBridge) Start(ctx context.Context) error {
	client := slack.New(b.config.BotToken)
	if _, err := client.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	b.client = client
	b.SetRunning(true)
	log.Info().Str("component", "bridge").Str("bridge", b.Name()).Msg("bridge started")
	return nil
}

func (b *SlackBridge) Stop(ctx context.Context) error {
	b.SetRunning(false)
	return nil
}

func (b *SlackBridge) Mirror(ctx context.Context, ev relay.Event) error {
	if !b.IsRunning() || !b.ShouldMirror(ev.SessionID) {
		return nil
	}
	text := fmt.Sprintf("*[%s]* %s", ev.SessionID, RenderMrkdwn(ev.Segments))
	_, _, err := b.client.PostMessageContext(ctx, b.config.ChannelID, slack.MsgOptionText(text, false))
	return err
}
