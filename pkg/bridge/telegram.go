package bridge

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	"github.com/rs/zerolog/log"

	"github.com/cobblechat/cobblechat/pkg/relay"
)

// TelegramConfig configures the Telegram mirror bridge.
type TelegramConfig struct {
	Token    string   `json:"token" env:"COBBLECHAT_TELEGRAM_TOKEN"`
	ChatID   int64    `json:"chat_id" env:"COBBLECHAT_TELEGRAM_CHAT_ID"`
	Sessions []string `json:"sessions,omitempty"`
}

// TelegramBridge mirrors relayed chat into one Telegram chat.
type TelegramBridge struct {
	*BaseBridge
	config TelegramConfig
	bot    *telego.Bot
}

func NewTelegramBridge(cfg TelegramConfig) *TelegramBridge {
	return &TelegramBridge{
		BaseBridge: NewBaseBridge("telegram", cfg.Sessions),
		config:     cfg,
	}
}

func (b *TelegramBridge) Start(ctx context.Context) error {
	bot, err := telego.NewBot(b.config.Token, telego.WithDiscardLogger())
	if err != nil {
		return fmt.Errorf("creating telegram bot: %w", err)
	}
	if _, err := bot.GetMe(ctx); err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	b.bot = bot
	b.SetRunning(true)
	log.Info().Str("component", "bridge").Str("bridge", b.Name()).Msg("bridge started")
	return nil
}

func (b *TelegramBridge) Stop(ctx context.Context) error {
	b.SetRunning(false)
	return nil
}

func (b *TelegramBridge) Mirror(ctx context.Context, ev relay.Event) error {
	if !b.IsRunning() || !b.ShouldMirror(ev.SessionID) {
		return nil
	}
	text := fmt.Sprintf("[%s] %s", ev.SessionID, RenderPlain(ev.Segments))
	_, err := b.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: b.config.ChatID},
		Text:   text,
	})
	return err
}
