package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram sends summaries to a chat through the Bot API.
type Telegram struct {
	token    string
	chatID   int64
	endpoint string
}

// NewTelegram creates a Telegram notifier. endpoint overrides
// tgbotapi.APIEndpoint and may be empty.
func NewTelegram(token string, chatID int64, endpoint string) *Telegram {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return &Telegram{token: token, chatID: chatID, endpoint: endpoint}
}

// Name returns the notifier name.
func (t *Telegram) Name() string { return "telegram" }

// Notify authorizes the bot on each call; summaries are sent once per run.
func (t *Telegram) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(t.token, t.endpoint)
	if err != nil {
		return fmt.Errorf("creating Telegram bot: %w", err)
	}
	if _, err := bot.Send(tgbotapi.NewMessage(t.chatID, msg.Text())); err != nil {
		return fmt.Errorf("sending to chat %d: %w", t.chatID, err)
	}
	return nil
}
