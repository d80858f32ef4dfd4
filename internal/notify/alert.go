package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/gen2brain/beeep"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Alerter tells the seller something happened.
type Alerter interface {
	Alert(ctx context.Context, title, message string) error
}

// DesktopAlerter shows a desktop notification.
type DesktopAlerter struct{}

func (DesktopAlerter) Alert(ctx context.Context, title, message string) error {
	return beeep.Notify(title, message, "")
}

// BotSender abstracts the Telegram bot API for sending messages.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramAlerter sends alerts to one Telegram chat.
type TelegramAlerter struct {
	bot    BotSender
	chatID int64
}

func NewTelegramAlerter(bot BotSender, chatID int64) *TelegramAlerter {
	return &TelegramAlerter{bot: bot, chatID: chatID}
}

// NewTelegramAlerterFromToken connects to the Bot API with token.
func NewTelegramAlerterFromToken(token string, chatID int64) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewTelegramAlerter(bot, chatID), nil
}

func (t *TelegramAlerter) Alert(ctx context.Context, title, message string) error {
	msg := tgbotapi.NewMessage(t.chatID, fmt.Sprintf("*%s*\n%s", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, title), tgbotapi.EscapeText(tgbotapi.ModeMarkdown, message)))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// MultiAlerter sends to every alerter and joins their errors.
type MultiAlerter []Alerter

func (m MultiAlerter) Alert(ctx context.Context, title, message string) error {
	var errs []error
	for _, a := range m {
		if err := a.Alert(ctx, title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
