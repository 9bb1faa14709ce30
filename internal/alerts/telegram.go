// Package alerts pushes operational notifications to an operator chat.
// Alerts are best-effort: a failed notification is logged and dropped.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxAlertLen = 4000 // Telegram message limit headroom

// Telegram implements domain.Notifier over a Telegram bot.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram alerts enabled", "bot", bot.Self.UserName, "chat", chatID)
	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: logger,
	}, nil
}

// Notify sends one alert to the operator chat.
func (t *Telegram) Notify(ctx context.Context, text string) {
	msg := tgbotapi.NewMessage(t.chatID, truncateAlert(text))
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error("alert send failed", "err", err)
	}
}

// truncateAlert cuts text to the Telegram limit on a character boundary.
func truncateAlert(text string) string {
	if utf8.RuneCountInString(text) <= maxAlertLen {
		return text
	}
	return string([]rune(text)[:maxAlertLen])
}
