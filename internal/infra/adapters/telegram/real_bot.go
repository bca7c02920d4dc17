package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dvsafe-service/internal/config"
	"dvsafe-service/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter is send-only: the service never polls for updates.
type RealTelegramBotAdapter struct {
	bot *tgbotapi.BotAPI
}

func NewRealTelegramBotAdapter(cfg *config.TelegramConfig) (*RealTelegramBotAdapter, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("telegram token is not configured")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return &RealTelegramBotAdapter{bot: bot}, nil
}

// SendMessage sends plain text. tgbotapi has no context support, so the call
// runs aside and ctx only bounds how long we wait for it.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	done := make(chan error, 1)
	go func() {
		_, err := r.bot.Send(msg)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
