package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/adapter"
	"dvsafe-service/internal/infra/logging"
)

// Texts renders alert copy; *i18n.Translator satisfies it.
type Texts interface {
	T(key string, args ...interface{}) string
}

var _ adapter.DeliveryGateway = (*TelegramRelayGateway)(nil)

// TelegramRelayGateway posts each alert to a dispatch chat whose operators
// call or text the contact. Acceptance by Telegram counts as delivered.
type TelegramRelayGateway struct {
	bot         adapter.TelegramBotAdapter
	relayChatID int64
	texts       Texts
	dev         bool
	log         *zerolog.Logger
}

func NewTelegramRelayGateway(bot adapter.TelegramBotAdapter, relayChatID int64, texts Texts, dev bool, logger *zerolog.Logger) *TelegramRelayGateway {
	return &TelegramRelayGateway{
		bot:         bot,
		relayChatID: relayChatID,
		texts:       texts,
		dev:         dev,
		log:         logging.Component(logger, "telegram_gateway"),
	}
}

func (g *TelegramRelayGateway) Notify(ctx context.Context, c model.EmergencyContact, e model.PanicEvent) (bool, error) {
	text := g.render(c, e)
	if err := g.bot.SendMessage(ctx, g.relayChatID, text); err != nil {
		g.log.Warn().Err(err).Str("contact_id", c.ID).Msg("relay send failed")
		return false, err
	}
	g.log.Debug().
		Str("contact_id", c.ID).
		Str("phone", logging.Redact(c.Phone, g.dev)).
		Msg("panic alert relayed")
	return true, nil
}

func (g *TelegramRelayGateway) render(c model.EmergencyContact, e model.PanicEvent) string {
	header := fmt.Sprintf("To: %s (%s) %s", c.Name, c.Relationship, c.Phone)
	if c.Email != "" {
		header += " / " + c.Email
	}
	body := g.texts.T("panic_alert", c.Relationship, e.TriggeredAt.UTC().Format(time.RFC1123))
	return header + "\n\n" + body
}
