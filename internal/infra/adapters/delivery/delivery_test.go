//go:build !integration

package delivery

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/infra/i18n"
)

type recordingBot struct {
	chatID int64
	text   string
	err    error
}

func (b *recordingBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	b.chatID, b.text = chatID, text
	return b.err
}

var (
	contact = model.EmergencyContact{ID: "c1", Name: "Sam", Phone: "+61 400 123 456", Relationship: "sister", NotifyOnPanic: true}
	event   = model.PanicEvent{UserID: "u1", TriggeredAt: time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)}
)

func TestTelegramRelayGateway(t *testing.T) {
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	logger := zerolog.Nop()

	t.Run("should post the alert to the relay chat", func(t *testing.T) {
		bot := &recordingBot{}
		g := NewTelegramRelayGateway(bot, -100123, tr, false, &logger)
		ok, err := g.Notify(context.Background(), contact, event)
		if err != nil || !ok {
			t.Fatalf("expected delivery, got %v %v", ok, err)
		}
		if bot.chatID != -100123 {
			t.Errorf("expected relay chat, got %d", bot.chatID)
		}
		for _, want := range []string{"Sam", "+61 400 123 456", "sister", "Emergency alert"} {
			if !strings.Contains(bot.text, want) {
				t.Errorf("alert text missing %q: %s", want, bot.text)
			}
		}
		if strings.Contains(bot.text, "u1") {
			t.Error("alert must not carry the internal user id")
		}
	})

	t.Run("should report a send failure", func(t *testing.T) {
		bot := &recordingBot{err: errors.New("429 too many requests")}
		g := NewTelegramRelayGateway(bot, 1, tr, false, &logger)
		ok, err := g.Notify(context.Background(), contact, event)
		if ok || err == nil {
			t.Errorf("expected failure, got %v %v", ok, err)
		}
	})
}

func TestLogGateway(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	g := NewLogGateway(false, &logger)

	ok, err := g.Notify(context.Background(), contact, event)
	if err != nil || !ok {
		t.Fatalf("expected delivery, got %v %v", ok, err)
	}
	if strings.Contains(buf.String(), contact.Phone) {
		t.Errorf("phone must be redacted outside dev: %s", buf.String())
	}

	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	if ok, _ := g.Notify(cctx, contact, event); ok {
		t.Error("cancelled context must not count as delivered")
	}
}
