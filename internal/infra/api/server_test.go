//go:build !integration

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/infra/api"
	"dvsafe-service/internal/infra/db/memory"
	"dvsafe-service/internal/infra/i18n"
	"dvsafe-service/internal/infra/logging"
	"dvsafe-service/internal/infra/security"
	"dvsafe-service/internal/usecase"
)

const testSecret = "test-secret"

type okGateway struct{}

func (okGateway) Notify(ctx context.Context, c model.EmergencyContact, e model.PanicEvent) (bool, error) {
	return true, nil
}

func newTestServer(t *testing.T) (http.Handler, *api.Authenticator) {
	t.Helper()
	logger := logging.Nop()
	store := memory.NewStore()
	tm := memory.NewTxManager(store)
	settings := memory.NewSettingsRepo(store)
	chats := memory.NewSafeChatRepo(store)
	panics := memory.NewPanicLogRepo(store)

	enc, err := security.NewEncryptionService("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("encryption: %v", err)
	}
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	catalog, err := i18n.LoadResourceCatalog(i18n.LocalesFS)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	svc := api.Services{
		Settings:   usecase.NewSettingsUseCase(settings, tm, logger),
		Contacts:   usecase.NewContactUseCase(settings, tm, logger),
		Visibility: usecase.NewVisibilityUseCase(settings, tm, logger),
		Chats:      usecase.NewSafeChatUseCase(chats, settings, tm, enc, security.NewBcryptPinHasher(bcrypt.MinCost), nil, logger),
		Panic:      usecase.NewPanicUseCase(settings, panics, okGateway{}, time.Second, logger),
		Redactor:   usecase.NewNotificationRedactor(tr.NeutralNotifications()),
		Resources:  usecase.NewResourcesUseCase(catalog, nil, logger),
	}
	auth := api.NewAuthenticator(testSecret)
	return api.NewServer(svc, auth, 5*time.Second, logger).Routes(), auth
}

type client struct {
	t     *testing.T
	h     http.Handler
	token string
}

func (c *client) do(method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	return rec
}

func newClient(t *testing.T, h http.Handler, auth *api.Authenticator, userID string) *client {
	t.Helper()
	tok, err := auth.Mint(userID, time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return &client{t: t, h: h, token: tok}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestAuth(t *testing.T) {
	h, _ := newTestServer(t)

	t.Run("health needs no token", func(t *testing.T) {
		rec := (&client{t: t, h: h}).do(http.MethodGet, "/health", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
	})

	t.Run("missing token is 401", func(t *testing.T) {
		rec := (&client{t: t, h: h}).do(http.MethodGet, "/api/v1/safety/settings", nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})

	t.Run("foreign signature is 401", func(t *testing.T) {
		other := api.NewAuthenticator("another-secret")
		c := newClient(t, h, other, "u1")
		if rec := c.do(http.MethodGet, "/api/v1/safety/settings", nil, nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})

	t.Run("expired token is 401", func(t *testing.T) {
		auth := api.NewAuthenticator(testSecret)
		tok, _ := auth.Mint("u1", -time.Minute)
		c := &client{t: t, h: h, token: tok}
		if rec := c.do(http.MethodGet, "/api/v1/safety/settings", nil, nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})
}

func TestSettingsRoutes(t *testing.T) {
	h, auth := newTestServer(t)
	c := newClient(t, h, auth, "u1")

	t.Run("get returns defaults", func(t *testing.T) {
		rec := c.do(http.MethodGet, "/api/v1/safety/settings", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
		s := decodeBody[model.SafetySettings](t, rec)
		if s.UserID != "u1" || !s.AllowMessages || s.SafeExitURL != model.DefaultSafeExitURL {
			t.Errorf("unexpected defaults %+v", s)
		}
		if rec.Header().Get("Cache-Control") != "no-store" {
			t.Error("safety responses must not be cached")
		}
	})

	t.Run("invalid url is 400 with field", func(t *testing.T) {
		rec := c.do(http.MethodPut, "/api/v1/safety/settings", map[string]any{"safeExitUrl": "javascript:alert(1)"}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
		body := decodeBody[map[string]string](t, rec)
		if body["field"] != "safeExitUrl" {
			t.Errorf("expected field safeExitUrl, got %v", body)
		}
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		rec := c.do(http.MethodPut, "/api/v1/safety/settings", `{"isAdmin":true}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("safe mode then reset", func(t *testing.T) {
		rec := c.do(http.MethodPost, "/api/v1/safety/safe-mode", nil, nil)
		s := decodeBody[model.SafetySettings](t, rec)
		if !s.IsSafeMode || !s.HideFromSearch || !s.PanicButton {
			t.Fatalf("expected safe-mode posture, got %+v", s)
		}
		rec = c.do(http.MethodPost, "/api/v1/safety/settings/reset", nil, nil)
		s = decodeBody[model.SafetySettings](t, rec)
		if s.IsSafeMode || s.HideFromSearch {
			t.Errorf("expected defaults after reset, got %+v", s)
		}
	})
}

func TestContactAndPanicRoutes(t *testing.T) {
	h, auth := newTestServer(t)
	c := newClient(t, h, auth, "u1")

	rec := c.do(http.MethodPost, "/api/v1/safety/emergency-contacts", map[string]any{
		"name": "Sam", "phone": "+61 400 000 000", "relationship": "sister",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}
	contact := decodeBody[model.EmergencyContact](t, rec)

	rec = c.do(http.MethodPost, "/api/v1/safety/panic", nil, nil)
	res := decodeBody[model.PanicResult](t, rec)
	if !res.Success || len(res.NotifiedContactIDs) != 1 || res.NotifiedContactIDs[0] != contact.ID {
		t.Errorf("unexpected panic result %+v", res)
	}

	rec = c.do(http.MethodDelete, "/api/v1/safety/emergency-contacts/"+contact.ID, nil, nil)
	if got := decodeBody[map[string]bool](t, rec); !got["removed"] {
		t.Errorf("expected removal, got %v", got)
	}
	rec = c.do(http.MethodDelete, "/api/v1/safety/emergency-contacts/"+contact.ID, nil, nil)
	if got := decodeBody[map[string]bool](t, rec); got["removed"] {
		t.Errorf("second removal must report false, got %v", got)
	}

	t.Run("bad phone is 400", func(t *testing.T) {
		rec := c.do(http.MethodPost, "/api/v1/safety/emergency-contacts", map[string]any{
			"name": "X", "phone": "abc", "relationship": "friend",
		}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("the eleventh contact is 409", func(t *testing.T) {
		for i := 0; i < model.MaxEmergencyContacts; i++ {
			c.do(http.MethodPost, "/api/v1/safety/emergency-contacts", map[string]any{
				"name": "C", "phone": "0400 000 000", "relationship": "friend",
			}, nil)
		}
		rec := c.do(http.MethodPost, "/api/v1/safety/emergency-contacts", map[string]any{
			"name": "C", "phone": "0400 000 000", "relationship": "friend",
		}, nil)
		if rec.Code != http.StatusConflict {
			t.Fatalf("want 409, got %d", rec.Code)
		}
	})
}

func TestVisibilityRoutes(t *testing.T) {
	h, auth := newTestServer(t)
	c := newClient(t, h, auth, "u1")

	rec := c.do(http.MethodGet, "/api/v1/safety/visibility/u2", nil, nil)
	if got := decodeBody[map[string]bool](t, rec); !got["visible"] {
		t.Fatalf("expected visible by default, got %v", got)
	}
	c.do(http.MethodPost, "/api/v1/safety/block/u2", nil, nil)
	rec = c.do(http.MethodGet, "/api/v1/safety/visibility/u2", nil, nil)
	if got := decodeBody[map[string]bool](t, rec); got["visible"] {
		t.Errorf("blocked viewer must not see the profile, got %v", got)
	}
	if rec := c.do(http.MethodPost, "/api/v1/safety/block/u1", nil, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("self block should be 400, got %d", rec.Code)
	}
}

func TestChatRoutes(t *testing.T) {
	h, auth := newTestServer(t)
	owner := newClient(t, h, auth, "owner")
	friend := newClient(t, h, auth, "friend")
	stranger := newClient(t, h, auth, "stranger")

	rec := owner.do(http.MethodPost, "/api/v1/safety/chats", map[string]any{
		"name": "Support", "participants": []string{"friend"}, "accessPin": "4242",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}
	chat := decodeBody[map[string]any](t, rec)
	chatID, _ := chat["id"].(string)
	if _, leaked := chat["accessPinHash"]; leaked {
		t.Fatal("pin hash must never be serialized")
	}

	base := "/api/v1/safety/chats/" + chatID
	rec = friend.do(http.MethodPost, base+"/messages", map[string]any{"content": "hi", "pin": "4242", "autoDeleteMinutes": 0.5}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("send: want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	msg := decodeBody[model.SafeMessage](t, rec)
	if msg.Content != "hi" || msg.AutoDeleteAt == nil {
		t.Errorf("unexpected message %+v", msg)
	}

	t.Run("denials are indistinguishable", func(t *testing.T) {
		bodies := []string{
			stranger.do(http.MethodPost, base+"/access", map[string]string{"pin": "4242"}, nil).Body.String(),
			friend.do(http.MethodPost, base+"/access", map[string]string{"pin": "0000"}, nil).Body.String(),
			friend.do(http.MethodPost, "/api/v1/safety/chats/nope/access", map[string]string{"pin": "4242"}, nil).Body.String(),
			friend.do(http.MethodPost, base+"/messages", map[string]any{"content": "no pin"}, nil).Body.String(),
			friend.do(http.MethodPost, base+"/messages", map[string]any{"content": "bad pin", "pin": "0000"}, nil).Body.String(),
			friend.do(http.MethodPost, "/api/v1/safety/chats/nope/messages", map[string]any{"content": "x", "pin": "4242"}, nil).Body.String(),
		}
		for _, b := range bodies {
			if strings.TrimSpace(b) != "null" {
				t.Errorf("expected null, got %q", b)
			}
		}
	})

	t.Run("correct pin opens the chat", func(t *testing.T) {
		rec := friend.do(http.MethodPost, base+"/access", map[string]string{"pin": "4242"}, nil)
		got := decodeBody[model.SafeChat](t, rec)
		if len(got.Messages) != 1 || got.Messages[0].Content != "hi" {
			t.Errorf("expected decrypted message, got %+v", got.Messages)
		}
	})

	t.Run("hidden chat is listed only with the pin", func(t *testing.T) {
		rec := owner.do(http.MethodGet, "/api/v1/safety/chats", nil, nil)
		if got := decodeBody[map[string][]model.SafeChat](t, rec); len(got["items"]) != 0 {
			t.Errorf("hidden chat leaked without pin: %+v", got)
		}
		rec = owner.do(http.MethodGet, "/api/v1/safety/chats", nil, map[string]string{api.PinHeader: "4242"})
		if got := decodeBody[map[string][]model.SafeChat](t, rec); len(got["items"]) != 1 {
			t.Errorf("expected the hidden chat with pin, got %+v", got)
		}
	})

	t.Run("zero minute ttl is 400", func(t *testing.T) {
		rec := friend.do(http.MethodPost, base+"/messages", map[string]any{"content": "x", "autoDeleteMinutes": 0}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("want 400, got %d", rec.Code)
		}
	})

	t.Run("owner can unhide", func(t *testing.T) {
		rec := owner.do(http.MethodPost, base+"/visibility", map[string]any{"hidden": false, "pin": "4242"}, nil)
		got := decodeBody[model.SafeChat](t, rec)
		if got.IsHidden {
			t.Errorf("expected visible chat, got %+v", got)
		}
	})
}

func TestNotificationAndResourceRoutes(t *testing.T) {
	h, auth := newTestServer(t)
	c := newClient(t, h, auth, "u1")

	rec := c.do(http.MethodPost, "/api/v1/safety/safe-notification", map[string]string{
		"title": "Message from Jordan", "message": "Are you at the shelter?",
	}, nil)
	n := decodeBody[model.Notification](t, rec)
	if strings.Contains(strings.ToLower(n.Title+n.Message), "shelter") {
		t.Errorf("notification leaked content: %+v", n)
	}

	rec = c.do(http.MethodGet, "/api/v1/safety/resources?region=nz", nil, nil)
	if got := decodeBody[map[string][]model.SupportResource](t, rec); len(got["items"]) != 1 {
		t.Errorf("expected one NZ resource, got %+v", got)
	}

	rec = c.do(http.MethodPost, "/api/v1/safety/clear-traces", nil, nil)
	ins := decodeBody[model.ClientInstructions](t, rec)
	if !ins.ClearLocalStorage || !ins.ReplaceHistory {
		t.Errorf("unexpected instructions %+v", ins)
	}
}
