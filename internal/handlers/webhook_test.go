package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cafebotify/cafebot-backend/internal/catalog"
	"github.com/cafebotify/cafebot-backend/internal/clients/telegram"
	"github.com/cafebotify/cafebot-backend/internal/conversation"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/ratelimit"
	"github.com/cafebotify/cafebot-backend/internal/services"
	"github.com/cafebotify/cafebot-backend/internal/store"
	"github.com/cafebotify/cafebot-backend/internal/types"
)

type sentMessage struct {
	ChatID string
	Text   string
}

type stubTransport struct {
	sent []sentMessage
}

func (s *stubTransport) SendMessage(_ context.Context, req telegram.SendMessageRequest) (*telegram.Message, error) {
	s.sent = append(s.sent, sentMessage{ChatID: req.ChatID, Text: req.Text})
	return &telegram.Message{}, nil
}

func (s *stubTransport) SetWebhook(context.Context, string, string) error { return nil }
func (s *stubTransport) DeleteWebhook(context.Context) error              { return nil }

type noopNotifier struct{}

func (noopNotifier) OrderPlaced(context.Context, *types.Order)     {}
func (noopNotifier) WinBack(context.Context, string, string) error { return nil }

func newWebhookFixture(t *testing.T) (*WebhookHandler, *stubTransport) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Nop()
	st := store.NewMemory()
	cat := catalog.New([]catalog.Item{{Name: "Latte", Price: 270}})
	cal := catalog.NewCalendar(0, 23, time.UTC)
	profiles := services.NewProfileService(log, st)
	stats := services.NewStatsService(log, st)
	limiter := ratelimit.New(log, st)
	orders := services.NewOrderService(log, st, limiter, cat, nil, profiles, stats, noopNotifier{}, time.Minute)
	sessions := conversation.NewSessions(log, st)
	engine := conversation.NewEngine(log, sessions, cat, cal, orders, stats, conversation.Config{
		CafeName:  "Cafe Cozy",
		CafePhone: "+7 989 273-67-56",
	})

	tg := &stubTransport{}
	return NewWebhookHandler(log, engine, tg, "topsecret"), tg
}

func postUpdate(h *WebhookHandler, secret, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if secret != "" {
		c.Request.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
	}
	h.Handle(c)
	return w
}

const sampleUpdate = `{
	"update_id": 1,
	"message": {
		"message_id": 10,
		"from": {"id": 42, "first_name": "Alice"},
		"chat": {"id": 42},
		"text": "Latte"
	}
}`

func TestWebhookRejectsBadSecret(t *testing.T) {
	h, tg := newWebhookFixture(t)

	if w := postUpdate(h, "wrong", sampleUpdate); w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if w := postUpdate(h, "", sampleUpdate); w.Code != http.StatusForbidden {
		t.Fatalf("missing secret: status = %d, want 403", w.Code)
	}
	if len(tg.sent) != 0 {
		t.Fatalf("no messages expected, got %d", len(tg.sent))
	}
}

func TestWebhookDispatchesToConversation(t *testing.T) {
	h, tg := newWebhookFixture(t)

	w := postUpdate(h, "topsecret", sampleUpdate)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(tg.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(tg.sent))
	}
	if tg.sent[0].ChatID != "42" {
		t.Fatalf("chat id = %q, want 42", tg.sent[0].ChatID)
	}
	if !strings.Contains(tg.sent[0].Text, "How many?") {
		t.Fatalf("unexpected reply: %q", tg.sent[0].Text)
	}
}

func TestWebhookIgnoresNonMessageUpdates(t *testing.T) {
	h, tg := newWebhookFixture(t)

	w := postUpdate(h, "topsecret", `{"update_id": 2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	w = postUpdate(h, "topsecret", `{broken`)
	if w.Code != http.StatusOK {
		t.Fatalf("undecodable body: status = %d, want 200", w.Code)
	}
	if len(tg.sent) != 0 {
		t.Fatalf("no messages expected, got %d", len(tg.sent))
	}
}
