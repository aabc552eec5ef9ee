package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cafebotify/cafebot-backend/internal/catalog"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/ratelimit"
	"github.com/cafebotify/cafebot-backend/internal/services"
	"github.com/cafebotify/cafebot-backend/internal/store"
	"github.com/cafebotify/cafebot-backend/internal/types"
)

type stubNotifier struct {
	placed int
}

func (n *stubNotifier) OrderPlaced(context.Context, *types.Order) { n.placed++ }
func (n *stubNotifier) WinBack(context.Context, string, string) error {
	return nil
}

type fsmFixture struct {
	engine   *Engine
	sessions *Sessions
	catalog  *catalog.Catalog
	stats    services.StatsService
	notify   *stubNotifier
	now      *time.Time
}

func newFSMFixture(t *testing.T) *fsmFixture {
	t.Helper()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	log := logger.Nop()
	st := store.NewMemoryWithClock(clock)
	cat := catalog.New([]catalog.Item{
		{Name: "Cappuccino", Price: 250},
		{Name: "Latte", Price: 270},
		{Name: "Tea", Price: 180},
	})
	cal := catalog.NewCalendar(9, 21, time.UTC)
	profiles := services.NewProfileService(log, st)
	stats := services.NewStatsService(log, st)
	notify := &stubNotifier{}
	limiter := ratelimit.New(log, st).WithClock(clock)
	orders := services.NewOrderService(log, st, limiter, cat, nil, profiles, stats, notify, time.Minute)
	sessions := NewSessions(log, st)
	engine := NewEngine(log, sessions, cat, cal, orders, stats, Config{
		CafeName:    "Cafe Cozy",
		CafePhone:   "+7 989 273-67-56",
		AdminUserID: "admin",
	}).WithClock(clock)

	return &fsmFixture{
		engine:   engine,
		sessions: sessions,
		catalog:  cat,
		stats:    stats,
		notify:   notify,
		now:      &now,
	}
}

func (f *fsmFixture) send(t *testing.T, userID, text string) []Reply {
	t.Helper()
	return f.engine.HandleMessage(context.Background(), userID, "Alice", text)
}

func (f *fsmFixture) session(t *testing.T, userID string) *Session {
	t.Helper()
	sess, err := f.sessions.Load(context.Background(), userID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return sess
}

func lastReply(t *testing.T, replies []Reply) Reply {
	t.Helper()
	if len(replies) == 0 {
		t.Fatal("expected at least one reply")
	}
	return replies[len(replies)-1]
}

func TestHappyPathOrder(t *testing.T) {
	f := newFSMFixture(t)

	r := lastReply(t, f.send(t, "u1", "Latte"))
	if !strings.Contains(r.Text, "How many?") {
		t.Fatalf("expected quantity prompt, got %q", r.Text)
	}
	if got := f.session(t, "u1").State; got != StateAwaitingQuantity {
		t.Fatalf("state = %s", got)
	}

	r = lastReply(t, f.send(t, "u1", "2"))
	if !strings.Contains(r.Text, "Latte x 2 — 540") || !strings.Contains(r.Text, "Total: 540") {
		t.Fatalf("expected cart review, got %q", r.Text)
	}
	if got := f.session(t, "u1").State; got != StateCartReview {
		t.Fatalf("state = %s", got)
	}

	r = lastReply(t, f.send(t, "u1", "Checkout"))
	if !strings.Contains(r.Text, "Confirm the order?") {
		t.Fatalf("expected confirm prompt, got %q", r.Text)
	}

	r = lastReply(t, f.send(t, "u1", "Confirm"))
	if !strings.Contains(r.Text, "accepted") {
		t.Fatalf("expected acceptance, got %q", r.Text)
	}

	sess := f.session(t, "u1")
	if sess.State != StateIdle || !sess.Cart.Empty() {
		t.Fatalf("post-order session: state=%s cart=%v", sess.State, sess.Cart.Items())
	}
	if f.notify.placed != 1 {
		t.Fatalf("order notifications = %d, want 1", f.notify.placed)
	}
	sum, err := f.stats.Summary(context.Background(), f.catalog.Items())
	if err != nil || sum.TotalOrders != 1 {
		t.Fatalf("stats: %+v err=%v", sum, err)
	}
}

func TestDoubleConfirmKeepsCart(t *testing.T) {
	f := newFSMFixture(t)

	f.send(t, "u1", "Latte")
	f.send(t, "u1", "1")
	f.send(t, "u1", "Checkout")
	f.send(t, "u1", "Confirm")

	// rebuild a cart immediately and try to confirm again
	f.send(t, "u1", "Tea")
	f.send(t, "u1", "1")
	f.send(t, "u1", "Checkout")
	r := lastReply(t, f.send(t, "u1", "Confirm"))
	if !strings.Contains(r.Text, "Your cart is saved") {
		t.Fatalf("expected rate-limit reply, got %q", r.Text)
	}

	sess := f.session(t, "u1")
	if sess.State != StateIdle {
		t.Fatalf("state = %s, want idle", sess.State)
	}
	if sess.Cart.Quantity("Tea") != 1 {
		t.Fatalf("cart must survive rate limiting: %v", sess.Cart.Items())
	}

	sum, err := f.stats.Summary(context.Background(), f.catalog.Items())
	if err != nil || sum.TotalOrders != 1 {
		t.Fatalf("exactly one order expected: %+v err=%v", sum, err)
	}

	// the saved cart goes through once the window passes
	*f.now = f.now.Add(61 * time.Second)
	f.send(t, "u1", "Cart")
	f.send(t, "u1", "Checkout")
	r = lastReply(t, f.send(t, "u1", "Confirm"))
	if !strings.Contains(r.Text, "accepted") {
		t.Fatalf("expected acceptance after window, got %q", r.Text)
	}
}

func TestCancelFromQuantityKeepsCart(t *testing.T) {
	f := newFSMFixture(t)

	// empty cart: cancel returns to idle
	f.send(t, "u1", "Latte")
	f.send(t, "u1", "Cancel")
	if got := f.session(t, "u1").State; got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}

	// non-empty cart: cancel falls back to the cart, not to idle
	f.send(t, "u1", "Latte")
	f.send(t, "u1", "2")
	f.send(t, "u1", "Tea")
	f.send(t, "u1", "Cancel")
	sess := f.session(t, "u1")
	if sess.State != StateCartReview {
		t.Fatalf("state = %s, want cart_review", sess.State)
	}
	if sess.Cart.Quantity("Latte") != 2 {
		t.Fatalf("cart lost on cancel: %v", sess.Cart.Items())
	}
}

func TestCancelFromConfirmationDiscardsCart(t *testing.T) {
	f := newFSMFixture(t)

	f.send(t, "u1", "Latte")
	f.send(t, "u1", "2")
	f.send(t, "u1", "Checkout")
	f.send(t, "u1", "Cancel")

	sess := f.session(t, "u1")
	if sess.State != StateIdle || !sess.Cart.Empty() {
		t.Fatalf("cancel at confirmation: state=%s cart=%v", sess.State, sess.Cart.Items())
	}
}

func TestCancelFromFulfillmentKeepsCart(t *testing.T) {
	f := newFSMFixture(t)

	f.send(t, "u1", "Latte")
	f.send(t, "u1", "2")
	f.send(t, "u1", "Checkout")
	f.send(t, "u1", "Pick time")
	if got := f.session(t, "u1").State; got != StateAwaitingFulfillment {
		t.Fatalf("state = %s", got)
	}

	f.send(t, "u1", "Cancel")
	sess := f.session(t, "u1")
	if sess.State != StateCartReview {
		t.Fatalf("state = %s, want cart_review", sess.State)
	}
	if sess.Cart.Quantity("Latte") != 2 {
		t.Fatalf("cart lost on timing cancel: %v", sess.Cart.Items())
	}
}

func TestDeferredFulfillment(t *testing.T) {
	f := newFSMFixture(t)

	f.send(t, "u1", "Tea")
	f.send(t, "u1", "1")
	f.send(t, "u1", "Checkout")
	f.send(t, "u1", "Pick time")
	r := lastReply(t, f.send(t, "u1", "In 20 min"))
	if !strings.Contains(r.Text, "accepted") || !strings.Contains(r.Text, "Ready in 20 minutes") {
		t.Fatalf("expected deferred acceptance, got %q", r.Text)
	}
	if got := f.session(t, "u1").State; got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
}

func TestClosedShopBlocksOrdering(t *testing.T) {
	f := newFSMFixture(t)
	*f.now = time.Date(2025, 6, 2, 22, 0, 0, 0, time.UTC)

	r := lastReply(t, f.send(t, "u1", "Latte"))
	if !strings.Contains(r.Text, "closed") || !strings.Contains(r.Text, "Our menu:") {
		t.Fatalf("expected closed reply with menu preview, got %q", r.Text)
	}
	if got := f.session(t, "u1").State; got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
}

func TestUnknownInputDoesNotTransition(t *testing.T) {
	f := newFSMFixture(t)

	f.send(t, "u1", "Latte")
	f.send(t, "u1", "banana")
	if got := f.session(t, "u1").State; got != StateAwaitingQuantity {
		t.Fatalf("state = %s, want awaiting_quantity", got)
	}

	f.send(t, "u1", "9")
	if got := f.session(t, "u1").State; got != StateAwaitingQuantity {
		t.Fatalf("out-of-range quantity must not transition, state = %s", got)
	}
}

func TestRemoveLineFromCart(t *testing.T) {
	f := newFSMFixture(t)

	f.send(t, "u1", "Latte")
	f.send(t, "u1", "2")
	f.send(t, "u1", "Tea")
	f.send(t, "u1", "1")

	f.send(t, "u1", "remove tea")
	sess := f.session(t, "u1")
	if sess.State != StateCartReview || sess.Cart.Quantity("Tea") != 0 {
		t.Fatalf("after remove: state=%s cart=%v", sess.State, sess.Cart.Items())
	}

	// removing the last line lands back on idle
	f.send(t, "u1", "remove latte")
	sess = f.session(t, "u1")
	if sess.State != StateIdle || !sess.Cart.Empty() {
		t.Fatalf("after removing last line: state=%s cart=%v", sess.State, sess.Cart.Items())
	}
}

func TestVanishedItemRestartsPick(t *testing.T) {
	f := newFSMFixture(t)

	f.send(t, "u1", "Latte")
	f.catalog.Replace([]catalog.Item{{Name: "Tea", Price: 180}})
	f.send(t, "u1", "2")

	sess := f.session(t, "u1")
	if sess.State != StateIdle || !sess.Cart.Empty() {
		t.Fatalf("vanished item: state=%s cart=%v", sess.State, sess.Cart.Items())
	}
}

func TestStartResetsSession(t *testing.T) {
	f := newFSMFixture(t)

	f.send(t, "u1", "Latte")
	f.send(t, "u1", "2")
	f.send(t, "u1", "/start")

	sess := f.session(t, "u1")
	if sess.State != StateIdle || !sess.Cart.Empty() {
		t.Fatalf("after /start: state=%s cart=%v", sess.State, sess.Cart.Items())
	}
}

func TestStatsIsAdminOnly(t *testing.T) {
	f := newFSMFixture(t)

	f.send(t, "u1", "Latte")
	f.send(t, "u1", "1")
	f.send(t, "u1", "Checkout")
	f.send(t, "u1", "Confirm")

	r := lastReply(t, f.send(t, "admin", "/stats"))
	if !strings.Contains(r.Text, "Total orders: 1") || !strings.Contains(r.Text, "Latte: 1") {
		t.Fatalf("admin stats reply: %q", r.Text)
	}

	r = lastReply(t, f.send(t, "u1", "/stats"))
	if strings.Contains(r.Text, "Total orders") {
		t.Fatalf("non-admin must not see stats, got %q", r.Text)
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1", 1, true},
		{"5", 5, true},
		{"2x", 2, true},
		{"0", 0, false},
		{"6", 0, false},
		{"9", 0, false},
		{"two", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseQuantity(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("parseQuantity(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
