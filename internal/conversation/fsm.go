package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/cafebotify/cafebot-backend/internal/catalog"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/services"
)

const (
	minQuantity = 1
	maxQuantity = 5

	laterOffsetMinutes = 20
)

type Config struct {
	CafeName    string
	CafePhone   string
	AdminUserID string
	CatalogPath string
}

// Engine drives the ordering dialog. Each HandleMessage call is one unit of
// work: load the session, dispatch on (state, input), save, reply. The
// session store is the single source of truth; the engine keeps no per-user
// state in memory.
type Engine struct {
	log      *logger.Logger
	sessions *Sessions
	catalog  *catalog.Catalog
	calendar *catalog.Calendar
	orders   services.OrderService
	stats    services.StatsService
	cfg      Config
	now      func() time.Time
}

func NewEngine(
	baseLog *logger.Logger,
	sessions *Sessions,
	cat *catalog.Catalog,
	cal *catalog.Calendar,
	orders services.OrderService,
	stats services.StatsService,
	cfg Config,
) *Engine {
	return &Engine{
		log:      baseLog.With("service", "ConversationEngine"),
		sessions: sessions,
		catalog:  cat,
		calendar: cal,
		orders:   orders,
		stats:    stats,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the engine's clock. Used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) isAdmin(userID string) bool {
	return e.cfg.AdminUserID != "" && userID == e.cfg.AdminUserID
}

// HandleMessage consumes one inbound message and produces the outbound
// replies. Unknown input never transitions: the current state's prompt is
// re-displayed unchanged.
func (e *Engine) HandleMessage(ctx context.Context, userID, displayName, text string) []Reply {
	text = strings.TrimSpace(text)
	if userID == "" || text == "" {
		return nil
	}

	sess, err := e.sessions.Load(ctx, userID)
	if err != nil {
		// the session could not be read, so the conversation stays in its
		// last known state rather than being advanced blindly
		e.log.Warn("Session load failed", "user_id", userID, "error", err)
		return []Reply{tryAgainReply()}
	}

	var replies []Reply
	switch sess.State {
	case StateAwaitingQuantity:
		replies = e.handleAwaitingQuantity(ctx, sess, text)
	case StateCartReview:
		replies = e.handleCartReview(ctx, sess, text)
	case StateAwaitingConfirmation:
		replies = e.handleAwaitingConfirmation(ctx, sess, displayName, text)
	case StateAwaitingFulfillment:
		replies = e.handleAwaitingFulfillment(ctx, sess, displayName, text)
	default:
		replies = e.handleIdle(ctx, sess, displayName, text)
	}

	if err := e.sessions.Save(ctx, sess); err != nil {
		e.log.Warn("Session save failed", "user_id", userID, "error", err)
	}
	return replies
}

func (e *Engine) handleIdle(ctx context.Context, sess *Session, displayName, text string) []Reply {
	now := e.now()

	switch {
	case strings.EqualFold(text, "/start"):
		sess.State = StateIdle
		sess.Cart.Clear()
		sess.Scratch = Scratch{}
		return []Reply{e.idlePrompt(now)}

	case strings.EqualFold(text, "/stats"):
		return e.handleStats(ctx, sess)

	case strings.EqualFold(text, "/reload"):
		return e.handleReload(sess)

	case strings.EqualFold(text, btnCall):
		return []Reply{e.callReply(displayName, now)}

	case strings.EqualFold(text, btnHours):
		return []Reply{e.hoursReply(displayName, now)}

	case strings.EqualFold(text, btnCart) && !sess.Cart.Empty():
		sess.State = StateCartReview
		return []Reply{e.cartReview(sess.Cart)}
	}

	if e.catalog.Has(text) {
		if !e.calendar.IsOpen(now) {
			// explain, stay idle
			return []Reply{e.closedReply(now)}
		}
		sess.State = StateAwaitingQuantity
		sess.Scratch.CurrentItem = text
		return []Reply{e.quantityPrompt(text)}
	}

	return []Reply{e.idlePrompt(now)}
}

// handleStats serves the admin counters. A non-admin asking for stats gets
// no reply at all, same as any other unknown command would not.
func (e *Engine) handleStats(ctx context.Context, sess *Session) []Reply {
	if !e.isAdmin(sess.UserID) {
		return []Reply{e.idlePrompt(e.now())}
	}
	if e.stats == nil {
		return []Reply{{Text: "Stats are not available."}}
	}
	summary, err := e.stats.Summary(ctx, e.catalog.Items())
	if err != nil {
		e.log.Warn("Stats summary failed", "error", err)
		return []Reply{{Text: "Stats are not available right now."}}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Order stats\n\nTotal orders: %d\n", summary.TotalOrders)
	for _, item := range summary.Items {
		fmt.Fprintf(&b, "%s: %d\n", item.Item, item.Orders)
	}
	return []Reply{{Text: b.String()}}
}

// handleReload hot-swaps the catalog from the config file. Only the
// configured administrator may change it; anyone else gets a read-only
// menu view and stays idle.
func (e *Engine) handleReload(sess *Session) []Reply {
	if !e.isAdmin(sess.UserID) {
		return []Reply{{
			Text:     "Our menu: " + e.menuText(),
			Keyboard: infoKeyboard(),
		}}
	}
	cfg := catalog.LoadFile(e.cfg.CatalogPath)
	e.catalog.Replace(cfg.Cafe.Menu)
	return []Reply{{
		Text:     fmt.Sprintf("Catalog reloaded: %d items.", len(e.catalog.Items())),
		Keyboard: e.menuKeyboard(),
	}}
}

func (e *Engine) handleAwaitingQuantity(ctx context.Context, sess *Session, text string) []Reply {
	if strings.EqualFold(text, btnCancel) {
		// return to the nearest checkpoint: a non-empty cart survives an
		// unrelated cancel
		sess.Scratch = Scratch{}
		if sess.Cart.Empty() {
			sess.State = StateIdle
			return []Reply{e.idlePrompt(e.now())}
		}
		sess.State = StateCartReview
		return []Reply{e.cartReview(sess.Cart)}
	}

	qty, ok := parseQuantity(text)
	if !ok {
		return []Reply{{
			Text:            fmt.Sprintf("Please pick a number from %d to %d.", minQuantity, maxQuantity),
			Keyboard:        quantityKeyboard(),
			OneTimeKeyboard: true,
		}}
	}

	item := sess.Scratch.CurrentItem
	if item == "" || !e.catalog.Has(item) {
		// the item vanished mid-flow (catalog reload); restart the pick
		sess.Scratch = Scratch{}
		sess.State = StateIdle
		return []Reply{e.idlePrompt(e.now())}
	}

	sess.Cart.Add(item, qty)
	sess.Scratch = Scratch{}
	sess.State = StateCartReview
	return []Reply{e.cartReview(sess.Cart)}
}

// parseQuantity reads the leading digit so both "2" and button labels like
// "2x" or emoji-decorated digits are accepted.
func parseQuantity(text string) (int, bool) {
	runes := []rune(text)
	if len(runes) == 0 || !unicode.IsDigit(runes[0]) {
		return 0, false
	}
	qty := int(runes[0] - '0')
	if qty < minQuantity || qty > maxQuantity {
		return 0, false
	}
	return qty, true
}

func (e *Engine) handleCartReview(ctx context.Context, sess *Session, text string) []Reply {
	switch {
	case strings.EqualFold(text, btnCheckout):
		if sess.Cart.Empty() {
			return []Reply{e.cartReview(sess.Cart)}
		}
		sess.State = StateAwaitingConfirmation
		return []Reply{e.confirmPrompt(sess.Cart)}

	case strings.EqualFold(text, btnClear):
		sess.Cart.Clear()
		sess.State = StateIdle
		return []Reply{{Text: "Cart cleared."}, e.idlePrompt(e.now())}

	case strings.EqualFold(text, btnMenu):
		sess.State = StateIdle
		return []Reply{e.idlePrompt(e.now())}
	}

	if removed, ok := strings.CutPrefix(strings.ToLower(text), "remove "); ok {
		item := matchItem(e.catalog.Items(), strings.TrimSpace(removed))
		if item != "" && sess.Cart.Quantity(item) > 0 {
			sess.Cart.Remove(item)
			if sess.Cart.Empty() {
				sess.State = StateIdle
				return []Reply{{Text: item + " removed."}, e.idlePrompt(e.now())}
			}
			return []Reply{e.cartReview(sess.Cart)}
		}
		return []Reply{e.cartReview(sess.Cart)}
	}

	if e.catalog.Has(text) {
		if !e.calendar.IsOpen(e.now()) {
			return []Reply{e.closedReply(e.now())}
		}
		sess.State = StateAwaitingQuantity
		sess.Scratch.CurrentItem = text
		return []Reply{e.quantityPrompt(text)}
	}

	return []Reply{e.cartReview(sess.Cart)}
}

// matchItem resolves user text to a catalog item name, case-insensitively.
func matchItem(items []catalog.Item, text string) string {
	for _, it := range items {
		if strings.EqualFold(it.Name, text) {
			return it.Name
		}
	}
	return ""
}

func (e *Engine) handleAwaitingConfirmation(ctx context.Context, sess *Session, displayName, text string) []Reply {
	switch {
	case strings.EqualFold(text, btnConfirm):
		return e.finalize(ctx, sess, displayName, 0)

	case strings.EqualFold(text, btnPickTime):
		sess.State = StateAwaitingFulfillment
		return []Reply{fulfillmentPrompt()}

	case strings.EqualFold(text, btnCart):
		sess.State = StateCartReview
		return []Reply{e.cartReview(sess.Cart)}

	case strings.EqualFold(text, btnCancel):
		// cancelling the order itself discards the cart
		sess.Cart.Clear()
		sess.Scratch = Scratch{}
		sess.State = StateIdle
		return []Reply{{Text: "Order cancelled."}, e.idlePrompt(e.now())}
	}

	return []Reply{e.confirmPrompt(sess.Cart)}
}

func (e *Engine) handleAwaitingFulfillment(ctx context.Context, sess *Session, displayName, text string) []Reply {
	switch {
	case strings.EqualFold(text, btnNow):
		return e.finalize(ctx, sess, displayName, 0)

	case strings.EqualFold(text, btnIn20):
		return e.finalize(ctx, sess, displayName, laterOffsetMinutes)

	case strings.EqualFold(text, btnCancel):
		// cancelling a timing choice must not destroy the cart
		sess.State = StateCartReview
		return []Reply{e.cartReview(sess.Cart)}
	}

	return []Reply{fulfillmentPrompt()}
}

func (e *Engine) finalize(ctx context.Context, sess *Session, displayName string, offsetMinutes int) []Reply {
	order, err := e.orders.Finalize(ctx, services.FinalizeRequest{
		UserID:                   sess.UserID,
		DisplayName:              displayName,
		Cart:                     sess.Cart,
		FulfillmentOffsetMinutes: offsetMinutes,
	})
	if err != nil {
		var rl *services.RateLimitedError
		if errors.As(err, &rl) {
			// normal outcome: back to idle with the cart intact so the user
			// can retry without rebuilding it
			sess.State = StateIdle
			sess.Scratch = Scratch{}
			return []Reply{e.rateLimited(rl.RetryAfter)}
		}
		e.log.Error("Finalize failed", "user_id", sess.UserID, "error", err)
		return []Reply{tryAgainReply()}
	}

	reply := e.orderAccepted(order.ID, sess.Cart, order.Total, offsetMinutes)
	sess.Cart.Clear()
	sess.Scratch = Scratch{}
	sess.State = StateIdle
	return []Reply{reply}
}
