package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/cafebotify/cafebot-backend/internal/cart"
)

// Reply is one outbound message: rendered text plus an optional reply
// keyboard hint for the transport.
type Reply struct {
	Text            string
	Keyboard        [][]string
	OneTimeKeyboard bool
}

// Button labels. The transport renders these as reply-keyboard buttons, but
// plain text input matching them works identically.
const (
	btnCancel   = "Cancel"
	btnCheckout = "Checkout"
	btnConfirm  = "Confirm"
	btnPickTime = "Pick time"
	btnCart     = "Cart"
	btnClear    = "Clear"
	btnMenu     = "Menu"
	btnNow      = "Now"
	btnIn20     = "In 20 min"
	btnCall     = "Call us"
	btnHours    = "Opening hours"
)

func (e *Engine) menuKeyboard() [][]string {
	var rows [][]string
	for _, it := range e.catalog.Items() {
		rows = append(rows, []string{it.Name})
	}
	rows = append(rows, []string{btnCall, btnHours})
	return rows
}

func infoKeyboard() [][]string {
	return [][]string{{btnCall, btnHours}}
}

func quantityKeyboard() [][]string {
	return [][]string{
		{"1", "2", "3"},
		{"4", "5", btnCancel},
	}
}

func cartKeyboard() [][]string {
	return [][]string{
		{btnCheckout, btnClear},
		{btnMenu},
	}
}

func confirmKeyboard() [][]string {
	return [][]string{
		{btnConfirm, btnPickTime},
		{btnCart, btnCancel},
	}
}

func fulfillmentKeyboard() [][]string {
	return [][]string{
		{btnNow, btnIn20},
		{btnCancel},
	}
}

func (e *Engine) menuText() string {
	parts := make([]string, 0, 4)
	for _, it := range e.catalog.Items() {
		parts = append(parts, fmt.Sprintf("%s %d", it.Name, it.Price))
	}
	return strings.Join(parts, " | ")
}

func (e *Engine) idlePrompt(now time.Time) Reply {
	if !e.calendar.IsOpen(now) {
		return e.closedReply(now)
	}
	text := fmt.Sprintf(
		"%s\n%s\n\nPick a drink:",
		e.cfg.CafeName, e.calendar.StatusText(now),
	)
	return Reply{Text: text, Keyboard: e.menuKeyboard()}
}

// closedReply still shows the menu so the customer can plan ahead.
func (e *Engine) closedReply(now time.Time) Reply {
	text := fmt.Sprintf(
		"%s is closed right now.\n%s\n\nOur menu: %s\n\nCall us: %s\nSee you soon!",
		e.cfg.CafeName, e.calendar.StatusText(now), e.menuText(), e.cfg.CafePhone,
	)
	return Reply{Text: text, Keyboard: infoKeyboard()}
}

func (e *Engine) quantityPrompt(item string) Reply {
	price, _ := e.catalog.Price(item)
	return Reply{
		Text:            fmt.Sprintf("%s — %d\n\nHow many? (1-5)", item, price),
		Keyboard:        quantityKeyboard(),
		OneTimeKeyboard: true,
	}
}

func (e *Engine) cartReview(c *cart.Cart) Reply {
	if c.Empty() {
		return Reply{
			Text:     "Your cart is empty. Pick something from the menu.",
			Keyboard: e.menuKeyboard(),
		}
	}
	var b strings.Builder
	b.WriteString("Your cart:\n")
	for line := range c.Lines(e.catalog) {
		fmt.Fprintf(&b, "%s x %d — %d\n", line.Item, line.Quantity, line.Subtotal)
	}
	fmt.Fprintf(&b, "\nTotal: %d", c.Total(e.catalog))
	b.WriteString("\n\nAdd more from the menu, or checkout.")
	return Reply{Text: b.String(), Keyboard: cartKeyboard()}
}

func (e *Engine) confirmPrompt(c *cart.Cart) Reply {
	return Reply{
		Text:            fmt.Sprintf("Total: %d. Confirm the order?", c.Total(e.catalog)),
		Keyboard:        confirmKeyboard(),
		OneTimeKeyboard: true,
	}
}

func fulfillmentPrompt() Reply {
	return Reply{
		Text:            "When would you like to pick it up?",
		Keyboard:        fulfillmentKeyboard(),
		OneTimeKeyboard: true,
	}
}

func (e *Engine) orderAccepted(orderID string, c *cart.Cart, total int64, offsetMinutes int) Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "Order #%s accepted!\n\n", orderID)
	for line := range c.Lines(e.catalog) {
		fmt.Fprintf(&b, "%s x %d\n", line.Item, line.Quantity)
	}
	fmt.Fprintf(&b, "\nTotal: %d\n", total)
	if offsetMinutes > 0 {
		fmt.Fprintf(&b, "Ready in %d minutes.\n", offsetMinutes)
	} else {
		b.WriteString("We are on it!\n")
	}
	fmt.Fprintf(&b, "%s", e.cfg.CafePhone)
	return Reply{Text: b.String(), Keyboard: e.menuKeyboard()}
}

func (e *Engine) rateLimited(wait time.Duration) Reply {
	secs := int(wait.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return Reply{
		Text:     fmt.Sprintf("Give us a minute: you can place your next order in %d seconds. Your cart is saved.", secs),
		Keyboard: e.menuKeyboard(),
	}
}

func (e *Engine) callReply(displayName string, now time.Time) Reply {
	name := displayName
	if name == "" {
		name = "friend"
	}
	if e.calendar.IsOpen(now) {
		return Reply{
			Text: fmt.Sprintf(
				"%s, happy to help!\n\nPhone: %s\n\nOr just pick a drink from the menu and I will set it up here.",
				name, e.cfg.CafePhone,
			),
			Keyboard: e.menuKeyboard(),
		}
	}
	return Reply{
		Text: fmt.Sprintf(
			"%s, we are closed right now.\n\nPhone: %s\n%s\n\nBrowse the menu and order as soon as we open.",
			name, e.cfg.CafePhone, e.calendar.StatusText(now),
		),
		Keyboard: infoKeyboard(),
	}
}

func (e *Engine) hoursReply(displayName string, now time.Time) Reply {
	name := displayName
	if name == "" {
		name = "friend"
	}
	local := now.In(e.calendar.Location()).Format("15:04")
	text := fmt.Sprintf(
		"%s, it is %s here.\n%s\n\nPhone: %s",
		name, local, e.calendar.StatusText(now), e.cfg.CafePhone,
	)
	kb := infoKeyboard()
	if e.calendar.IsOpen(now) {
		kb = e.menuKeyboard()
	}
	return Reply{Text: text, Keyboard: kb}
}

func tryAgainReply() Reply {
	return Reply{Text: "Something went wrong on our side, please try again."}
}
