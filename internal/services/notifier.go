package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/cafebotify/cafebot-backend/internal/clients/sendgrid"
	"github.com/cafebotify/cafebot-backend/internal/clients/telegram"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/types"
)

// Notifier fans a rendered message out to the configured destinations.
// OrderPlaced is fully best-effort: every failure is logged and swallowed so
// a broken channel never rolls back a finalized order. WinBack returns the
// customer-channel error because the scheduler treats it as "unreachable".
type Notifier interface {
	OrderPlaced(ctx context.Context, order *types.Order)
	WinBack(ctx context.Context, userID, favoriteItem string) error
}

type NotifierConfig struct {
	CafeName    string
	CafePhone   string
	AdminChatID string
	StaffEmail  string
}

type notifier struct {
	log   *logger.Logger
	tg    telegram.Client
	email sendgrid.Client
	cfg   NotifierConfig
}

func NewNotifier(baseLog *logger.Logger, tg telegram.Client, email sendgrid.Client, cfg NotifierConfig) Notifier {
	return &notifier{
		log:   baseLog.With("service", "Notifier"),
		tg:    tg,
		email: email,
		cfg:   cfg,
	}
}

func renderOrderLines(order *types.Order) string {
	var b strings.Builder
	for _, l := range order.Lines {
		fmt.Fprintf(&b, "%s x %d — %d\n", l.Item, l.Quantity, l.Subtotal)
	}
	return b.String()
}

func (n *notifier) OrderPlaced(ctx context.Context, order *types.Order) {
	if n == nil || order == nil {
		return
	}

	name := order.DisplayName
	if name == "" {
		name = "Customer"
	}
	fulfillment := "as soon as possible"
	if order.FulfillmentOffsetMinutes > 0 {
		fulfillment = fmt.Sprintf("in %d minutes", order.FulfillmentOffsetMinutes)
	}

	adminText := fmt.Sprintf(
		"NEW ORDER #%s | %s\n\n%s\n%s\n\n%sTotal: %d\nPickup: %s\n\n%s",
		order.ID, n.cfg.CafeName, name, order.UserID,
		renderOrderLines(order), order.Total, fulfillment, n.cfg.CafePhone,
	)

	if n.tg != nil && n.cfg.AdminChatID != "" {
		if _, err := n.tg.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID:                n.cfg.AdminChatID,
			Text:                  adminText,
			DisableWebPagePreview: true,
		}); err != nil {
			n.log.Warn("Admin order notification failed", "order_id", order.ID, "error", err)
		}
	}

	if n.email != nil && n.cfg.StaffEmail != "" {
		if _, err := n.email.Send(ctx, sendgrid.SendEmailRequest{
			To:      []sendgrid.EmailAddress{{Email: n.cfg.StaffEmail}},
			Subject: fmt.Sprintf("New order #%s", order.ID),
			Text:    adminText,
		}); err != nil {
			n.log.Warn("Staff email notification failed", "order_id", order.ID, "error", err)
		}
	}
}

func (n *notifier) WinBack(ctx context.Context, userID, favoriteItem string) error {
	if n == nil || n.tg == nil {
		return fmt.Errorf("notifier unavailable")
	}
	if userID == "" {
		return fmt.Errorf("notifier: user id required")
	}

	text := fmt.Sprintf(
		"We miss you at %s! Your favorite %s is waiting — come back this week and get 10%% off. %s",
		n.cfg.CafeName, favoriteItem, n.cfg.CafePhone,
	)
	if favoriteItem == "" {
		text = fmt.Sprintf(
			"We miss you at %s! Come back this week and get 10%% off your order. %s",
			n.cfg.CafeName, n.cfg.CafePhone,
		)
	}

	if _, err := n.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:                userID,
		Text:                  text,
		DisableWebPagePreview: true,
	}); err != nil {
		return err
	}

	if n.email != nil && n.cfg.StaffEmail != "" {
		if _, err := n.email.Send(ctx, sendgrid.SendEmailRequest{
			To:      []sendgrid.EmailAddress{{Email: n.cfg.StaffEmail}},
			Subject: "Win-back message sent",
			Text:    fmt.Sprintf("Customer %s was offered a discount on %s.", userID, favoriteItem),
		}); err != nil {
			n.log.Warn("Staff win-back copy failed", "user_id", userID, "error", err)
		}
	}
	return nil
}
