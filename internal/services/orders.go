package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cafebotify/cafebot-backend/internal/cart"
	"github.com/cafebotify/cafebot-backend/internal/catalog"
	errs "github.com/cafebotify/cafebot-backend/internal/pkg/errors"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/ratelimit"
	"github.com/cafebotify/cafebot-backend/internal/repos"
	"github.com/cafebotify/cafebot-backend/internal/store"
	"github.com/cafebotify/cafebot-backend/internal/types"
)

// orderSnapshotTTL bounds how long the hot copy of an order stays in the KV
// store. The archive row is the durable copy.
const orderSnapshotTTL = 24 * time.Hour

// RateLimitedError is a normal control-flow outcome, not a fault: the user
// confirmed again inside the window.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == errs.ErrRateLimited
}

type FinalizeRequest struct {
	UserID                   string
	DisplayName              string
	Cart                     *cart.Cart
	FulfillmentOffsetMinutes int
}

// OrderService runs the finalize sequence. The rate limiter is the only hard
// gate; everything downstream is best-effort and must never surface to the
// user as a failure.
type OrderService interface {
	Finalize(ctx context.Context, req FinalizeRequest) (*types.Order, error)
}

type orderService struct {
	log      *logger.Logger
	store    store.Store
	limiter  *ratelimit.Limiter
	catalog  *catalog.Catalog
	archive  repos.OrderRepo
	profiles ProfileService
	stats    StatsService
	notify   Notifier
	window   time.Duration
	now      func() time.Time
}

func NewOrderService(
	baseLog *logger.Logger,
	st store.Store,
	limiter *ratelimit.Limiter,
	cat *catalog.Catalog,
	archive repos.OrderRepo,
	profiles ProfileService,
	stats StatsService,
	notify Notifier,
	window time.Duration,
) OrderService {
	if window <= 0 {
		window = ratelimit.DefaultWindow
	}
	return &orderService{
		log:      baseLog.With("service", "OrderService"),
		store:    st,
		limiter:  limiter,
		catalog:  cat,
		archive:  archive,
		profiles: profiles,
		stats:    stats,
		notify:   notify,
		window:   window,
		now:      time.Now,
	}
}

func (s *orderService) Finalize(ctx context.Context, req FinalizeRequest) (*types.Order, error) {
	if req.UserID == "" || req.Cart == nil || req.Cart.Empty() {
		return nil, errs.ErrInvalidArgument
	}

	// Step 1: the hard gate. A store error here is logged and treated as an
	// accept, because blocking all orders on a flaky store is worse than
	// letting one extra through.
	ok, retryAfter, err := s.limiter.TryAcquire(ctx, req.UserID, s.window)
	if err != nil {
		s.log.Warn("Rate limiter unavailable, accepting order", "user_id", req.UserID, "error", err)
	} else if !ok {
		return nil, &RateLimitedError{RetryAfter: retryAfter}
	}

	// Step 2: snapshot the cart at current catalog prices.
	now := s.now()
	order := &types.Order{
		ID:                       fmt.Sprintf("%d-%s", now.Unix(), req.UserID),
		UserID:                   req.UserID,
		DisplayName:              req.DisplayName,
		Total:                    req.Cart.Total(s.catalog),
		FulfillmentOffsetMinutes: req.FulfillmentOffsetMinutes,
		CreatedAt:                now,
	}
	for line := range req.Cart.Lines(s.catalog) {
		order.Lines = append(order.Lines, types.OrderLine{
			Item:     line.Item,
			Quantity: line.Quantity,
			Subtotal: line.Subtotal,
		})
	}

	// Steps 3-5: best-effort side effects, logged and discarded.
	s.persistSnapshot(ctx, order)
	if s.profiles != nil {
		if err := s.profiles.RecordOrder(ctx, order); err != nil {
			s.log.Warn("Customer profile update failed", "order_id", order.ID, "error", err)
		}
	}
	if s.stats != nil {
		if err := s.stats.RecordOrder(ctx, order); err != nil {
			s.log.Warn("Stats counters update failed", "order_id", order.ID, "error", err)
		}
	}
	if s.notify != nil {
		s.notify.OrderPlaced(ctx, order)
	}

	return order, nil
}

func (s *orderService) persistSnapshot(ctx context.Context, order *types.Order) {
	raw, err := json.Marshal(order)
	if err != nil {
		s.log.Warn("Order snapshot encode failed", "order_id", order.ID, "error", err)
		return
	}
	if err := s.store.Set(ctx, "order:"+order.ID, string(raw), orderSnapshotTTL); err != nil {
		s.log.Warn("Order snapshot write failed", "order_id", order.ID, "error", err)
	}

	if s.archive == nil {
		return
	}
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		s.log.Warn("Order lines encode failed", "order_id", order.ID, "error", err)
		return
	}
	archived := &types.ArchivedOrder{
		ID:                       uuid.New(),
		OrderID:                  order.ID,
		UserID:                   order.UserID,
		DisplayName:              order.DisplayName,
		Lines:                    lines,
		Total:                    order.Total,
		FulfillmentOffsetMinutes: order.FulfillmentOffsetMinutes,
		CreatedAt:                order.CreatedAt,
	}
	if _, err := s.archive.Insert(ctx, nil, archived); err != nil {
		s.log.Warn("Order archive write failed", "order_id", order.ID, "error", err)
	}
}
