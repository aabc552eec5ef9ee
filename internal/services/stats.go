package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/cafebotify/cafebot-backend/internal/catalog"
	errs "github.com/cafebotify/cafebot-backend/internal/pkg/errors"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/store"
	"github.com/cafebotify/cafebot-backend/internal/types"
)

// StatsService keeps simple operator counters: total orders plus, per item,
// how many orders contained it.
type StatsService interface {
	RecordOrder(ctx context.Context, order *types.Order) error
	Summary(ctx context.Context, items []catalog.Item) (*StatsSummary, error)
}

type ItemOrderCount struct {
	Item   string `json:"item"`
	Orders int64  `json:"orders"`
}

type StatsSummary struct {
	TotalOrders int64            `json:"total_orders"`
	Items       []ItemOrderCount `json:"items"`
}

type statsService struct {
	log   *logger.Logger
	store store.Store
}

func NewStatsService(baseLog *logger.Logger, st store.Store) StatsService {
	return &statsService{
		log:   baseLog.With("service", "StatsService"),
		store: st,
	}
}

func (s *statsService) RecordOrder(ctx context.Context, order *types.Order) error {
	if order == nil {
		return errs.ErrInvalidArgument
	}
	if _, err := s.store.Incr(ctx, "stats:total_orders"); err != nil {
		return err
	}
	for _, line := range order.Lines {
		if _, err := s.store.Incr(ctx, "stats:item:"+line.Item); err != nil {
			return err
		}
	}
	return nil
}

func (s *statsService) counter(ctx context.Context, key string) (int64, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, errs.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Summary reports counters for the given catalog items in their display
// order; items never ordered are omitted.
func (s *statsService) Summary(ctx context.Context, items []catalog.Item) (*StatsSummary, error) {
	total, err := s.counter(ctx, "stats:total_orders")
	if err != nil {
		return nil, err
	}
	out := &StatsSummary{TotalOrders: total}
	for _, it := range items {
		n, err := s.counter(ctx, "stats:item:"+it.Name)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			out.Items = append(out.Items, ItemOrderCount{Item: it.Name, Orders: n})
		}
	}
	return out, nil
}
