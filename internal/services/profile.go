package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	errs "github.com/cafebotify/cafebot-backend/internal/pkg/errors"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/store"
	"github.com/cafebotify/cafebot-backend/internal/types"
)

const profileKeyPrefix = "customer_profile:"

// ProfileService maintains the per-customer aggregates used by retention.
// All writes re-read the stored record first: several instances may be
// recording orders for the same customer.
type ProfileService interface {
	RecordOrder(ctx context.Context, order *types.Order) error
	Get(ctx context.Context, userID string) (*types.CustomerProfile, error)
	List(ctx context.Context) ([]*types.CustomerProfile, error)
	MarkRetentionTrigger(ctx context.Context, userID string, at time.Time) error
	SetOptOut(ctx context.Context, userID string, optOut bool) error
}

type profileService struct {
	log   *logger.Logger
	store store.Store
}

func NewProfileService(baseLog *logger.Logger, st store.Store) ProfileService {
	return &profileService{
		log:   baseLog.With("service", "ProfileService"),
		store: st,
	}
}

func profileKey(userID string) string {
	return profileKeyPrefix + userID
}

func (s *profileService) Get(ctx context.Context, userID string) (*types.CustomerProfile, error) {
	raw, err := s.store.Get(ctx, profileKey(userID))
	if err != nil {
		return nil, err
	}
	var p types.CustomerProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	if p.ItemCounts == nil {
		p.ItemCounts = make(map[string]int64)
	}
	return &p, nil
}

func (s *profileService) save(ctx context.Context, p *types.CustomerProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, profileKey(p.UserID), string(raw), 0)
}

// RecordOrder applies create-if-absent semantics: first-seen is set only
// once, counters are incremented, "last" fields are overwritten.
func (s *profileService) RecordOrder(ctx context.Context, order *types.Order) error {
	if order == nil || order.UserID == "" {
		return errs.ErrInvalidArgument
	}

	p, err := s.Get(ctx, order.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		p = &types.CustomerProfile{
			UserID:      order.UserID,
			FirstSeenAt: order.CreatedAt,
			ItemCounts:  make(map[string]int64),
		}
	} else if err != nil {
		return err
	}

	if p.FirstSeenAt.IsZero() {
		p.FirstSeenAt = order.CreatedAt
	}
	p.LastOrderAt = order.CreatedAt
	p.LastOrderTotal = order.Total
	p.TotalOrders++
	p.TotalSpent += order.Total
	for _, line := range order.Lines {
		p.ItemCounts[line.Item] += int64(line.Quantity)
	}

	return s.save(ctx, p)
}

func (s *profileService) List(ctx context.Context) ([]*types.CustomerProfile, error) {
	keys, err := s.store.Keys(ctx, profileKeyPrefix)
	if err != nil {
		return nil, err
	}
	profiles := make([]*types.CustomerProfile, 0, len(keys))
	for _, key := range keys {
		raw, err := s.store.Get(ctx, key)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var p types.CustomerProfile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			s.log.Warn("Skipping undecodable profile", "key", key, "error", err)
			continue
		}
		profiles = append(profiles, &p)
	}
	return profiles, nil
}

func (s *profileService) MarkRetentionTrigger(ctx context.Context, userID string, at time.Time) error {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	p.LastRetentionTriggerAt = at
	return s.save(ctx, p)
}

func (s *profileService) SetOptOut(ctx context.Context, userID string, optOut bool) error {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	p.OptOut = optOut
	return s.save(ctx, p)
}
