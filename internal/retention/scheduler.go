package retention

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/services"
)

// winBackConcurrency bounds concurrent transport calls during a tick so a
// large lapsed cohort does not burst the chat API.
const winBackConcurrency = 4

type Config struct {
	// Interval between scan ticks.
	Interval time.Duration
	// ReturnCycle is how long a customer must be quiet before a win-back
	// message is considered.
	ReturnCycle time.Duration
	// Cooldown is the minimum gap between two triggers for the same
	// customer, independent of ReturnCycle.
	Cooldown time.Duration
	// Messages are only sent between WindowStartHour and WindowEndHour in
	// Location, regardless of tick alignment.
	WindowStartHour int
	WindowEndHour   int
	Location        *time.Location
}

func DefaultConfig(loc *time.Location) Config {
	if loc == nil {
		loc = time.UTC
	}
	return Config{
		Interval:        6 * time.Hour,
		ReturnCycle:     7 * 24 * time.Hour,
		Cooldown:        30 * 24 * time.Hour,
		WindowStartHour: 10,
		WindowEndHour:   20,
		Location:        loc,
	}
}

// Scheduler periodically scans customer profiles and sends win-back
// messages to lapsed customers. It only touches profile records, never
// sessions, so it can run concurrently with conversation handling.
type Scheduler struct {
	log      *logger.Logger
	profiles services.ProfileService
	notify   services.Notifier
	cfg      Config
	now      func() time.Time
}

func New(baseLog *logger.Logger, profiles services.ProfileService, notify services.Notifier, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		log:      baseLog.With("service", "RetentionScheduler"),
		profiles: profiles,
		notify:   notify,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the scheduler's clock. Used by tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start runs the tick loop until ctx is cancelled. Ticks never overlap:
// the loop body runs one tick to completion before selecting again, and a
// tick abandoned by shutdown is corrected by the next tick's idempotent
// skip conditions.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sent, err := s.RunTick(ctx)
				if err != nil {
					s.log.Warn("Retention tick failed", "error", err)
					continue
				}
				if sent > 0 {
					s.log.Info("Retention tick complete", "sent", sent)
				}
			}
		}
	}()
}

func (s *Scheduler) inSendWindow(now time.Time) bool {
	h := now.In(s.cfg.Location).Hour()
	return h >= s.cfg.WindowStartHour && h < s.cfg.WindowEndHour
}

// RunTick performs one scan. It returns how many win-back messages were
// dispatched.
func (s *Scheduler) RunTick(ctx context.Context) (int, error) {
	now := s.now()
	if !s.inSendWindow(now) {
		return 0, nil
	}

	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return 0, err
	}

	var g errgroup.Group
	g.SetLimit(winBackConcurrency)
	var sent atomic.Int64
	for _, p := range profiles {
		if ctx.Err() != nil {
			break
		}
		if p.OptOut {
			continue
		}
		if p.LastOrderAt.IsZero() || now.Sub(p.LastOrderAt) < s.cfg.ReturnCycle {
			continue
		}
		if !p.LastRetentionTriggerAt.IsZero() && now.Sub(p.LastRetentionTriggerAt) < s.cfg.Cooldown {
			continue
		}

		g.Go(func() error {
			favorite := p.FavoriteItem()
			if err := s.notify.WinBack(ctx, p.UserID, favorite); err != nil {
				// unreachable customer: drop from future scheduling instead of
				// retrying every tick forever
				s.log.Warn("Win-back dispatch failed, opting customer out", "user_id", p.UserID, "error", err)
				if optErr := s.profiles.SetOptOut(ctx, p.UserID, true); optErr != nil {
					s.log.Warn("Opt-out write failed", "user_id", p.UserID, "error", optErr)
				}
				return nil
			}

			if err := s.profiles.MarkRetentionTrigger(ctx, p.UserID, now); err != nil {
				s.log.Warn("Retention trigger write failed", "user_id", p.UserID, "error", err)
			}
			sent.Add(1)
			return nil
		})
	}
	g.Wait()
	return int(sent.Load()), ctx.Err()
}
