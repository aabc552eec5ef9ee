package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	errs "github.com/cafebotify/cafebot-backend/internal/pkg/errors"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/store"
)

// DefaultWindow is how long a user must wait between finalized orders.
const DefaultWindow = 60 * time.Second

// Limiter guards order finalization with a per-user timestamp marker in the
// shared store. Existence + freshness is the whole state; it is not a
// counter. The read-then-write is not atomic across instances: two
// concurrent finalizes may both pass, which is an accepted bounded risk.
type Limiter struct {
	log   *logger.Logger
	store store.Store
	now   func() time.Time
}

func New(baseLog *logger.Logger, st store.Store) *Limiter {
	return &Limiter{
		log:   baseLog.With("service", "RateLimiter"),
		store: st,
		now:   time.Now,
	}
}

// WithClock overrides the limiter's clock. Used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func markerKey(userID string) string {
	return "rate_limit:" + userID
}

// TryAcquire reports whether userID may finalize an order now. When the
// marker is present and younger than window it rejects without side effects
// and returns the remaining wait; otherwise it writes a fresh marker with the
// window as TTL and accepts.
func (l *Limiter) TryAcquire(ctx context.Context, userID string, window time.Duration) (bool, time.Duration, error) {
	if userID == "" {
		return false, 0, fmt.Errorf("ratelimit: user id required")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	now := l.now()

	raw, err := l.store.Get(ctx, markerKey(userID))
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return false, 0, err
	}
	if err == nil {
		markerUnix, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr == nil {
			elapsed := now.Sub(time.Unix(markerUnix, 0))
			if elapsed < window {
				return false, window - elapsed, nil
			}
		}
		// unparseable or stale marker: fall through and overwrite
	}

	if err := l.store.Set(ctx, markerKey(userID), strconv.FormatInt(now.Unix(), 10), window); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}
