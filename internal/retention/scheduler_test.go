package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/services"
	"github.com/cafebotify/cafebot-backend/internal/store"
	"github.com/cafebotify/cafebot-backend/internal/types"
)

type winBackRecorder struct {
	mu        sync.Mutex
	sent      map[string]string
	failUsers map[string]bool
}

func newWinBackRecorder() *winBackRecorder {
	return &winBackRecorder{
		sent:      make(map[string]string),
		failUsers: make(map[string]bool),
	}
}

func (r *winBackRecorder) OrderPlaced(context.Context, *types.Order) {}

func (r *winBackRecorder) WinBack(_ context.Context, userID, favoriteItem string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUsers[userID] {
		return errors.New("blocked by recipient")
	}
	r.sent[userID] = favoriteItem
	return nil
}

func (r *winBackRecorder) sentTo(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fav, ok := r.sent[userID]
	return fav, ok
}

func (r *winBackRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type schedFixture struct {
	sched    *Scheduler
	profiles services.ProfileService
	recorder *winBackRecorder
	now      *time.Time
}

// newSchedFixture pins the clock to 12:00 UTC, inside the default send window.
func newSchedFixture(t *testing.T) *schedFixture {
	t.Helper()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	log := logger.Nop()
	profiles := services.NewProfileService(log, store.NewMemoryWithClock(clock))
	recorder := newWinBackRecorder()
	sched := New(log, profiles, recorder, DefaultConfig(time.UTC)).WithClock(clock)

	return &schedFixture{
		sched:    sched,
		profiles: profiles,
		recorder: recorder,
		now:      &now,
	}
}

func (f *schedFixture) recordOrder(t *testing.T, userID string, at time.Time, item string, qty int) {
	t.Helper()
	err := f.profiles.RecordOrder(context.Background(), &types.Order{
		ID:        "o-" + userID,
		UserID:    userID,
		Lines:     []types.OrderLine{{Item: item, Quantity: qty, Subtotal: int64(qty) * 100}},
		Total:     int64(qty) * 100,
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("RecordOrder: %v", err)
	}
}

func TestTickSendsWinBackToLapsedCustomer(t *testing.T) {
	f := newSchedFixture(t)
	ctx := context.Background()

	f.recordOrder(t, "lapsed", f.now.Add(-8*24*time.Hour), "Latte", 3)
	f.recordOrder(t, "recent", f.now.Add(-2*24*time.Hour), "Tea", 1)

	sent, err := f.sched.RunTick(ctx)
	if err != nil {
		t.Fatalf("RunTick: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if fav, ok := f.recorder.sentTo("lapsed"); !ok || fav != "Latte" {
		t.Fatalf("lapsed customer: sent=%v favorite=%q", ok, fav)
	}
	if _, ok := f.recorder.sentTo("recent"); ok {
		t.Fatal("recent customer must not be contacted")
	}

	p, err := f.profiles.Get(ctx, "lapsed")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !p.LastRetentionTriggerAt.Equal(*f.now) {
		t.Fatalf("trigger timestamp = %v, want %v", p.LastRetentionTriggerAt, *f.now)
	}
}

func TestCooldownSuppressesRepeatTriggers(t *testing.T) {
	f := newSchedFixture(t)
	ctx := context.Background()

	f.recordOrder(t, "lapsed", f.now.Add(-8*24*time.Hour), "Latte", 1)

	if sent, _ := f.sched.RunTick(ctx); sent != 1 {
		t.Fatalf("first tick sent = %d, want 1", sent)
	}

	// a week later the customer is still quiet, but inside the cooldown
	*f.now = f.now.Add(7 * 24 * time.Hour)
	if sent, _ := f.sched.RunTick(ctx); sent != 0 {
		t.Fatal("second tick must be suppressed by cooldown")
	}

	// past the cooldown the customer becomes eligible again
	*f.now = f.now.Add(31 * 24 * time.Hour)
	if sent, _ := f.sched.RunTick(ctx); sent != 1 {
		t.Fatal("expected another trigger after cooldown expiry")
	}
}

func TestOptOutIsNeverContacted(t *testing.T) {
	f := newSchedFixture(t)
	ctx := context.Background()

	f.recordOrder(t, "gone", f.now.Add(-10*24*time.Hour), "Tea", 1)
	if err := f.profiles.SetOptOut(ctx, "gone", true); err != nil {
		t.Fatalf("SetOptOut: %v", err)
	}

	if sent, _ := f.sched.RunTick(ctx); sent != 0 {
		t.Fatal("opted-out customer must be skipped")
	}
	if f.recorder.count() != 0 {
		t.Fatal("no win-back messages expected")
	}
}

func TestDispatchFailureOptsCustomerOut(t *testing.T) {
	f := newSchedFixture(t)
	ctx := context.Background()

	f.recordOrder(t, "blocked", f.now.Add(-8*24*time.Hour), "Latte", 1)
	f.recorder.failUsers["blocked"] = true

	sent, err := f.sched.RunTick(ctx)
	if err != nil || sent != 0 {
		t.Fatalf("RunTick: sent=%d err=%v", sent, err)
	}

	p, err := f.profiles.Get(ctx, "blocked")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !p.OptOut {
		t.Fatal("unreachable customer must be opted out")
	}
	if !p.LastRetentionTriggerAt.IsZero() {
		t.Fatal("failed dispatch must not record a trigger")
	}

	// later ticks skip the customer entirely
	f.recorder.failUsers["blocked"] = false
	if sent, _ := f.sched.RunTick(ctx); sent != 0 {
		t.Fatal("opted-out customer contacted again")
	}
}

func TestOutsideSendWindowDoesNothing(t *testing.T) {
	f := newSchedFixture(t)
	ctx := context.Background()

	f.recordOrder(t, "lapsed", f.now.Add(-8*24*time.Hour), "Latte", 1)

	*f.now = time.Date(2025, 6, 15, 23, 0, 0, 0, time.UTC)
	if sent, _ := f.sched.RunTick(ctx); sent != 0 {
		t.Fatal("no messages outside the send window")
	}

	*f.now = time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	if sent, _ := f.sched.RunTick(ctx); sent != 1 {
		t.Fatal("expected message once the window opens")
	}
}

func TestCustomerWithoutOrdersIsSkipped(t *testing.T) {
	f := newSchedFixture(t)
	ctx := context.Background()

	// a profile can exist with a zero LastOrderAt if it was written by an
	// older record; it must never be treated as lapsed
	f.recordOrder(t, "weird", time.Time{}, "Tea", 1)

	if sent, _ := f.sched.RunTick(ctx); sent != 0 {
		t.Fatal("zero LastOrderAt must be skipped")
	}
}
