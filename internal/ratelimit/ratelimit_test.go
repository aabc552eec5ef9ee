package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/store"
)

func TestTryAcquireWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	clock := func() time.Time { return now }

	l := New(logger.Nop(), store.NewMemoryWithClock(clock)).WithClock(clock)
	ctx := context.Background()

	ok, _, err := l.TryAcquire(ctx, "u1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	now = base.Add(30 * time.Second)
	ok, retryAfter, err := l.TryAcquire(ctx, "u1", time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatalf("acquire inside window must be rejected")
	}
	if retryAfter != 30*time.Second {
		t.Fatalf("retryAfter = %v, want 30s", retryAfter)
	}

	now = base.Add(61 * time.Second)
	ok, _, err = l.TryAcquire(ctx, "u1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after window: ok=%v err=%v", ok, err)
	}
}

func TestRejectionLeavesMarkerUntouched(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	clock := func() time.Time { return now }

	l := New(logger.Nop(), store.NewMemoryWithClock(clock)).WithClock(clock)
	ctx := context.Background()

	if ok, _, _ := l.TryAcquire(ctx, "u1", time.Minute); !ok {
		t.Fatal("first acquire must succeed")
	}

	// repeated rejections must not extend the window
	for i := 1; i <= 3; i++ {
		now = base.Add(time.Duration(i*10) * time.Second)
		if ok, _, _ := l.TryAcquire(ctx, "u1", time.Minute); ok {
			t.Fatalf("acquire at +%ds must be rejected", i*10)
		}
	}

	now = base.Add(60 * time.Second)
	if ok, _, _ := l.TryAcquire(ctx, "u1", time.Minute); !ok {
		t.Fatal("acquire at window edge must succeed despite earlier rejections")
	}
}

func TestUsersAreIndependent(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	l := New(logger.Nop(), store.NewMemoryWithClock(clock)).WithClock(clock)
	ctx := context.Background()

	if ok, _, _ := l.TryAcquire(ctx, "u1", time.Minute); !ok {
		t.Fatal("u1 first acquire must succeed")
	}
	if ok, _, _ := l.TryAcquire(ctx, "u2", time.Minute); !ok {
		t.Fatal("u2 must not be limited by u1's marker")
	}
}

func TestUnparseableMarkerIsOverwritten(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	st := store.NewMemoryWithClock(clock)
	ctx := context.Background()
	if err := st.Set(ctx, "rate_limit:u1", "garbage", time.Minute); err != nil {
		t.Fatalf("seed marker: %v", err)
	}

	l := New(logger.Nop(), st).WithClock(clock)
	ok, _, err := l.TryAcquire(ctx, "u1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire over corrupt marker: ok=%v err=%v", ok, err)
	}
}
