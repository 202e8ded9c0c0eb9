package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gearshare/location-api/internal/core/domain"
	"github.com/gearshare/location-api/internal/core/ports"
)

func newTestLimiter(cfg Config) (*Limiter, *time.Time) {
	l := New(cfg)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCheckAndConsume_LimitThenReject(t *testing.T) {
	l, _ := newTestLimiter(Config{SearchPerWindow: 30})

	for i := 1; i <= 30; i++ {
		if err := l.CheckAndConsume("user:alice", ports.OpSearch); err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
	}
	err := l.CheckAndConsume("user:alice", ports.OpSearch)
	if !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("request 31: want ErrRateLimitExceeded, got %v", err)
	}
}

func TestCheckAndConsume_WindowReset(t *testing.T) {
	l, now := newTestLimiter(Config{SearchPerWindow: 2, Window: time.Minute})

	_ = l.CheckAndConsume("user:bob", ports.OpSearch)
	_ = l.CheckAndConsume("user:bob", ports.OpSearch)
	if err := l.CheckAndConsume("user:bob", ports.OpSearch); !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("want rejection inside window, got %v", err)
	}

	*now = now.Add(61 * time.Second)
	if err := l.CheckAndConsume("user:bob", ports.OpSearch); err != nil {
		t.Fatalf("want fresh window after expiry, got %v", err)
	}
}

func TestCheckAndConsume_PerOpBudgets(t *testing.T) {
	l, _ := newTestLimiter(Config{SearchPerWindow: 30, ReversePerWindow: 1})

	if err := l.CheckAndConsume("user:carol", ports.OpReverse); err != nil {
		t.Fatalf("first reverse: %v", err)
	}
	if err := l.CheckAndConsume("user:carol", ports.OpReverse); !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("second reverse: want rejection, got %v", err)
	}
	// Search budget is independent of reverse budget.
	if err := l.CheckAndConsume("user:carol", ports.OpSearch); err != nil {
		t.Fatalf("search after reverse rejection: %v", err)
	}
}

func TestCheckAndConsume_IdentitiesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(Config{SearchPerWindow: 1})

	_ = l.CheckAndConsume("user:a", ports.OpSearch)
	if err := l.CheckAndConsume("user:a", ports.OpSearch); !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("want rejection for user:a, got %v", err)
	}
	if err := l.CheckAndConsume("user:b", ports.OpSearch); err != nil {
		t.Fatalf("user:b should be unaffected, got %v", err)
	}
}

func TestDetectSuspiciousPattern_GridProbing(t *testing.T) {
	l, _ := newTestLimiter(Config{PenaltyRequests: 3})

	// Walk a fine grid of small-radius queries around a target point.
	base := domain.GeoPoint{Lat: 40.0, Lon: -83.0}
	flagged := false
	for i := 0; i < 10 && !flagged; i++ {
		p := ports.Probe{
			Center:   domain.GeoPoint{Lat: base.Lat + float64(i)*0.003, Lon: base.Lon},
			RadiusKm: 1,
		}
		flagged = l.DetectSuspiciousPattern("user:mallory", p)
	}
	if !flagged {
		t.Fatal("grid probing was not flagged")
	}

	// Penalty: the next N requests are rejected with the distinct error even
	// though the raw rate budget is untouched.
	for i := 0; i < 3; i++ {
		if err := l.CheckAndConsume("user:mallory", ports.OpNearby); !errors.Is(err, domain.ErrSuspiciousPattern) {
			t.Fatalf("penalized request %d: want ErrSuspiciousPattern, got %v", i+1, err)
		}
	}
	if err := l.CheckAndConsume("user:mallory", ports.OpNearby); err != nil {
		t.Fatalf("after penalty drained: %v", err)
	}
}

func TestDetectSuspiciousPattern_NormalUseNotFlagged(t *testing.T) {
	l, _ := newTestLimiter(Config{})

	// Repeatedly querying the same spot with a sane radius is normal
	// browsing, not probing.
	p := ports.Probe{Center: domain.GeoPoint{Lat: 40.0, Lon: -83.0}, RadiusKm: 10}
	for i := 0; i < 20; i++ {
		if l.DetectSuspiciousPattern("user:dave", p) {
			t.Fatal("normal use was flagged")
		}
	}
}

func TestDetectSuspiciousPattern_WideRadiusIgnored(t *testing.T) {
	l, _ := newTestLimiter(Config{})

	base := domain.GeoPoint{Lat: 40.0, Lon: -83.0}
	for i := 0; i < 12; i++ {
		p := ports.Probe{
			Center:   domain.GeoPoint{Lat: base.Lat + float64(i)*0.003, Lon: base.Lon},
			RadiusKm: 50, // city-wide browsing, not triangulation
		}
		if l.DetectSuspiciousPattern("user:erin", p) {
			t.Fatal("wide-radius browsing was flagged")
		}
	}
}

func TestSweep_EvictsIdleIdentities(t *testing.T) {
	l, now := newTestLimiter(Config{IdleTTL: time.Hour})

	_ = l.CheckAndConsume("user:idle", ports.OpSearch)
	_ = l.CheckAndConsume("user:active", ports.OpSearch)

	*now = now.Add(2 * time.Hour)
	_ = l.CheckAndConsume("user:active", ports.OpSearch)
	l.sweep()

	l.mu.Lock()
	_, idleKept := l.identities["user:idle"]
	_, activeKept := l.identities["user:active"]
	l.mu.Unlock()

	if idleKept {
		t.Error("idle identity was not evicted")
	}
	if !activeKept {
		t.Error("active identity was evicted")
	}
}

func TestCheckAndConsume_ConcurrentSameIdentity(t *testing.T) {
	l, _ := newTestLimiter(Config{SearchPerWindow: 50})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed, rejected := 0, 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.CheckAndConsume("user:racer", ports.OpSearch)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				allowed++
			} else {
				rejected++
			}
		}()
	}
	wg.Wait()

	// No lost updates: exactly the budget is allowed.
	if allowed != 50 || rejected != 50 {
		t.Fatalf("want 50 allowed / 50 rejected, got %d / %d", allowed, rejected)
	}
}
