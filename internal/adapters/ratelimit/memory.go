// Package ratelimit provides the in-memory, per-instance implementation of
// ports.RateLimiter: a fixed window per identity plus a heuristic detector
// for triangulation probing. State is process-lifetime; swap the port for a
// shared-cache implementation when running multiple instances.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gearshare/location-api/internal/core/domain"
	"github.com/gearshare/location-api/internal/core/ports"
	"github.com/gearshare/location-api/internal/pkg/geospatial"
)

// Config tunes the limiter. Zero values fall back to defaults.
type Config struct {
	SearchPerWindow  int
	ReversePerWindow int
	NearbyPerWindow  int
	Window           time.Duration
	PenaltyRequests  int           // requests rejected after a suspicious flag
	IdleTTL          time.Duration // idle windows evicted after this
	SweepInterval    time.Duration
}

func (c Config) withDefaults() Config {
	if c.SearchPerWindow == 0 {
		c.SearchPerWindow = 30
	}
	if c.ReversePerWindow == 0 {
		c.ReversePerWindow = 20
	}
	if c.NearbyPerWindow == 0 {
		c.NearbyPerWindow = 60
	}
	if c.Window == 0 {
		c.Window = time.Minute
	}
	if c.PenaltyRequests == 0 {
		c.PenaltyRequests = 20
	}
	if c.IdleTTL == 0 {
		c.IdleTTL = time.Hour
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 5 * time.Minute
	}
	return c
}

// Probe-pattern heuristic constants. Flagged when an identity issues many
// distinct small-radius queries clustered in a local area within a short
// span — the shape of someone walking a grid around a target.
const (
	probeHistory       = 32
	probeWindow        = 10 * time.Minute
	probeMaxRadiusKm   = 2.0
	probeClusterMeters = 5000.0
	probeMinDistinct   = 8
	distinctCenterGap  = 50.0 // meters; closer centers count as one
)

type probeRecord struct {
	center   domain.GeoPoint
	radiusKm float64
	at       time.Time
}

type opWindow struct {
	count       int
	windowStart time.Time
}

type identityState struct {
	mu       sync.Mutex
	ops      map[ports.RateOp]*opWindow
	probes   []probeRecord // bounded ring, newest last
	penalty  int
	lastSeen time.Time
}

// Limiter implements ports.RateLimiter with per-identity locking and a
// background eviction sweep.
type Limiter struct {
	mu         sync.Mutex
	identities map[string]*identityState
	cfg        Config
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Limiter. Call StartSweep to enable idle-window eviction and
// Stop on shutdown.
func New(cfg Config) *Limiter {
	return &Limiter{
		identities: make(map[string]*identityState),
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		stop:       make(chan struct{}),
	}
}

func (l *Limiter) limitFor(op ports.RateOp) int {
	switch op {
	case ports.OpReverse:
		return l.cfg.ReversePerWindow
	case ports.OpNearby:
		return l.cfg.NearbyPerWindow
	default:
		return l.cfg.SearchPerWindow
	}
}

// state returns the identity's state, creating it on first use. The l.mu
// critical section only touches the map; counters are updated under the
// per-identity lock so concurrent requests for one identity serialize
// without blocking unrelated identities.
func (l *Limiter) state(identity string) *identityState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.identities[identity]
	if !ok {
		st = &identityState{ops: make(map[ports.RateOp]*opWindow)}
		l.identities[identity] = st
	}
	return st
}

// CheckAndConsume implements ports.RateLimiter.
func (l *Limiter) CheckAndConsume(identity string, op ports.RateOp) error {
	st := l.state(identity)
	now := l.now()

	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastSeen = now

	if st.penalty > 0 {
		st.penalty--
		return domain.ErrSuspiciousPattern
	}

	w, ok := st.ops[op]
	if !ok {
		w = &opWindow{windowStart: now}
		st.ops[op] = w
	}
	if now.Sub(w.windowStart) >= l.cfg.Window {
		w.windowStart = now
		w.count = 0
	}

	w.count++
	if w.count > l.limitFor(op) {
		return domain.ErrRateLimitExceeded
	}
	return nil
}

// DetectSuspiciousPattern implements ports.RateLimiter. Reverse-geocode calls
// are recorded as zero-radius probes.
func (l *Limiter) DetectSuspiciousPattern(identity string, p ports.Probe) bool {
	st := l.state(identity)
	now := l.now()

	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastSeen = now

	st.probes = append(st.probes, probeRecord{center: p.Center, radiusKm: p.RadiusKm, at: now})
	if len(st.probes) > probeHistory {
		st.probes = st.probes[len(st.probes)-probeHistory:]
	}

	if !l.looksLikeProbing(st.probes, p.Center, now) {
		return false
	}

	st.penalty = l.cfg.PenaltyRequests
	st.probes = st.probes[:0]
	slog.Warn("suspicious query pattern flagged",
		"identity", identity,
		"center_lat", p.Center.Lat,
		"center_lon", p.Center.Lon,
		"radius_km", p.RadiusKm,
	)
	return true
}

// looksLikeProbing counts recent small-radius probes clustered around the
// latest center. Distinct centers closer than distinctCenterGap collapse into
// one, so hammering a single point does not trip the heuristic (the plain
// rate limit covers that).
func (l *Limiter) looksLikeProbing(probes []probeRecord, center domain.GeoPoint, now time.Time) bool {
	var distinct []domain.GeoPoint
	for _, pr := range probes {
		if now.Sub(pr.at) > probeWindow || pr.radiusKm > probeMaxRadiusKm {
			continue
		}
		if geospatial.Haversine(center.Lat, center.Lon, pr.center.Lat, pr.center.Lon) > probeClusterMeters {
			continue
		}
		isNew := true
		for _, d := range distinct {
			if geospatial.Haversine(d.Lat, d.Lon, pr.center.Lat, pr.center.Lon) < distinctCenterGap {
				isNew = false
				break
			}
		}
		if isNew {
			distinct = append(distinct, pr.center)
		}
	}
	return len(distinct) >= probeMinDistinct
}

// StartSweep launches the idle-window eviction loop.
func (l *Limiter) StartSweep() {
	go func() {
		ticker := time.NewTicker(l.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-l.stop:
				return
			}
		}
	}()
}

// Stop halts the eviction loop.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// sweep evicts identities idle longer than IdleTTL. lastSeen is re-checked
// under the per-identity lock; a request that raced the sweep and lost its
// state simply starts a fresh window, which is harmless for an identity that
// has been idle for the full TTL.
func (l *Limiter) sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, st := range l.identities {
		st.mu.Lock()
		idle := now.Sub(st.lastSeen) > l.cfg.IdleTTL
		st.mu.Unlock()
		if idle {
			delete(l.identities, id)
		}
	}
}
