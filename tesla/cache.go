package tesla

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sara3/tesla-mcp/sessions"
)

type cacheEntry struct {
	vehicles  []Vehicle
	fetchedAt time.Time
}

// VehicleCache is a per-session, time-bounded cache of the vehicle
// list, decoupling repeated tool calls from upstream rate limits.
// On fetch failure it degrades to stale data rather than erroring;
// callers treat an empty list as "unknown/none".
type VehicleCache struct {
	service  *Service
	sessions sessions.Repo
	entries  map[string]*cacheEntry
	lock     sync.Mutex
	ttl      time.Duration
	nowTime  func() time.Time
}

// VehicleCacheOption modifies a VehicleCache instance.
type VehicleCacheOption func(*VehicleCache)

// WithCacheNowTime sets the now time function (primarily for testing)
func WithCacheNowTime(nowFunc func() time.Time) VehicleCacheOption {
	return func(c *VehicleCache) {
		c.nowTime = nowFunc
	}
}

func NewVehicleCache(service *Service, sessionRepo sessions.Repo, ttl time.Duration, options ...VehicleCacheOption) *VehicleCache {
	c := &VehicleCache{
		service:  service,
		sessions: sessionRepo,
		entries:  make(map[string]*cacheEntry),
		ttl:      ttl,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Get returns the vehicle list for a session. A fresh cache entry is
// served as-is unless forceRefresh is set; otherwise the upstream list
// is fetched and cached. Unauthenticated sessions get an empty list
// without an upstream attempt.
func (c *VehicleCache) Get(ctx context.Context, sessionID string, forceRefresh bool) []Vehicle {
	c.lock.Lock()
	entry, ok := c.entries[sessionID]
	if ok && !forceRefresh && c.nowTime().Sub(entry.fetchedAt) < c.ttl {
		vehicles := entry.vehicles
		c.lock.Unlock()
		return vehicles
	}
	c.lock.Unlock()

	session, err := c.sessions.Get(sessionID)
	if err != nil || !session.IsAuthenticated() {
		return nil
	}

	vehicles, err := c.service.Vehicles(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Msg("vehicle list refresh failed")
		if entry != nil {
			return entry.vehicles
		}
		return nil
	}

	c.lock.Lock()
	c.entries[sessionID] = &cacheEntry{vehicles: vehicles, fetchedAt: c.nowTime()}
	c.lock.Unlock()
	return vehicles
}

// Invalidate drops the cache entry for a session.
func (c *VehicleCache) Invalidate(sessionID string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.entries, sessionID)
}

// Find resolves a vehicle by id, VIN or display name from the cached
// list, refreshing if needed.
func (c *VehicleCache) Find(ctx context.Context, sessionID, key string) (*Vehicle, bool) {
	for _, v := range c.Get(ctx, sessionID, false) {
		if v.Matches(key) {
			return &v, true
		}
	}
	return nil, false
}
