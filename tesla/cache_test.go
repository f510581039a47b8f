package tesla_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sara3/tesla-mcp/sessions"
	"github.com/Sara3/tesla-mcp/tesla"
)

// cacheFixture wires a cache against a fake fleet upstream whose call
// count and payload the test controls.
type cacheFixture struct {
	repo      *sessions.InMemoryRepo
	cache     *tesla.VehicleCache
	sessionID string
	calls     *int64
	fail      *atomic.Bool
}

func setupCacheFixture(t *testing.T, ttl time.Duration, now func() time.Time) *cacheFixture {
	t.Helper()

	var calls int64
	var fail atomic.Bool
	fleet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeEnvelope(t, w, []map[string]any{
			{"id": 1, "id_s": "1", "vin": "5YJ3E1EA", "display_name": "Daily Driver", "state": "online"},
		})
	}))
	t.Cleanup(fleet.Close)

	repo := sessions.NewInMemoryRepo()
	service := tesla.NewService(repo, "na", "http://localhost:3000", tesla.WithBaseURL(fleet.URL))
	cache := tesla.NewVehicleCache(service, repo, ttl, tesla.WithCacheNowTime(now))

	return &cacheFixture{
		repo:      repo,
		cache:     cache,
		sessionID: newAuthenticatedSession(t, repo, time.Now().Add(time.Hour)),
		calls:     &calls,
		fail:      &fail,
	}
}

func TestCacheGet_ServesFreshEntryWithoutUpstreamCall(t *testing.T) {
	now := time.Now()
	f := setupCacheFixture(t, time.Minute, func() time.Time { return now })

	first := f.cache.Get(context.Background(), f.sessionID, false)
	require.Len(t, first, 1)
	require.Equal(t, int64(1), atomic.LoadInt64(f.calls))

	second := f.cache.Get(context.Background(), f.sessionID, false)
	require.Len(t, second, 1)
	require.Equal(t, int64(1), atomic.LoadInt64(f.calls), "fresh entry should not hit upstream")
}

func TestCacheGet_ExpiredEntryIsRefetched(t *testing.T) {
	now := time.Now()
	f := setupCacheFixture(t, time.Minute, func() time.Time { return now })

	f.cache.Get(context.Background(), f.sessionID, false)
	now = now.Add(2 * time.Minute)
	f.cache.Get(context.Background(), f.sessionID, false)
	require.Equal(t, int64(2), atomic.LoadInt64(f.calls))
}

func TestCacheGet_ForceRefreshBypassesFreshEntry(t *testing.T) {
	now := time.Now()
	f := setupCacheFixture(t, time.Minute, func() time.Time { return now })

	f.cache.Get(context.Background(), f.sessionID, false)
	f.cache.Get(context.Background(), f.sessionID, true)
	require.Equal(t, int64(2), atomic.LoadInt64(f.calls))
}

func TestCacheGet_UnauthenticatedSessionSkipsUpstream(t *testing.T) {
	now := time.Now()
	f := setupCacheFixture(t, time.Minute, func() time.Time { return now })

	anon, err := f.repo.Create()
	require.NoError(t, err)

	vehicles := f.cache.Get(context.Background(), anon.ID, false)
	require.Nil(t, vehicles)
	require.Equal(t, int64(0), atomic.LoadInt64(f.calls))
}

func TestCacheGet_DegradesToStaleOnFailure(t *testing.T) {
	now := time.Now()
	f := setupCacheFixture(t, time.Minute, func() time.Time { return now })

	first := f.cache.Get(context.Background(), f.sessionID, false)
	require.Len(t, first, 1)

	f.fail.Store(true)
	now = now.Add(2 * time.Minute)
	stale := f.cache.Get(context.Background(), f.sessionID, false)
	require.Len(t, stale, 1, "stale data beats no data")
}

func TestCacheGet_NoStaleDataOnFirstFailure(t *testing.T) {
	now := time.Now()
	f := setupCacheFixture(t, time.Minute, func() time.Time { return now })

	f.fail.Store(true)
	vehicles := f.cache.Get(context.Background(), f.sessionID, false)
	require.Nil(t, vehicles)
}

func TestCacheInvalidate_DropsEntry(t *testing.T) {
	now := time.Now()
	f := setupCacheFixture(t, time.Minute, func() time.Time { return now })

	f.cache.Get(context.Background(), f.sessionID, false)
	f.cache.Invalidate(f.sessionID)
	f.cache.Get(context.Background(), f.sessionID, false)
	require.Equal(t, int64(2), atomic.LoadInt64(f.calls))
}

func TestCacheFind_MatchesIDVinAndName(t *testing.T) {
	now := time.Now()
	f := setupCacheFixture(t, time.Minute, func() time.Time { return now })

	for _, key := range []string{"1", "5YJ3E1EA", "Daily Driver"} {
		vehicle, ok := f.cache.Find(context.Background(), f.sessionID, key)
		require.True(t, ok, "key %q should resolve", key)
		require.Equal(t, "5YJ3E1EA", vehicle.VIN)
	}

	_, ok := f.cache.Find(context.Background(), f.sessionID, "Someone Else's Car")
	require.False(t, ok)
}
