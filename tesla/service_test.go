package tesla_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/Sara3/tesla-mcp/internal/errors"
	"github.com/Sara3/tesla-mcp/sessions"
	"github.com/Sara3/tesla-mcp/tesla"
)

// newAuthenticatedSession seeds a session with credentials and Tesla
// tokens valid until the given expiry.
func newAuthenticatedSession(t *testing.T, repo sessions.Repo, expiry time.Time) string {
	t.Helper()

	session, err := repo.Create()
	require.NoError(t, err)
	require.NoError(t, repo.Update(session.ID, func(s *sessions.UserSession) {
		s.Credentials = &sessions.Credentials{ClientID: "dev-client", ClientSecret: "dev-secret"}
		s.Tokens = &sessions.TeslaTokens{
			AccessToken:  "tesla-access-token",
			RefreshToken: "tesla-refresh-token",
			Expiry:       expiry,
		}
	}))
	return session.ID
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"response": payload}))
}

func TestVehicles_DecodesEnvelope(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	fleet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/1/vehicles", r.URL.Path)
		require.Equal(t, "Bearer tesla-access-token", r.Header.Get("Authorization"))
		writeEnvelope(t, w, []map[string]any{
			{"id": 1, "id_s": "1", "vin": "5YJ3E1EA", "display_name": "Daily Driver", "state": "online"},
		})
	}))
	defer fleet.Close()

	service := tesla.NewService(repo, "na", "http://localhost:3000", tesla.WithBaseURL(fleet.URL))
	sessionID := newAuthenticatedSession(t, repo, time.Now().Add(time.Hour))

	vehicles, err := service.Vehicles(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	require.Equal(t, "Daily Driver", vehicles[0].DisplayName)
	require.True(t, vehicles[0].Matches("5YJ3E1EA"))
}

func TestVehicles_UpstreamErrorIsSanitized(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	fleet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"token tesla-access-token lacks scope"}`))
	}))
	defer fleet.Close()

	service := tesla.NewService(repo, "na", "http://localhost:3000", tesla.WithBaseURL(fleet.URL))
	sessionID := newAuthenticatedSession(t, repo, time.Now().Add(time.Hour))

	_, err := service.Vehicles(context.Background(), sessionID)
	require.ErrorIs(t, err, apperrors.ErrUpstreamExchange)
	require.NotContains(t, err.Error(), "tesla-access-token", "raw upstream body must not surface")
	require.Contains(t, err.Error(), "403")
}

func TestAccessToken_ErrorLadder(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	service := tesla.NewService(repo, "na", "http://localhost:3000")

	t.Run("unknown session", func(t *testing.T) {
		_, err := service.Vehicles(context.Background(), "missing")
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})

	t.Run("no credentials", func(t *testing.T) {
		session, err := repo.Create()
		require.NoError(t, err)
		_, err = service.Vehicles(context.Background(), session.ID)
		require.ErrorIs(t, err, apperrors.ErrAuthConfiguration)
	})

	t.Run("credentials but no tokens", func(t *testing.T) {
		session, err := repo.Create()
		require.NoError(t, err)
		require.NoError(t, repo.Update(session.ID, func(s *sessions.UserSession) {
			s.Credentials = &sessions.Credentials{ClientID: "id", ClientSecret: "secret"}
		}))
		_, err = service.Vehicles(context.Background(), session.ID)
		require.ErrorIs(t, err, apperrors.ErrAuthRequired)
	})
}

func TestRefresh_ExpiredTokenIsRefreshedOnce(t *testing.T) {
	repo := sessions.NewInMemoryRepo()

	var refreshCalls int64
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCalls, 1)
		time.Sleep(50 * time.Millisecond) // widen the coalescing window
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-access","refresh_token":"fresh-refresh","token_type":"Bearer","expires_in":3600}`))
	}))
	defer authSrv.Close()

	fleet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer fresh-access", r.Header.Get("Authorization"))
		writeEnvelope(t, w, []map[string]any{})
	}))
	defer fleet.Close()

	service := tesla.NewService(repo, "na", "http://localhost:3000",
		tesla.WithBaseURL(fleet.URL),
		tesla.WithAuthEndpoints(authSrv.URL+"/authorize", authSrv.URL+"/token"),
	)
	sessionID := newAuthenticatedSession(t, repo, time.Now().Add(-time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Vehicles(context.Background(), sessionID)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), atomic.LoadInt64(&refreshCalls), "concurrent refreshes should coalesce")

	got, err := repo.Get(sessionID)
	require.NoError(t, err)
	require.Equal(t, "fresh-access", got.Tokens.AccessToken)
	require.Equal(t, "fresh-refresh", got.Tokens.RefreshToken)
}

func TestRefresh_KeepsOldRefreshTokenWhenNotRotated(t *testing.T) {
	repo := sessions.NewInMemoryRepo()

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-access","token_type":"Bearer","expires_in":3600}`))
	}))
	defer authSrv.Close()

	fleet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, []map[string]any{})
	}))
	defer fleet.Close()

	service := tesla.NewService(repo, "na", "http://localhost:3000",
		tesla.WithBaseURL(fleet.URL),
		tesla.WithAuthEndpoints(authSrv.URL+"/authorize", authSrv.URL+"/token"),
	)
	sessionID := newAuthenticatedSession(t, repo, time.Now().Add(-time.Minute))

	_, err := service.Vehicles(context.Background(), sessionID)
	require.NoError(t, err)

	got, err := repo.Get(sessionID)
	require.NoError(t, err)
	require.Equal(t, "tesla-refresh-token", got.Tokens.RefreshToken)
}

func TestExchangeCode_SanitizesUpstreamError(t *testing.T) {
	repo := sessions.NewInMemoryRepo()

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired","leaked_secret":"super-secret"}`))
	}))
	defer authSrv.Close()

	service := tesla.NewService(repo, "na", "http://localhost:3000",
		tesla.WithAuthEndpoints(authSrv.URL+"/authorize", authSrv.URL+"/token"),
	)

	creds := &sessions.Credentials{ClientID: "id", ClientSecret: "secret"}
	_, err := service.ExchangeCode(context.Background(), creds, "bad-code", "verifier")
	require.ErrorIs(t, err, apperrors.ErrUpstreamExchange)
	require.Contains(t, err.Error(), "invalid_grant")
	require.NotContains(t, err.Error(), "super-secret")
}

func TestCommand_PostsToCommandPath(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	fleet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/1/vehicles/42/command/door_lock", r.URL.Path)
		writeEnvelope(t, w, map[string]any{"result": true})
	}))
	defer fleet.Close()

	service := tesla.NewService(repo, "na", "http://localhost:3000", tesla.WithBaseURL(fleet.URL))
	sessionID := newAuthenticatedSession(t, repo, time.Now().Add(time.Hour))

	result, err := service.Command(context.Background(), sessionID, "42", "door_lock", nil)
	require.NoError(t, err)
	require.True(t, result.Result)
}
