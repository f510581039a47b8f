package sessions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/Sara3/tesla-mcp/internal/errors"
	"github.com/Sara3/tesla-mcp/oauthmodel"
	"github.com/Sara3/tesla-mcp/sessions"
)

func TestCreate_UniqueIDs(t *testing.T) {
	repo := sessions.NewInMemoryRepo()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		session, err := repo.Create()
		require.NoError(t, err)
		require.Len(t, session.ID, 64, "session IDs should be 256 bits hex encoded")
		require.False(t, seen[session.ID], "duplicate session ID generated")
		seen[session.ID] = true
	}
	require.Equal(t, 100, repo.Count())
}

func TestGet_UnknownSession(t *testing.T) {
	repo := sessions.NewInMemoryRepo()

	_, err := repo.Get("nope")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestGet_ReturnsSnapshot(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	created, err := repo.Create()
	require.NoError(t, err)

	got, err := repo.Get(created.ID)
	require.NoError(t, err)

	// Mutating the snapshot must not leak into the store.
	got.Credentials = &sessions.Credentials{ClientID: "x", ClientSecret: "y"}
	again, err := repo.Get(created.ID)
	require.NoError(t, err)
	require.Nil(t, again.Credentials)
}

func TestUpdate_TouchesLastActivity(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := sessions.NewInMemoryRepo(sessions.WithNowTime(func() time.Time { return now }))

	session, err := repo.Create()
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	err = repo.Update(session.ID, func(s *sessions.UserSession) {
		s.Credentials = &sessions.Credentials{ClientID: "id", ClientSecret: "secret"}
	})
	require.NoError(t, err)

	got, err := repo.Get(session.ID)
	require.NoError(t, err)
	require.Equal(t, now, got.LastActivity)
	require.True(t, got.HasCredentials())
}

func TestHasValidTokens_Table(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		tokens *sessions.TeslaTokens
		want   bool
	}{
		{"no tokens", nil, false},
		{"empty access token", &sessions.TeslaTokens{RefreshToken: "r"}, false},
		{"expired", &sessions.TeslaTokens{AccessToken: "a", Expiry: now.Add(-time.Minute)}, false},
		{"valid", &sessions.TeslaTokens{AccessToken: "a", Expiry: now.Add(time.Hour)}, true},
		{"no known expiry", &sessions.TeslaTokens{AccessToken: "a"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := sessions.NewInMemoryRepo(sessions.WithNowTime(func() time.Time { return now }))
			session, err := repo.Create()
			require.NoError(t, err)
			require.NoError(t, repo.Update(session.ID, func(s *sessions.UserSession) {
				s.Tokens = tc.tokens
			}))
			require.Equal(t, tc.want, repo.HasValidTokens(session.ID))
		})
	}
}

func TestConsumeState_SingleUse(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	session, err := repo.Create()
	require.NoError(t, err)

	state, err := repo.GenerateOAuthState(session.ID)
	require.NoError(t, err)
	require.NotEmpty(t, state)

	require.False(t, repo.ConsumeState(session.ID, "wrong-state"))
	require.True(t, repo.ConsumeState(session.ID, state), "correct state should consume")
	require.False(t, repo.ConsumeState(session.ID, state), "state must be single use")
}

func TestConsumeState_EmptyNeverMatches(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	session, err := repo.Create()
	require.NoError(t, err)

	// No state was ever generated; an empty candidate must not match
	// the empty stored value.
	require.False(t, repo.ConsumeState(session.ID, ""))
}

func TestGeneratePKCE_ChallengeMatchesVerifier(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	session, err := repo.Create()
	require.NoError(t, err)

	pair, err := repo.GeneratePKCE(session.ID)
	require.NoError(t, err)
	require.Equal(t, oauthmodel.CodeChallengeS256(pair.Verifier), pair.Challenge)

	got, err := repo.Get(session.ID)
	require.NoError(t, err)
	require.Equal(t, pair.Verifier, got.CodeVerifier)
}

func TestConnectionToken_ResolvesSession(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	session, err := repo.Create()
	require.NoError(t, err)

	token, err := repo.CreateConnectionToken(session.ID)
	require.NoError(t, err)
	require.Len(t, token, 12)

	got, ok := repo.ResolveConnectionToken(token)
	require.True(t, ok)
	require.Equal(t, session.ID, got.ID)

	_, ok = repo.ResolveConnectionToken("unknown-token")
	require.False(t, ok)
}

func TestDelete_CascadesConnectionTokens(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	session, err := repo.Create()
	require.NoError(t, err)

	token, err := repo.CreateConnectionToken(session.ID)
	require.NoError(t, err)

	require.True(t, repo.Delete(session.ID))
	_, ok := repo.ResolveConnectionToken(token)
	require.False(t, ok, "connection token should die with its session")
}

func TestDeleteIdleBefore_SweepsOnlyIdleSessions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := sessions.NewInMemoryRepo(sessions.WithNowTime(func() time.Time { return now }))

	idle, err := repo.Create()
	require.NoError(t, err)

	now = now.Add(23 * time.Hour)
	active, err := repo.Create()
	require.NoError(t, err)

	now = now.Add(2 * time.Hour) // idle is now 25h old, active 2h
	removed := repo.DeleteIdleBefore(now.Add(-24 * time.Hour))
	require.Equal(t, 1, removed)

	_, err = repo.Get(idle.ID)
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	_, err = repo.Get(active.ID)
	require.NoError(t, err)
}
