package clients_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sara3/tesla-mcp/clients"
	apperrors "github.com/Sara3/tesla-mcp/internal/errors"
)

func TestNew_RequiresRedirectURIs(t *testing.T) {
	_, err := clients.New("no-uris", nil)
	require.ErrorIs(t, err, apperrors.ErrInvalidRedirectURI)
}

func TestNew_MintsDistinctCredentials(t *testing.T) {
	a, err := clients.New("client-a", []string{"http://localhost:1234/cb"})
	require.NoError(t, err)
	b, err := clients.New("client-b", []string{"http://localhost:1234/cb"})
	require.NoError(t, err)

	require.NotEqual(t, a.ID, b.ID)
	require.NotEqual(t, a.Secret, b.Secret)
	require.NotEmpty(t, a.Secret)
}

func TestAllowsRedirectURI_ExactMatchOnly(t *testing.T) {
	client, err := clients.New("strict", []string{"http://localhost:1234/cb"})
	require.NoError(t, err)

	require.True(t, client.AllowsRedirectURI("http://localhost:1234/cb"))
	require.False(t, client.AllowsRedirectURI("http://localhost:1234/cb/extra"))
	require.False(t, client.AllowsRedirectURI("http://localhost:1234"))
	require.False(t, client.AllowsRedirectURI(""))
}

func TestInMemoryRepo_GetUnknown(t *testing.T) {
	repo := clients.NewInMemoryRepo()

	_, err := repo.Get("missing")
	require.ErrorIs(t, err, apperrors.ErrInvalidClient)
}

func TestInMemoryRepo_UpsertAndGet(t *testing.T) {
	repo := clients.NewInMemoryRepo()
	client, err := clients.New("stored", []string{"http://localhost:1234/cb"})
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(client))
	require.Equal(t, 1, repo.Count())

	got, err := repo.Get(client.ID)
	require.NoError(t, err)
	require.Equal(t, client.Secret, got.Secret)
}
