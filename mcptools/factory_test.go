package mcptools

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Sara3/tesla-mcp/internal/errors"
	"github.com/Sara3/tesla-mcp/sessions"
	"github.com/Sara3/tesla-mcp/tesla"
)

const testBaseURL = "http://localhost:3000"

func newTestFactory(t *testing.T) (*Factory, string) {
	t.Helper()

	repo := sessions.NewInMemoryRepo()
	service := tesla.NewService(repo, "na", testBaseURL)
	cache := tesla.NewVehicleCache(service, repo, 0)
	factory := NewFactory(service, cache, repo, nil, testBaseURL)

	session, err := repo.Create()
	require.NoError(t, err)
	return factory, session.ID
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestSessionID_ContextRoundTrip(t *testing.T) {
	ctx := WithSessionID(context.Background(), "session-1")

	got, ok := SessionIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "session-1", got)

	_, ok = SessionIDFromContext(context.Background())
	require.False(t, ok)

	_, ok = SessionIDFromContext(WithSessionID(context.Background(), ""))
	require.False(t, ok, "empty session id should not resolve")
}

func TestSessionFor_UnboundConnection(t *testing.T) {
	factory, _ := newTestFactory(t)

	_, result := factory.sessionFor(context.Background())
	require.NotNil(t, result)
	require.True(t, result.IsError)
}

func TestSessionFor_ExpiredSession(t *testing.T) {
	factory, _ := newTestFactory(t)

	ctx := WithSessionID(context.Background(), "swept-away")
	_, result := factory.sessionFor(ctx)
	require.NotNil(t, result)
	require.Contains(t, resultText(t, result), "expired")
}

func TestSessionFor_BoundSession(t *testing.T) {
	factory, sessionID := newTestFactory(t)

	ctx := WithSessionID(context.Background(), sessionID)
	got, result := factory.sessionFor(ctx)
	require.Nil(t, result)
	require.Equal(t, sessionID, got)
}

func TestGuidance_PointsAtSetupWhenUnconfigured(t *testing.T) {
	factory, sessionID := newTestFactory(t)

	result := factory.guidance(sessionID, apperrors.ErrAuthConfiguration)
	require.False(t, result.IsError, "guidance is an instruction, not a failure")
	require.Contains(t, resultText(t, result), testBaseURL+"/setup?session="+sessionID)
}

func TestGuidance_PointsAtLoginWhenUnauthenticated(t *testing.T) {
	factory, sessionID := newTestFactory(t)

	result := factory.guidance(sessionID, apperrors.ErrAuthRequired)
	require.False(t, result.IsError)
	require.Contains(t, resultText(t, result), testBaseURL+"/auth/login?session="+sessionID)
}

func TestGuidance_SanitizedErrorForUpstreamFailure(t *testing.T) {
	factory, sessionID := newTestFactory(t)

	result := factory.guidance(sessionID, apperrors.Wrapf(apperrors.ErrUpstreamExchange, "upstream status 503"))
	require.True(t, result.IsError)
	require.Contains(t, resultText(t, result), "Tesla request failed")
}

func TestBuild_RegistersVehicleTools(t *testing.T) {
	factory, _ := newTestFactory(t)

	s := factory.Build()
	require.NotNil(t, s)
}
