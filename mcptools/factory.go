// Package mcptools builds the MCP protocol handler for the gateway:
// the server instance exposing the Tesla vehicle tool set. Transports
// multiplex many client connections onto the one handler; the owning
// user session travels in the request context.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	apperrors "github.com/Sara3/tesla-mcp/internal/errors"
	"github.com/Sara3/tesla-mcp/sessions"
	"github.com/Sara3/tesla-mcp/sms"
	"github.com/Sara3/tesla-mcp/tesla"
)

const serverName = "tesla-mcp"
const serverVersion = "1.0.0"

// Factory assembles MCP server instances bound to the gateway's
// Tesla service and session store.
type Factory struct {
	service  *tesla.Service
	cache    *tesla.VehicleCache
	sessions sessions.Repo
	sms      *sms.Client // nil disables the SMS tools
	baseURL  string
}

func NewFactory(service *tesla.Service, cache *tesla.VehicleCache, sessionRepo sessions.Repo, smsClient *sms.Client, baseURL string) *Factory {
	return &Factory{
		service:  service,
		cache:    cache,
		sessions: sessionRepo,
		sms:      smsClient,
		baseURL:  baseURL,
	}
}

// Build constructs the MCP server and registers the tool set. Extra
// options let the transport layer attach its lifecycle hooks.
func (f *Factory) Build(options ...server.ServerOption) *server.MCPServer {
	opts := append([]server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Tools for monitoring and controlling Tesla vehicles. " +
			"Start with list_vehicles; if you are not authenticated the tools will tell you how to log in."),
	}, options...)

	s := server.NewMCPServer(serverName, serverVersion, opts...)
	f.registerTools(s)
	return s
}

// sessionFor resolves the user session for a tool call. A missing
// binding means the transport routed us a request for a connection it
// no longer tracks.
func (f *Factory) sessionFor(ctx context.Context) (string, *mcp.CallToolResult) {
	sessionID, ok := SessionIDFromContext(ctx)
	if !ok {
		return "", mcp.NewToolResultError("No session is bound to this connection. Please reconnect.")
	}
	if _, err := f.sessions.Get(sessionID); err != nil {
		return "", mcp.NewToolResultError("Your session has expired. Please reconnect.")
	}
	return sessionID, nil
}

// guidance converts flow-state errors into next-step instructions so
// the assistant can relay them, and everything else into a sanitized
// tool error. Raw upstream messages never reach the client.
func (f *Factory) guidance(sessionID string, err error) *mcp.CallToolResult {
	switch {
	case apperrors.Is(err, apperrors.ErrAuthConfiguration):
		return mcp.NewToolResultText(fmt.Sprintf(
			"Tesla developer credentials are not configured yet. Open %s/setup?session=%s to enter your Tesla client ID and secret, then try again.",
			f.baseURL, sessionID))
	case apperrors.Is(err, apperrors.ErrAuthRequired):
		return mcp.NewToolResultText(fmt.Sprintf(
			"You are not logged in with Tesla. Open %s/auth/login?session=%s to sign in, then try again.",
			f.baseURL, sessionID))
	case apperrors.Is(err, apperrors.ErrSessionNotFound):
		return mcp.NewToolResultError("Your session has expired. Please reconnect.")
	default:
		return mcp.NewToolResultError(fmt.Sprintf("Tesla request failed: %v", err))
	}
}

// vehicle resolves a vehicle reference (id, VIN or display name) to a
// cached vehicle record.
func (f *Factory) vehicle(ctx context.Context, sessionID, key string) (*tesla.Vehicle, *mcp.CallToolResult) {
	vehicle, ok := f.cache.Find(ctx, sessionID, key)
	if !ok {
		return nil, mcp.NewToolResultError(fmt.Sprintf(
			"No vehicle matches %q. Use list_vehicles to see the vehicles on this account.", key))
	}
	return vehicle, nil
}

func asJSON(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format response: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}
