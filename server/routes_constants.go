package server

// Route path constants
// All gateway routes are defined here; the transport and OAuth paths
// must stay stable for compatibility with existing MCP clients.
const (
	// Transport routes
	RouteSSE      = "/sse"
	RouteMessages = "/messages"
	RouteMCP      = "/mcp"

	// OAuth relay routes
	RouteOAuthRegister  = "/oauth/register"
	RouteOAuthAuthorize = "/oauth/authorize"
	RouteOAuthToken     = "/oauth/token"

	// Discovery routes
	RouteWellKnownAuthServer        = "/.well-known/oauth-authorization-server"
	RouteWellKnownProtectedResource = "/.well-known/oauth-protected-resource"
	RouteTeslaPublicKey             = "/.well-known/appspecific/com.tesla.3p.public-key.pem"

	// Human-facing Tesla credential and login routes
	RouteSetup        = "/setup"
	RouteAuthLogin    = "/auth/login"
	RouteAuthCallback = "/auth/callback"

	// Operational routes
	RouteHealth = "/health"
)
