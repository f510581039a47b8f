package server

import "net/http"

func (s *Server) initRoutes() {
	// MCP transports. The SSE pair resolves its user session inside
	// sseContext; the streamable endpoint authenticates with relay
	// bearer tokens.
	s.RegisterRouteHandler("GET "+RouteSSE,
		ChainMiddleware(s.sse.SSEHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteMessages,
		ChainMiddleware(s.sse.MessageHandler(), s.APIMiddleware()...))
	// Registered per method (the set StreamableHTTPServer serves) because
	// a method-less "/mcp" pattern conflicts with the "GET /" catch-all
	// under net/http's ServeMux precedence rules.
	mcpHandler := ChainMiddleware(s.streamable, s.APIMiddleware(s.RequireBearer)...)
	s.RegisterRouteHandler("GET "+RouteMCP, mcpHandler)
	s.RegisterRouteHandler("POST "+RouteMCP, mcpHandler)
	s.RegisterRouteHandler("DELETE "+RouteMCP, mcpHandler)

	// OAuth relay endpoints
	s.RegisterRouteHandler("POST "+RouteOAuthRegister,
		ChainMiddleware(http.HandlerFunc(s.RegistrationHandler), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteOAuthAuthorize,
		ChainMiddleware(http.HandlerFunc(s.AuthorizeHandler), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuthToken,
		ChainMiddleware(http.HandlerFunc(s.TokenHandler), s.APIMiddleware()...))

	// Discovery documents
	s.RegisterRouteHandler("GET "+RouteWellKnownAuthServer,
		ChainMiddleware(http.HandlerFunc(s.AuthServerMetadataHandler), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownProtectedResource,
		ChainMiddleware(http.HandlerFunc(s.ProtectedResourceMetadataHandler), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteTeslaPublicKey, s.PublicKeyHandler)

	// Human-facing Tesla credential and login flow
	s.RegisterRouteHandler("GET "+RouteSetup,
		ChainMiddleware(http.HandlerFunc(s.SetupHandler), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSetup,
		ChainMiddleware(http.HandlerFunc(s.SetupSubmitHandler), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogin,
		ChainMiddleware(http.HandlerFunc(s.LoginHandler), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthCallback,
		ChainMiddleware(http.HandlerFunc(s.CallbackHandler), s.HTMLMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler)
	s.RegisterRouteFunc("GET /", s.IndexHandler)
}
