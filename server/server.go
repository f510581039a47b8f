package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/Sara3/tesla-mcp/auth"
	"github.com/Sara3/tesla-mcp/clients"
	"github.com/Sara3/tesla-mcp/internal/config"
	"github.com/Sara3/tesla-mcp/mcptools"
	"github.com/Sara3/tesla-mcp/sessions"
	"github.com/Sara3/tesla-mcp/tesla"
	"github.com/Sara3/tesla-mcp/token"
)

// Deps are the process-wide stores and services the server multiplexes
// requests onto. They are constructed once at startup and injected, so
// tests can build an isolated set.
type Deps struct {
	Sessions sessions.Repo
	Clients  clients.Repo
	Tokens   *token.Manager
	Tesla    *tesla.Service
	Cache    *tesla.VehicleCache
	Factory  *mcptools.Factory
}

type Server struct {
	env    string // Environment (e.g., "DEV", "production")
	mux    *http.ServeMux
	routes []string
	config config.Config
	deps   Deps
	auth   *auth.AuthorizationService

	mcp         *mcpserver.MCPServer
	sse         *mcpserver.SSEServer
	streamable  *mcpserver.StreamableHTTPServer
	connections *connectionRegistry
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	authService, err := auth.NewAuthorizationService(
		auth.Repos{Sessions: deps.Sessions, Clients: deps.Clients},
		deps.Tokens,
		auth.WithServerCredentials(cfg.GetTeslaClientID(), cfg.GetTeslaClientSecret()),
	)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create authorization service: %w", err)
	}

	s := &Server{
		env:         cfg.GetEnv(),
		mux:         http.NewServeMux(),
		config:      cfg,
		deps:        deps,
		auth:        authService,
		connections: newConnectionRegistry(),
	}

	s.initTransports()
	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Shutdown drains the transport servers. The outer HTTP server closes
// the listening socket; this closes the per-connection MCP state.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sse != nil {
		if err := s.sse.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("sse shutdown")
		}
	}
	if s.streamable != nil {
		if err := s.streamable.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("streamable shutdown")
		}
	}
	return nil
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			log.Debug().Str("path", parts[0]).Msg("route")
		}
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
