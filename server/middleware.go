package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Sara3/tesla-mcp/mcptools"
)

func ChainMiddleware(routeFunction http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

func (s *Server) HTMLMiddleware(mw ...func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	chainedMiddleWare := []func(http.Handler) http.Handler{
		s.LoggingMiddleware,
		s.RecoverMiddleware,
	}
	return append(chainedMiddleWare, mw...)
}

func (s *Server) APIMiddleware(mw ...func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	chainedMiddleWare := []func(http.Handler) http.Handler{
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.CorsMiddleware,
	}
	return append(chainedMiddleWare, mw...)
}

func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.env == "DEV" {
			log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CorsMiddleware allows browser-based MCP clients to reach the OAuth
// and discovery endpoints from any origin. The endpoints carry no
// ambient credentials, so a wildcard is safe here.
func (s *Server) CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, mcp-session-id, mcp-protocol-version")
		w.Header().Set("Access-Control-Expose-Headers", "mcp-session-id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireBearer guards the streamable transport: every request must
// present a valid relay bearer token. Failures answer 401 with a
// WWW-Authenticate header pointing at the protected-resource metadata
// so compliant clients re-run discovery and re-authorize.
func (s *Server) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			s.unauthorized(w, "missing bearer token")
			return
		}

		userSessionID, err := s.deps.Tokens.ValidateBearer(parts[1])
		if err != nil {
			s.unauthorized(w, "invalid or expired bearer token")
			return
		}

		ctx := mcptools.WithSessionID(r.Context(), userSessionID)
		ctx = withTransportKind(ctx, transportStreamable)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) unauthorized(w http.ResponseWriter, description string) {
	metadataURL := s.config.GetBaseURL() + RouteWellKnownProtectedResource
	w.Header().Set("WWW-Authenticate",
		fmt.Sprintf(`Bearer resource_metadata=%q, error="invalid_token", error_description=%q`, metadataURL, description))
	writeJSONError(w, "invalid_token", description, http.StatusUnauthorized)
}
