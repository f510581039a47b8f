package server

import (
	"net/http"
)

// HealthHandler reports liveness plus coarse gauges useful when
// eyeballing a deployment.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"activeSessions":    s.deps.Sessions.Count(),
		"activeConnections": s.connections.count(),
	})
}

// PublicKeyHandler serves the Tesla virtual-key public key at the
// well-known path Tesla's vehicle pairing flow fetches it from.
func (s *Server) PublicKeyHandler(w http.ResponseWriter, r *http.Request) {
	pem, err := s.config.GetTeslaPublicKey()
	if err != nil || pem == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/x-pem-file")
	_, _ = w.Write([]byte(pem))
}

// IndexHandler gives humans who open the base URL a pointer at the
// transports instead of a bare 404.
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":      s.config.GetAppName(),
		"transport": s.config.GetBaseURL() + RouteMCP,
		"sse":       s.config.GetBaseURL() + RouteSSE,
	})
}
