package server

import (
	"context"
	"net/http"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/Sara3/tesla-mcp/mcptools"
	"github.com/Sara3/tesla-mcp/sessions"
)

type transportKind string

const (
	transportSSE        transportKind = "sse"
	transportStreamable transportKind = "streamable-http"
)

type kindContextKey struct{}

func withTransportKind(ctx context.Context, kind transportKind) context.Context {
	return context.WithValue(ctx, kindContextKey{}, kind)
}

func transportKindFromContext(ctx context.Context) transportKind {
	if kind, ok := ctx.Value(kindContextKey{}).(transportKind); ok {
		return kind
	}
	return transportSSE
}

type connectionInfo struct {
	UserSessionID string
	Kind          transportKind
}

// connectionRegistry maps transport-level session identifiers (the
// ids the transport protocol hands to remote clients) to the user
// session owning the connection. The double indirection is required
// because the transport generates its own identifier which follow-up
// requests reference instead of the user session id.
type connectionRegistry struct {
	conns map[string]connectionInfo
	lock  sync.RWMutex
}

func newConnectionRegistry() *connectionRegistry {
	return &connectionRegistry{conns: make(map[string]connectionInfo)}
}

func (r *connectionRegistry) register(transportID, userSessionID string, kind transportKind) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.conns[transportID] = connectionInfo{UserSessionID: userSessionID, Kind: kind}
}

func (r *connectionRegistry) deregister(transportID string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.conns, transportID)
}

func (r *connectionRegistry) userSession(transportID string) (string, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	info, ok := r.conns[transportID]
	return info.UserSessionID, ok
}

func (r *connectionRegistry) count() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.conns)
}

// initTransports builds the MCP protocol handler and the two
// transport servers multiplexing connections onto it. Lifecycle hooks
// keep the connection registry in step with the transport layer, so
// teardown always deregisters its own entry even when the peer
// disappears abruptly.
func (s *Server) initTransports() {
	hooks := &mcpserver.Hooks{}
	hooks.AddOnRegisterSession(func(ctx context.Context, session mcpserver.ClientSession) {
		userSessionID, ok := mcptools.SessionIDFromContext(ctx)
		if !ok {
			return
		}
		kind := transportKindFromContext(ctx)
		s.connections.register(session.SessionID(), userSessionID, kind)
		log.Info().Str("transport", string(kind)).Str("transport_id", session.SessionID()).Msg("connection opened")
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session mcpserver.ClientSession) {
		s.connections.deregister(session.SessionID())
		log.Info().Str("transport_id", session.SessionID()).Msg("connection closed")
	})

	s.mcp = s.deps.Factory.Build(mcpserver.WithHooks(hooks))

	s.sse = mcpserver.NewSSEServer(s.mcp,
		mcpserver.WithBaseURL(s.config.GetBaseURL()),
		mcpserver.WithSSEEndpoint(RouteSSE),
		mcpserver.WithMessageEndpoint(RouteMessages),
		mcpserver.WithKeepAlive(true),
		mcpserver.WithSSEContextFunc(s.sseContext),
	)

	s.streamable = mcpserver.NewStreamableHTTPServer(s.mcp,
		mcpserver.WithEndpointPath(RouteMCP),
	)
}

// sseContext resolves the user session owning a legacy-transport
// request and binds it to the request context.
//
// On the downstream connect the session is resolved by priority:
// connection token, explicit session id, otherwise a fresh session.
// Upstream message posts carry only the transport-generated sessionId,
// which the registry maps back to the user session.
func (s *Server) sseContext(ctx context.Context, r *http.Request) context.Context {
	ctx = withTransportKind(ctx, transportSSE)

	if r.Method == http.MethodPost {
		transportID := r.URL.Query().Get("sessionId")
		if userSessionID, ok := s.connections.userSession(transportID); ok {
			return mcptools.WithSessionID(ctx, userSessionID)
		}
		// Unknown transport id; the transport layer rejects the
		// message itself, nothing to bind here.
		return ctx
	}

	query := r.URL.Query()
	if token := query.Get("token"); token != "" {
		if session, ok := s.deps.Sessions.ResolveConnectionToken(token); ok {
			return mcptools.WithSessionID(ctx, session.ID)
		}
		log.Warn().Msg("stale connection token, starting fresh session")
	}
	if sessionID := query.Get("session"); sessionID != "" {
		if _, err := s.deps.Sessions.Get(sessionID); err == nil {
			return mcptools.WithSessionID(ctx, sessionID)
		}
	}

	session, err := s.newUserSession()
	if err != nil {
		log.Error().Err(err).Msg("creating session for sse connect")
		return ctx
	}
	return mcptools.WithSessionID(ctx, session.ID)
}

// newUserSession creates a session for first unauthenticated contact,
// seeded with server-wide Tesla credentials when configured.
func (s *Server) newUserSession() (*sessions.UserSession, error) {
	session, err := s.deps.Sessions.Create()
	if err != nil {
		return nil, err
	}
	clientID, clientSecret := s.config.GetTeslaClientID(), s.config.GetTeslaClientSecret()
	if clientID != "" && clientSecret != "" {
		if err := s.deps.Sessions.Update(session.ID, func(us *sessions.UserSession) {
			us.Credentials = &sessions.Credentials{ClientID: clientID, ClientSecret: clientSecret}
		}); err != nil {
			return nil, err
		}
	}
	return session, nil
}
