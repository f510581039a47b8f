package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Sara3/tesla-mcp/oauthmodel"
	"github.com/Sara3/tesla-mcp/sessions"
)

// sessionCookieName binds the browser to its user session across the
// redirect to Tesla and back. Scoped to /auth so it travels only on
// the login sub-flow routes.
const sessionCookieName = "tesla_mcp_session"

// SetupHandler collects per-user Tesla developer credentials when the
// gateway is not configured with server-wide ones.
func (s *Server) SetupHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if _, err := s.deps.Sessions.Get(sessionID); err != nil {
		s.renderFailure(w, "Unknown session. Reconnect your MCP client and try again.")
		return
	}
	s.renderHTML(w, http.StatusOK, setupTemplate, map[string]string{
		"Session": sessionID,
	})
}

// SetupSubmitHandler stores the submitted credentials on the session
// and moves straight into the Tesla login flow.
func (s *Server) SetupSubmitHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	sessionID := r.PostFormValue("session")
	clientID := strings.TrimSpace(r.PostFormValue("client_id"))
	clientSecret := strings.TrimSpace(r.PostFormValue("client_secret"))

	if clientID == "" || clientSecret == "" {
		s.renderHTML(w, http.StatusBadRequest, setupTemplate, map[string]string{
			"Session": sessionID,
			"Error":   "Both the client ID and client secret are required.",
		})
		return
	}

	err := s.deps.Sessions.Update(sessionID, func(session *sessions.UserSession) {
		session.Credentials = &sessions.Credentials{ClientID: clientID, ClientSecret: clientSecret}
	})
	if err != nil {
		s.renderFailure(w, "Unknown session. Reconnect your MCP client and try again.")
		return
	}

	http.Redirect(w, r, RouteAuthLogin+"?session="+sessionID, http.StatusFound)
}

// LoginHandler starts the Tesla OAuth sub-flow for a session: it mints
// the state and PKCE pair, pins the session to the browser with a
// cookie, and redirects to Tesla's authorization page.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	session, err := s.deps.Sessions.Get(sessionID)
	if err != nil {
		s.renderFailure(w, "Unknown session. Reconnect your MCP client and try again.")
		return
	}
	if !session.HasCredentials() {
		http.Redirect(w, r, RouteSetup+"?session="+sessionID, http.StatusFound)
		return
	}

	state, err := s.deps.Sessions.GenerateOAuthState(sessionID)
	if err != nil {
		s.renderFailure(w, "Could not start the Tesla login flow. Please try again.")
		return
	}
	pkce, err := s.deps.Sessions.GeneratePKCE(sessionID)
	if err != nil {
		s.renderFailure(w, "Could not start the Tesla login flow. Please try again.")
		return
	}

	s.setSessionCookie(w, r, sessionID)
	http.Redirect(w, r, s.deps.Tesla.AuthorizationURL(session.Credentials, state, pkce.Challenge), http.StatusFound)
}

// CallbackHandler completes the Tesla sub-flow. On success the tokens
// land on the session and control returns either to the waiting
// external OAuth client or to a success page with the SSE connect URL.
func (s *Server) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionFromCookie(r)
	if !ok {
		s.renderFailure(w, "Login session not found. Start the login flow again from your MCP client.")
		return
	}
	s.clearSessionCookie(w)

	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		log.Warn().Str("error", errCode).Msg("tesla authorization denied")
		if redirect, pending := s.auth.ExternalErrorRedirect(sessionID, oauthmodel.ErrorCodeAccessDenied, "tesla authorization failed"); pending {
			http.Redirect(w, r, redirect, http.StatusFound)
			return
		}
		s.renderFailure(w, "Tesla did not authorize this application.")
		return
	}

	if !s.deps.Sessions.ConsumeState(sessionID, query.Get("state")) {
		s.renderFailure(w, "Login state mismatch. Start the login flow again.")
		return
	}

	session, err := s.deps.Sessions.Get(sessionID)
	if err != nil {
		s.renderFailure(w, "Unknown session. Reconnect your MCP client and try again.")
		return
	}

	tok, err := s.deps.Tesla.ExchangeCode(r.Context(), session.Credentials, query.Get("code"), session.CodeVerifier)
	if err != nil {
		log.Warn().Err(err).Msg("tesla code exchange failed")
		s.renderFailure(w, "Tesla rejected the login. Check your developer credentials and try again.")
		return
	}

	if err := s.deps.Sessions.Update(sessionID, func(us *sessions.UserSession) {
		us.Tokens = &sessions.TeslaTokens{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			Expiry:       tok.Expiry,
		}
		us.CodeVerifier = ""
	}); err != nil {
		s.renderFailure(w, "Unknown session. Reconnect your MCP client and try again.")
		return
	}
	s.deps.Cache.Invalidate(sessionID)
	log.Info().Msg("tesla login completed")

	if redirect, err := s.auth.FinishAuthorization(sessionID); err == nil {
		http.Redirect(w, r, redirect, http.StatusFound)
		return
	}

	// No external client is waiting; hand the user a connect URL for
	// SSE clients instead.
	connectToken, err := s.deps.Sessions.CreateConnectionToken(sessionID)
	if err != nil {
		s.renderFailure(w, "Could not create a connection token. Please try again.")
		return
	}
	s.renderHTML(w, http.StatusOK, successTemplate, map[string]string{
		"ConnectURL": s.config.GetBaseURL() + RouteSSE + "?token=" + connectToken,
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})
}

func (s *Server) sessionFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/auth",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
