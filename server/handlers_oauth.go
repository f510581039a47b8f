package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Sara3/tesla-mcp/auth"
	"github.com/Sara3/tesla-mcp/oauthmodel"
)

// RegistrationHandler implements open dynamic client registration
// (RFC 7591). Any caller may register; the returned client_id and
// client_secret identify it for the authorization flow.
func (s *Server) RegistrationHandler(w http.ResponseWriter, r *http.Request) {
	var req oauthmodel.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "malformed registration request", http.StatusBadRequest)
		return
	}

	client, err := s.auth.RegisterClient(&req)
	if err != nil {
		writeJSONError(w, auth.ErrorCode(err), err.Error(), http.StatusBadRequest)
		return
	}

	resp := oauthmodel.RegistrationResponse{
		ClientID:                client.ID,
		ClientSecret:            client.Secret,
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
		RedirectURIs:            client.RedirectURIs,
		ClientName:              client.Name,
		GrantTypes:              []string{string(oauthmodel.GrantTypeAuthorizationCode), string(oauthmodel.GrantTypeRefreshToken)},
		ResponseTypes:           []string{string(oauthmodel.ResponseTypeCode)},
		TokenEndpointAuthMethod: "none",
	}
	writeJSON(w, http.StatusCreated, resp)
}

// AuthorizeHandler starts the relay's authorization-code flow. A valid
// request creates a user session and redirects the browser into the
// Tesla login sub-flow; the external client's parameters wait on the
// session until the callback completes.
func (s *Server) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := &oauthmodel.AuthorizationParameters{
		ClientID:            query.Get("client_id"),
		ResponseType:        oauthmodel.ResponseType(query.Get("response_type")),
		RedirectURI:         query.Get("redirect_uri"),
		Scope:               query.Get("scope"),
		State:               query.Get("state"),
		CodeChallenge:       query.Get("code_challenge"),
		CodeChallengeMethod: oauthmodel.CodeMethodType(query.Get("code_challenge_method")),
	}

	session, err := s.auth.Authorize(params)
	if err != nil {
		// Never redirect errors to an unvalidated redirect URI.
		writeJSONError(w, auth.ErrorCode(err), err.Error(), http.StatusBadRequest)
		return
	}

	http.Redirect(w, r, RouteAuthLogin+"?session="+session.ID, http.StatusFound)
}

// TokenHandler exchanges authorization codes and refresh tokens for
// relay bearer tokens.
func (s *Server) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "malformed token request", http.StatusBadRequest)
		return
	}

	req := oauthmodel.TokenRequest{
		GrantType:    oauthmodel.GrantType(r.PostFormValue("grant_type")),
		Code:         r.PostFormValue("code"),
		CodeVerifier: r.PostFormValue("code_verifier"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		ClientID:     r.PostFormValue("client_id"),
		ClientSecret: r.PostFormValue("client_secret"),
		RefreshToken: r.PostFormValue("refresh_token"),
	}

	resp, err := s.auth.Token(req)
	if err != nil {
		code := auth.ErrorCode(err)
		status := http.StatusBadRequest
		if code == oauthmodel.ErrorCodeInvalidClient {
			status = http.StatusUnauthorized
		}
		log.Debug().Str("error", code).Str("grant_type", string(req.GrantType)).Msg("token request rejected")
		writeJSONError(w, code, "token request failed", status)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

// AuthServerMetadataHandler serves RFC 8414 authorization server
// metadata so MCP clients can discover the relay's OAuth endpoints.
func (s *Server) AuthServerMetadataHandler(w http.ResponseWriter, r *http.Request) {
	base := s.config.GetBaseURL()
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                base,
		"authorization_endpoint":                base + RouteOAuthAuthorize,
		"token_endpoint":                        base + RouteOAuthToken,
		"registration_endpoint":                 base + RouteOAuthRegister,
		"response_types_supported":              []string{string(oauthmodel.ResponseTypeCode)},
		"grant_types_supported":                 []string{string(oauthmodel.GrantTypeAuthorizationCode), string(oauthmodel.GrantTypeRefreshToken)},
		"code_challenge_methods_supported":      []string{string(oauthmodel.CodeMethodTypeS256)},
		"token_endpoint_auth_methods_supported": []string{"none", "client_secret_post"},
	})
}

// ProtectedResourceMetadataHandler serves RFC 9728 metadata for the
// streamable MCP endpoint, naming this relay as its authorization
// server.
func (s *Server) ProtectedResourceMetadataHandler(w http.ResponseWriter, r *http.Request) {
	base := s.config.GetBaseURL()
	writeJSON(w, http.StatusOK, map[string]any{
		"resource":              base + RouteMCP,
		"authorization_servers": []string{base},
		"bearer_methods_supported": []string{
			"header",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("encoding response")
	}
}

// writeJSONError writes a standard OAuth error response body.
func writeJSONError(w http.ResponseWriter, errorCode, description string, status int) {
	writeJSON(w, status, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
