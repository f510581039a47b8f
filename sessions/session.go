package sessions

import (
	"time"

	"github.com/Sara3/tesla-mcp/oauthmodel"
)

// Credentials are the per-user Tesla developer credentials. They may
// come from the setup form or be injected from server-wide config.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// TeslaTokens are the Tesla OAuth tokens obtained through the Tesla
// login sub-flow.
type TeslaTokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time // zero means no known expiry
}

// ExternalAuthRequest captures the OAuth parameters of an external MCP
// client whose authorization request this session was created to
// service. It is only present on sessions started via /oauth/authorize.
type ExternalAuthRequest struct {
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod oauthmodel.CodeMethodType
}

// UserSession is the central per-user entity. Rather than a flat bag
// of optional fields, the optional parts are grouped into sub-structs
// which are set wholesale by the repo, so a session is always in one
// of a small number of consistent states: anonymous, credentials set,
// authenticated, or servicing an external authorization request.
type UserSession struct {
	ID string

	Credentials *Credentials
	Tokens      *TeslaTokens
	External    *ExternalAuthRequest

	// Tesla sub-flow artifacts. State is single use; CodeVerifier is
	// consumed by the callback's token exchange.
	State        string
	CodeVerifier string

	CreatedAt    time.Time
	LastActivity time.Time
}

// HasCredentials reports whether the session carries a developer
// client id and secret.
func (s *UserSession) HasCredentials() bool {
	return s.Credentials != nil && s.Credentials.ClientID != "" && s.Credentials.ClientSecret != ""
}

// IsAuthenticated reports whether the session holds a Tesla refresh
// token and credentials. It does not guarantee the access token is
// still valid; that is checked lazily on use.
func (s *UserSession) IsAuthenticated() bool {
	return s.HasCredentials() && s.Tokens != nil && s.Tokens.RefreshToken != ""
}

// HasValidTokens reports whether the session has an access token that
// has not expired at the given instant.
func (s *UserSession) HasValidTokens(now time.Time) bool {
	if s.Tokens == nil || s.Tokens.AccessToken == "" {
		return false
	}
	return s.Tokens.Expiry.IsZero() || now.Before(s.Tokens.Expiry)
}

// PendingExternal reports whether this session owes a redirect back to
// an external OAuth client once the Tesla sub-flow completes.
func (s *UserSession) PendingExternal() bool {
	return s.External != nil && s.External.RedirectURI != ""
}

// PKCEPair is a generated PKCE verifier and its S256 challenge.
type PKCEPair struct {
	Verifier  string
	Challenge string
}
