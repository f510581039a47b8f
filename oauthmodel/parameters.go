package oauthmodel

// ResponseType is the OAuth2 authorization response type. Only the
// authorization code flow is supported.
type ResponseType string

const (
	ResponseTypeCode ResponseType = "code"
)

// CodeMethodType is the PKCE code challenge method.
type CodeMethodType string

const (
	CodeMethodTypeS256  CodeMethodType = "S256"
	CodeMethodTypePlain CodeMethodType = "plain"
	CodeMethodTypeNone  CodeMethodType = ""
)

// GrantType is the OAuth2 token grant type.
type GrantType string

const (
	GrantTypeAuthorizationCode GrantType = "authorization_code"
	GrantTypeRefreshToken      GrantType = "refresh_token"
)

// AuthorizationParameters carries the query parameters of an external
// client's /oauth/authorize request.
type AuthorizationParameters struct {
	ClientID            string
	ResponseType        ResponseType
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod CodeMethodType
}

// Validate checks the parameters that do not require a client lookup.
func (p *AuthorizationParameters) Validate() error {
	if p.ResponseType != ResponseTypeCode {
		return ErrInvalidResponseType
	}
	if p.ClientID == "" {
		return ErrInvalidClientID
	}
	if p.RedirectURI == "" {
		return ErrInvalidRedirectURI
	}
	return nil
}
