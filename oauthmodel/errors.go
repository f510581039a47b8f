package oauthmodel

import "errors"

// OAuth protocol error codes, returned as the "error" member of JSON
// error responses per RFC 6749 §5.2.
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeAccessDenied            = "access_denied"
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeInvalidRedirectURI      = "invalid_redirect_uri"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeServerError             = "server_error"
)

var (
	ErrInvalidClientID          = errors.New("invalid or unregistered client id")
	ErrInvalidRedirectURI       = errors.New("redirect uri not registered for client")
	ErrInvalidResponseType      = errors.New("unsupported response type")
	ErrInvalidGrantType         = errors.New("unsupported grant type")
	ErrMissingRedirectURIs      = errors.New("redirect_uris is required")
	ErrInvalidCodeChallenge     = errors.New("invalid code challenge")
	ErrAuthorizationCodeInvalid = errors.New("authorization code invalid or expired")
)
