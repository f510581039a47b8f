package auth

import (
	apperrors "github.com/Sara3/tesla-mcp/internal/errors"
	"github.com/Sara3/tesla-mcp/oauthmodel"
)

// ErrorCode maps a service error onto the OAuth protocol error code
// returned in JSON error responses.
func ErrorCode(err error) string {
	switch {
	case apperrors.Is(err, oauthmodel.ErrInvalidResponseType):
		return oauthmodel.ErrorCodeUnsupportedResponseType
	case apperrors.Is(err, oauthmodel.ErrInvalidGrantType):
		return oauthmodel.ErrorCodeUnsupportedGrantType
	case apperrors.Is(err, oauthmodel.ErrInvalidClientID):
		return oauthmodel.ErrorCodeInvalidClient
	case apperrors.Is(err, oauthmodel.ErrInvalidRedirectURI):
		return oauthmodel.ErrorCodeInvalidRedirectURI
	case apperrors.Is(err, apperrors.ErrInvalidGrant),
		apperrors.Is(err, apperrors.ErrInvalidAuthorizationCode),
		apperrors.Is(err, apperrors.ErrInvalidCodeChallenge),
		apperrors.Is(err, apperrors.ErrInvalidRefreshToken):
		return oauthmodel.ErrorCodeInvalidGrant
	case apperrors.Is(err, oauthmodel.ErrMissingRedirectURIs),
		apperrors.Is(err, apperrors.ErrInvalidRequest):
		return oauthmodel.ErrorCodeInvalidRequest
	default:
		return oauthmodel.ErrorCodeServerError
	}
}
