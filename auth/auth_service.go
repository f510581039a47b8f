package auth

import (
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Sara3/tesla-mcp/clients"
	apperrors "github.com/Sara3/tesla-mcp/internal/errors"
	"github.com/Sara3/tesla-mcp/oauthmodel"
	"github.com/Sara3/tesla-mcp/sessions"
	"github.com/Sara3/tesla-mcp/token"
)

// Repos holds all repository dependencies for the AuthorizationService
type Repos struct {
	Sessions sessions.Repo // Repository for user session data
	Clients  clients.Repo  // Repository for registered OAuth clients
}

// AuthorizationService implements the relay's side of the OAuth 2.1
// authorization-code flow: it validates external clients' requests,
// parks their parameters on a fresh user session while the user runs
// Tesla's login sub-flow, and mints relay tokens once that completes.
type AuthorizationService struct {
	repos      Repos
	tokens     *token.Manager
	teslaCreds *sessions.Credentials // server-wide defaults, may be nil
	nowTime    func() time.Time
}

// AuthorizationServiceOption defines a function type to modify the
// AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

// WithServerCredentials seeds every relay-created session with
// server-wide Tesla developer credentials so users skip the setup
// form.
func WithServerCredentials(clientID, clientSecret string) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		if clientID != "" && clientSecret != "" {
			as.teslaCreds = &sessions.Credentials{ClientID: clientID, ClientSecret: clientSecret}
		}
	}
}

// NewAuthorizationService initializes a new AuthorizationService with
// required dependencies.
func NewAuthorizationService(repos Repos, tokens *token.Manager, options ...AuthorizationServiceOption) (*AuthorizationService, error) {
	if repos.Sessions == nil {
		return nil, errors.New("[NewAuthorizationService] Sessions repo is required")
	}
	if repos.Clients == nil {
		return nil, errors.New("[NewAuthorizationService] Clients repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewAuthorizationService] token manager is required")
	}

	authService := &AuthorizationService{
		repos:   repos,
		tokens:  tokens,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(authService)
	}
	return authService, nil
}

// RegisterClient handles open dynamic client registration (RFC 7591).
func (as *AuthorizationService) RegisterClient(req *oauthmodel.RegistrationRequest) (*clients.Client, error) {
	if len(req.RedirectURIs) == 0 {
		return nil, oauthmodel.ErrMissingRedirectURIs
	}
	client, err := clients.New(req.ClientName, req.RedirectURIs)
	if err != nil {
		return nil, errors.Wrap(err, "[RegisterClient] minting client")
	}
	if err := as.repos.Clients.Upsert(client); err != nil {
		return nil, errors.Wrap(err, "[RegisterClient] storing client")
	}

	log.Info().Str("client_id", client.ID).Msg("oauth client registered")
	return client, nil
}

// Authorize validates an external authorization request and creates
// the user session backing it. The redirect URI is checked before any
// session is created so a bad request leaves no state behind.
func (as *AuthorizationService) Authorize(params *oauthmodel.AuthorizationParameters) (*sessions.UserSession, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	client, err := as.repos.Clients.Get(params.ClientID)
	if err != nil {
		return nil, oauthmodel.ErrInvalidClientID
	}
	if !client.AllowsRedirectURI(params.RedirectURI) {
		return nil, oauthmodel.ErrInvalidRedirectURI
	}

	session, err := as.repos.Sessions.Create()
	if err != nil {
		return nil, errors.Wrap(err, "[Authorize] creating session")
	}

	if err := as.repos.Sessions.Update(session.ID, func(s *sessions.UserSession) {
		if as.teslaCreds != nil {
			s.Credentials = &sessions.Credentials{
				ClientID:     as.teslaCreds.ClientID,
				ClientSecret: as.teslaCreds.ClientSecret,
			}
		}
		s.External = &sessions.ExternalAuthRequest{
			ClientID:            params.ClientID,
			RedirectURI:         params.RedirectURI,
			State:               params.State,
			CodeChallenge:       params.CodeChallenge,
			CodeChallengeMethod: params.CodeChallengeMethod,
		}
	}); err != nil {
		return nil, errors.Wrap(err, "[Authorize] stashing client parameters")
	}

	log.Info().Str("client_id", params.ClientID).Msg("authorization requested")
	return as.repos.Sessions.Get(session.ID)
}

// FinishAuthorization mints an authorization code for a session whose
// Tesla sub-flow just completed and returns the external client's
// redirect URL carrying the code and the client's original state.
func (as *AuthorizationService) FinishAuthorization(sessionID string) (string, error) {
	session, err := as.repos.Sessions.Get(sessionID)
	if err != nil {
		return "", err
	}
	if !session.PendingExternal() {
		return "", apperrors.ErrInvalidRequest
	}
	ext := session.External

	code, err := as.tokens.IssueAuthorizationCode(sessionID, ext.ClientID, ext.RedirectURI, ext.CodeChallenge, ext.CodeChallengeMethod)
	if err != nil {
		return "", errors.Wrap(err, "[FinishAuthorization] issuing code")
	}

	redirect, err := appendQuery(ext.RedirectURI, map[string]string{
		"code":  code,
		"state": ext.State,
	})
	if err != nil {
		return "", errors.Wrap(err, "[FinishAuthorization] building redirect")
	}

	log.Info().Str("client_id", ext.ClientID).Msg("authorization code issued")
	return redirect, nil
}

// ExternalErrorRedirect relays a Tesla-side failure back to the
// external client as error parameters on its redirect URI. The second
// return is false when the session has no pending external flow.
func (as *AuthorizationService) ExternalErrorRedirect(sessionID, errCode, errDescription string) (string, bool) {
	session, err := as.repos.Sessions.Get(sessionID)
	if err != nil || !session.PendingExternal() {
		return "", false
	}
	ext := session.External

	redirect, err := appendQuery(ext.RedirectURI, map[string]string{
		"error":             errCode,
		"error_description": errDescription,
		"state":             ext.State,
	})
	if err != nil {
		return "", false
	}
	return redirect, true
}

// Token handles the OAuth 2.0 token request for both supported grant
// types.
func (as *AuthorizationService) Token(req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	switch req.GrantType {
	case oauthmodel.GrantTypeAuthorizationCode:
		return as.exchangeCode(req)
	case oauthmodel.GrantTypeRefreshToken:
		return as.refreshBearer(req)
	default:
		return nil, oauthmodel.ErrInvalidGrantType
	}
}

func (as *AuthorizationService) exchangeCode(req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	// Confidential clients may present their secret; when they do it
	// has to match.
	if req.ClientSecret != "" {
		client, err := as.repos.Clients.Get(req.ClientID)
		if err != nil || client.Secret != req.ClientSecret {
			return nil, oauthmodel.ErrInvalidClientID
		}
	}

	sessionID, err := as.tokens.ExchangeAuthorizationCode(req.Code, req.ClientID, req.RedirectURI, req.CodeVerifier)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidGrant, "%v", err)
	}

	accessToken, expiresIn, err := as.tokens.IssueBearer(sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "[Token] issuing bearer")
	}
	refreshToken, err := as.tokens.IssueRefresh(sessionID, req.ClientID)
	if err != nil {
		return nil, errors.Wrap(err, "[Token] issuing refresh token")
	}

	log.Info().Str("client_id", req.ClientID).Msg("tokens issued")
	return &oauthmodel.TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "bearer",
		ExpiresIn:    expiresIn,
		RefreshToken: refreshToken,
	}, nil
}

func (as *AuthorizationService) refreshBearer(req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	sessionID, err := as.tokens.SessionForRefresh(req.RefreshToken)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidGrant, "%v", err)
	}

	accessToken, expiresIn, err := as.tokens.IssueBearer(sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "[Token] issuing bearer")
	}

	// The refresh token is not rotated on use.
	return &oauthmodel.TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   expiresIn,
	}, nil
}

func appendQuery(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for key, value := range params {
		if value != "" || key == "code" {
			q.Set(key, value)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
