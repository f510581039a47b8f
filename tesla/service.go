package tesla

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	apperrors "github.com/Sara3/tesla-mcp/internal/errors"
	"github.com/Sara3/tesla-mcp/sessions"
)

// Fleet API allows roughly 10 requests/second per application; the
// limiter keeps a misbehaving client from burning the budget.
const (
	fleetRequestsPerSecond = 10
	fleetBurst             = 5
)

// Service issues bearer-authenticated Fleet API calls on behalf of a
// user session, refreshing the session's Tesla access token lazily
// when it has expired. Concurrent refreshes for one session are
// collapsed into a single upstream exchange.
type Service struct {
	sessions sessions.Repo
	http     *http.Client

	baseURL     string
	authURL     string
	tokenURL    string
	redirectURL string

	refreshGroup singleflight.Group
	limiter      *rate.Limiter
	nowTime      func() time.Time
}

// ServiceOption modifies a Service instance.
type ServiceOption func(*Service)

// WithHTTPClient overrides the HTTP client used for all upstream
// calls (primarily for testing).
func WithHTTPClient(client *http.Client) ServiceOption {
	return func(s *Service) {
		s.http = client
	}
}

// WithBaseURL overrides the Fleet API base URL (primarily for testing
// against a local fake upstream).
func WithBaseURL(baseURL string) ServiceOption {
	return func(s *Service) {
		s.baseURL = baseURL
	}
}

// WithAuthEndpoints overrides the Tesla OAuth endpoints (primarily
// for testing).
func WithAuthEndpoints(authURL, tokenURL string) ServiceOption {
	return func(s *Service) {
		s.authURL = authURL
		s.tokenURL = tokenURL
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// NewService builds a Fleet API service for the given region.
// gatewayBaseURL is the externally visible base URL of this gateway,
// used to derive the Tesla OAuth redirect URI.
func NewService(sessionRepo sessions.Repo, region, gatewayBaseURL string, options ...ServiceOption) *Service {
	s := &Service{
		sessions:    sessionRepo,
		http:        &http.Client{Timeout: 30 * time.Second},
		baseURL:     FleetBaseURL(region),
		authURL:     authBaseURL(region) + "/authorize",
		tokenURL:    authBaseURL(region) + "/token",
		redirectURL: strings.TrimRight(gatewayBaseURL, "/") + "/auth/callback",
		limiter:     rate.NewLimiter(rate.Limit(fleetRequestsPerSecond), fleetBurst),
		nowTime:     time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// HasCredentials reports whether the session carries developer
// credentials.
func (s *Service) HasCredentials(sessionID string) bool {
	session, err := s.sessions.Get(sessionID)
	return err == nil && session.HasCredentials()
}

// IsAuthenticated reports whether the session has completed the Tesla
// login sub-flow.
func (s *Service) IsAuthenticated(sessionID string) bool {
	session, err := s.sessions.Get(sessionID)
	return err == nil && session.IsAuthenticated()
}

// ExchangeCode swaps a Tesla authorization code for tokens using the
// session's PKCE verifier. Upstream error bodies are sanitized before
// they leave this package.
func (s *Service) ExchangeCode(ctx context.Context, creds *sessions.Credentials, code, codeVerifier string) (*oauth2.Token, error) {
	conf := s.oauthConfig(creds)
	tok, err := conf.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	if err != nil {
		return nil, sanitizeExchangeError(err)
	}
	return tok, nil
}

// accessToken returns a valid access token for the session, refreshing
// via the stored Tesla refresh token when the current one is missing
// or expired. The refresh is single-flighted per session so a
// reconnect race performs at most one upstream exchange.
func (s *Service) accessToken(ctx context.Context, sessionID string) (string, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return "", apperrors.ErrSessionNotFound
	}
	if !session.HasCredentials() {
		return "", apperrors.ErrAuthConfiguration
	}
	if session.HasValidTokens(s.nowTime()) {
		return session.Tokens.AccessToken, nil
	}
	if session.Tokens == nil || session.Tokens.RefreshToken == "" {
		return "", apperrors.ErrAuthRequired
	}

	v, err, _ := s.refreshGroup.Do(sessionID, func() (interface{}, error) {
		return s.refreshToken(ctx, sessionID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Service) refreshToken(ctx context.Context, sessionID string) (string, error) {
	// Re-read under the flight: a concurrent caller may have already
	// refreshed before we were coalesced in.
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return "", apperrors.ErrSessionNotFound
	}
	if session.HasValidTokens(s.nowTime()) {
		return session.Tokens.AccessToken, nil
	}

	conf := s.oauthConfig(session.Credentials)
	seed := &oauth2.Token{RefreshToken: session.Tokens.RefreshToken}
	fresh, err := conf.TokenSource(ctx, seed).Token()
	if err != nil {
		return "", sanitizeExchangeError(err)
	}

	refreshToken := fresh.RefreshToken
	if refreshToken == "" {
		refreshToken = session.Tokens.RefreshToken
	}
	if err := s.sessions.Update(sessionID, func(us *sessions.UserSession) {
		us.Tokens = &sessions.TeslaTokens{
			AccessToken:  fresh.AccessToken,
			RefreshToken: refreshToken,
			Expiry:       fresh.Expiry,
		}
	}); err != nil {
		return "", errors.Wrap(err, "[refreshToken] persisting refreshed tokens")
	}

	log.Debug().Str("session", sessionID[:8]).Msg("tesla access token refreshed")
	return fresh.AccessToken, nil
}

// Vehicles lists the vehicles on the account.
func (s *Service) Vehicles(ctx context.Context, sessionID string) ([]Vehicle, error) {
	var vehicles []Vehicle
	if err := s.apiCall(ctx, sessionID, http.MethodGet, "/api/1/vehicles", nil, &vehicles); err != nil {
		return nil, errors.Wrap(err, "[Vehicles] vehicle list failed")
	}
	return vehicles, nil
}

// WakeUp wakes a sleeping vehicle. Wake-up is asynchronous upstream;
// the returned state may still be "asleep" for a short while.
func (s *Service) WakeUp(ctx context.Context, sessionID, vehicleID string) (*Vehicle, error) {
	var vehicle Vehicle
	path := fmt.Sprintf("/api/1/vehicles/%s/wake_up", url.PathEscape(vehicleID))
	if err := s.apiCall(ctx, sessionID, http.MethodPost, path, nil, &vehicle); err != nil {
		return nil, errors.Wrap(err, "[WakeUp] wake up failed")
	}
	return &vehicle, nil
}

// VehicleData fetches the full state document for a vehicle. Location
// data requires its own scope and is only requested when asked for.
func (s *Service) VehicleData(ctx context.Context, sessionID, vehicleID string, includeLocation bool) (*VehicleData, error) {
	endpoints := "charge_state;climate_state;drive_state;vehicle_state;gui_settings"
	if includeLocation {
		endpoints += ";location_data"
	}
	path := fmt.Sprintf("/api/1/vehicles/%s/vehicle_data?endpoints=%s",
		url.PathEscape(vehicleID), url.QueryEscape(endpoints))

	var data VehicleData
	if err := s.apiCall(ctx, sessionID, http.MethodGet, path, nil, &data); err != nil {
		return nil, errors.Wrap(err, "[VehicleData] vehicle data failed")
	}
	return &data, nil
}

// Command issues a vehicle command (lock, climate, charging, ...).
func (s *Service) Command(ctx context.Context, sessionID, vehicleID, command string, body interface{}) (*CommandResult, error) {
	var result CommandResult
	path := fmt.Sprintf("/api/1/vehicles/%s/command/%s", url.PathEscape(vehicleID), url.PathEscape(command))
	if err := s.apiCall(ctx, sessionID, http.MethodPost, path, body, &result); err != nil {
		return nil, errors.Wrapf(err, "[Command] %s failed", command)
	}
	return &result, nil
}

// NearbyCharging lists charging sites near the vehicle.
func (s *Service) NearbyCharging(ctx context.Context, sessionID, vehicleID string) (*ChargingSites, error) {
	var sites ChargingSites
	path := fmt.Sprintf("/api/1/vehicles/%s/nearby_charging_sites", url.PathEscape(vehicleID))
	if err := s.apiCall(ctx, sessionID, http.MethodGet, path, nil, &sites); err != nil {
		return nil, errors.Wrap(err, "[NearbyCharging] nearby charging failed")
	}
	return &sites, nil
}

// apiCall performs one bearer-authenticated Fleet API request and
// decodes the "response" envelope into out. Raw upstream bodies never
// leave this function.
func (s *Service) apiCall(ctx context.Context, sessionID, method, path string, body, out interface{}) error {
	token, err := s.accessToken(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[apiCall] encoding request body")
		}
		reqBody = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "[apiCall] building request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return errors.Wrap(apperrors.ErrUpstreamExchange, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The body may carry tokens or account detail; log only the
		// status and path.
		log.Warn().Int("status", resp.StatusCode).Str("path", req.URL.Path).Msg("fleet api error")
		_, _ = io.Copy(io.Discard, resp.Body)
		return errors.Wrapf(apperrors.ErrUpstreamExchange, "upstream status %d", resp.StatusCode)
	}

	var envelope struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.Wrap(apperrors.ErrUpstreamExchange, "decoding response")
	}
	if out != nil && len(envelope.Response) > 0 {
		if err := json.Unmarshal(envelope.Response, out); err != nil {
			return errors.Wrap(apperrors.ErrUpstreamExchange, "decoding response payload")
		}
	}
	return nil
}

// sanitizeExchangeError reduces an oauth2 retrieval failure to its
// error code and description. The raw response body can echo secrets
// and must not propagate.
func sanitizeExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode != "" {
			return errors.Wrapf(apperrors.ErrUpstreamExchange, "%s: %s", retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
		}
		return errors.Wrapf(apperrors.ErrUpstreamExchange, "upstream status %d", retrieveErr.Response.StatusCode)
	}
	return errors.Wrap(apperrors.ErrUpstreamExchange, "token exchange failed")
}
