package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sara3/tesla-mcp/internal/errors"
	"github.com/Sara3/tesla-mcp/oauthmodel"
)

const tokenBytes = 32

// AuthorizationCode is a short-lived, single-use grant binding an
// external client's token exchange to a user session.
type AuthorizationCode struct {
	Code                string
	UserSessionID       string
	ClientID            string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod oauthmodel.CodeMethodType
	ExpiresAt           time.Time
}

// BearerToken maps an opaque access token to a user session.
// Validation is presence plus non-expiry; nothing is signed.
type BearerToken struct {
	UserSessionID string
	ExpiresAt     time.Time
}

// RefreshToken maps an opaque relay refresh token to a user session
// and the client it was issued to. Distinct from Tesla's own refresh
// token, which lives on the session.
type RefreshToken struct {
	UserSessionID string
	ClientID      string
	ExpiresAt     time.Time
}

// Manager issues and validates the relay's opaque tokens: 5-minute
// single-use authorization codes, 1-hour bearer tokens and 30-day
// refresh tokens.
type Manager struct {
	codes   map[string]*AuthorizationCode
	bearers map[string]*BearerToken
	refresh map[string]*RefreshToken
	lock    sync.Mutex
	nowTime func() time.Time

	codeTTL    time.Duration
	bearerTTL  time.Duration
	refreshTTL time.Duration
}

// ManagerOption modifies a Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

func New(codeTTL, bearerTTL, refreshTTL time.Duration, options ...ManagerOption) *Manager {
	m := &Manager{
		codes:      make(map[string]*AuthorizationCode),
		bearers:    make(map[string]*BearerToken),
		refresh:    make(map[string]*RefreshToken),
		nowTime:    time.Now,
		codeTTL:    codeTTL,
		bearerTTL:  bearerTTL,
		refreshTTL: refreshTTL,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// IssueAuthorizationCode mints a code bound to the session, client,
// redirect URI and PKCE challenge of the authorization request.
func (m *Manager) IssueAuthorizationCode(userSessionID, clientID, redirectURI, challenge string, method oauthmodel.CodeMethodType) (string, error) {
	code, err := randomToken()
	if err != nil {
		return "", errors.Wrapf(err, "[IssueAuthorizationCode] rand.Read")
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.codes[code] = &AuthorizationCode{
		Code:                code,
		UserSessionID:       userSessionID,
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		ExpiresAt:           m.nowTime().Add(m.codeTTL),
	}
	return code, nil
}

// ExchangeAuthorizationCode consumes a code and returns the user
// session it was bound to. The code is deleted on every path, success
// or failure, so a code can never be replayed after a failed exchange.
func (m *Manager) ExchangeAuthorizationCode(code, clientID, redirectURI, verifier string) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	record, ok := m.codes[code]
	if !ok {
		return "", errors.ErrInvalidAuthorizationCode
	}
	delete(m.codes, code)

	if m.nowTime().After(record.ExpiresAt) {
		return "", errors.ErrInvalidAuthorizationCode
	}
	if record.ClientID != clientID || record.RedirectURI != redirectURI {
		return "", errors.ErrInvalidGrant
	}
	if !oauthmodel.VerifyCodeChallenge(record.CodeChallenge, verifier, record.CodeChallengeMethod) {
		return "", errors.ErrInvalidCodeChallenge
	}
	return record.UserSessionID, nil
}

// IssueBearer mints a bearer access token for the session and returns
// the token with its lifetime in seconds.
func (m *Manager) IssueBearer(userSessionID string) (string, int64, error) {
	token, err := randomToken()
	if err != nil {
		return "", 0, errors.Wrapf(err, "[IssueBearer] rand.Read")
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.bearers[token] = &BearerToken{
		UserSessionID: userSessionID,
		ExpiresAt:     m.nowTime().Add(m.bearerTTL),
	}
	return token, int64(m.bearerTTL.Seconds()), nil
}

// ValidateBearer returns the session a bearer token is bound to.
// Expired tokens are deleted on sight.
func (m *Manager) ValidateBearer(token string) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	record, ok := m.bearers[token]
	if !ok {
		return "", errors.ErrInvalidToken
	}
	if m.nowTime().After(record.ExpiresAt) {
		delete(m.bearers, token)
		return "", errors.ErrTokenExpired
	}
	return record.UserSessionID, nil
}

// IssueRefresh mints a relay refresh token bound to the session and
// the requesting client.
func (m *Manager) IssueRefresh(userSessionID, clientID string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", errors.Wrapf(err, "[IssueRefresh] rand.Read")
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.refresh[token] = &RefreshToken{
		UserSessionID: userSessionID,
		ClientID:      clientID,
		ExpiresAt:     m.nowTime().Add(m.refreshTTL),
	}
	return token, nil
}

// SessionForRefresh resolves a refresh token to its user session.
// The token itself is not rotated.
func (m *Manager) SessionForRefresh(token string) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	record, ok := m.refresh[token]
	if !ok {
		return "", errors.ErrInvalidRefreshToken
	}
	if m.nowTime().After(record.ExpiresAt) {
		delete(m.refresh, token)
		return "", errors.ErrInvalidRefreshToken
	}
	return record.UserSessionID, nil
}

// CleanupExpired removes expired codes, bearers and refresh tokens and
// returns how many records were dropped.
func (m *Manager) CleanupExpired() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.nowTime()
	removed := 0
	for code, record := range m.codes {
		if now.After(record.ExpiresAt) {
			delete(m.codes, code)
			removed++
		}
	}
	for token, record := range m.bearers {
		if now.After(record.ExpiresAt) {
			delete(m.bearers, token)
			removed++
		}
	}
	for token, record := range m.refresh {
		if now.After(record.ExpiresAt) {
			delete(m.refresh, token)
			removed++
		}
	}
	return removed
}

// StartCleanup runs the expiry sweep until the context is cancelled.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := m.CleanupExpired(); removed > 0 {
					log.Info().Int("removed", removed).Msg("token sweep")
				}
			}
		}
	}()
}

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
