package sessions

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sara3/tesla-mcp/internal/errors"
	"github.com/Sara3/tesla-mcp/oauthmodel"
)

const (
	sessionIDBytes       = 32 // 256 bits, hex encoded
	stateBytes           = 16 // 128 bits, base64url encoded
	pkceVerifierBytes    = 32 // 256 bits, base64url encoded
	connectionTokenBytes = 12
	connectionTokenLen   = 12 // short, user-facing URL parameter
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is the process-wide in-memory session store. Session
// state is volatile by design; an external store is an optional
// deployment concern, not a requirement of this repo.
type InMemoryRepo struct {
	sessions   map[string]*UserSession
	connTokens map[string]string // connection token -> session ID
	lock       sync.RWMutex
	nowTime    func() time.Time
}

// InMemoryRepoOption modifies an InMemoryRepo instance.
type InMemoryRepoOption func(*InMemoryRepo)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) InMemoryRepoOption {
	return func(r *InMemoryRepo) {
		r.nowTime = nowFunc
	}
}

func NewInMemoryRepo(options ...InMemoryRepoOption) *InMemoryRepo {
	r := &InMemoryRepo{
		sessions:   make(map[string]*UserSession),
		connTokens: make(map[string]string),
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *InMemoryRepo) Create() (*UserSession, error) {
	id, err := randomHex(sessionIDBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "[Create] rand.Read")
	}

	now := r.nowTime()
	session := &UserSession{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.sessions[id] = session

	snapshot := *session
	return &snapshot, nil
}

func (r *InMemoryRepo) Get(sessionID string) (*UserSession, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	session.LastActivity = r.nowTime()

	snapshot := *session
	return &snapshot, nil
}

func (r *InMemoryRepo) Update(sessionID string, apply func(*UserSession)) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return errors.ErrSessionNotFound
	}
	apply(session)
	session.LastActivity = r.nowTime()
	return nil
}

func (r *InMemoryRepo) HasValidTokens(sessionID string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	return session.HasValidTokens(r.nowTime())
}

func (r *InMemoryRepo) Delete(sessionID string) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.deleteLocked(sessionID)
}

func (r *InMemoryRepo) deleteLocked(sessionID string) bool {
	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}
	delete(r.sessions, sessionID)
	for token, id := range r.connTokens {
		if id == sessionID {
			delete(r.connTokens, token)
		}
	}
	return true
}

func (r *InMemoryRepo) GenerateOAuthState(sessionID string) (string, error) {
	state, err := randomURLSafe(stateBytes)
	if err != nil {
		return "", errors.Wrapf(err, "[GenerateOAuthState] rand.Read")
	}

	// Overwriting any prior state implicitly invalidates a concurrent
	// in-flight login attempt from the same session.
	if err := r.Update(sessionID, func(s *UserSession) {
		s.State = state
	}); err != nil {
		return "", err
	}
	return state, nil
}

func (r *InMemoryRepo) GeneratePKCE(sessionID string) (PKCEPair, error) {
	verifier, err := randomURLSafe(pkceVerifierBytes)
	if err != nil {
		return PKCEPair{}, errors.Wrapf(err, "[GeneratePKCE] rand.Read")
	}

	pair := PKCEPair{
		Verifier:  verifier,
		Challenge: oauthmodel.CodeChallengeS256(verifier),
	}
	if err := r.Update(sessionID, func(s *UserSession) {
		s.CodeVerifier = verifier
	}); err != nil {
		return PKCEPair{}, err
	}
	return pair, nil
}

func (r *InMemoryRepo) ConsumeState(sessionID, state string) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	if state == "" || session.State != state {
		return false
	}
	session.State = ""
	session.LastActivity = r.nowTime()
	return true
}

func (r *InMemoryRepo) CreateConnectionToken(sessionID string) (string, error) {
	token, err := randomURLSafe(connectionTokenBytes)
	if err != nil {
		return "", errors.Wrapf(err, "[CreateConnectionToken] rand.Read")
	}
	if len(token) > connectionTokenLen {
		token = token[:connectionTokenLen]
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return "", errors.ErrSessionNotFound
	}
	r.connTokens[token] = sessionID
	return token, nil
}

func (r *InMemoryRepo) ResolveConnectionToken(token string) (*UserSession, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	sessionID, ok := r.connTokens[token]
	if !ok {
		return nil, false
	}
	session, ok := r.sessions[sessionID]
	if !ok {
		// Token points at a swept session; drop it.
		delete(r.connTokens, token)
		return nil, false
	}
	session.LastActivity = r.nowTime()

	snapshot := *session
	return &snapshot, true
}

func (r *InMemoryRepo) Count() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.sessions)
}

func (r *InMemoryRepo) DeleteIdleBefore(cutoff time.Time) int {
	r.lock.Lock()
	defer r.lock.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if session.LastActivity.Before(cutoff) {
			r.deleteLocked(id)
			removed++
		}
	}
	return removed
}

// StartCleanup runs the hourly sweep until the context is cancelled,
// deleting sessions idle for longer than ttl.
func (r *InMemoryRepo) StartCleanup(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := r.DeleteIdleBefore(r.nowTime().Add(-ttl))
				if removed > 0 {
					log.Info().Int("removed", removed).Int("remaining", r.Count()).Msg("session sweep")
				}
			}
		}
	}()
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func randomURLSafe(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
