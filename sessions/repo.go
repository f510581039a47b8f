package sessions

import "time"

// Repo defines the interface for user session storage. All lookups
// that miss return ErrSessionNotFound rather than panicking or
// returning partial state; callers turn "absent" into a
// please-authenticate flow.
type Repo interface {
	// Create generates a session with a fresh 256-bit identifier.
	// The only failure mode is the random source failing.
	Create() (*UserSession, error)

	// Get retrieves a snapshot of a session and touches its
	// LastActivity (sliding-window TTL).
	Get(sessionID string) (*UserSession, error)

	// Update applies a mutation to a session under the store lock and
	// refreshes LastActivity. Fails if the session is absent.
	Update(sessionID string, apply func(*UserSession)) error

	// HasValidTokens reports whether the session exists and carries an
	// unexpired Tesla access token.
	HasValidTokens(sessionID string) bool

	// Delete removes the session and every connection token that maps
	// to it. Returns false if the session was absent.
	Delete(sessionID string) bool

	// GenerateOAuthState mints a 128-bit random state for the Tesla
	// sub-flow, replacing any prior state for the session.
	GenerateOAuthState(sessionID string) (string, error)

	// GeneratePKCE mints a 256-bit PKCE verifier and its S256
	// challenge, storing the verifier on the session.
	GeneratePKCE(sessionID string) (PKCEPair, error)

	// ConsumeState compares the supplied state against the stored one
	// and clears it on a match, so a state value validates exactly
	// once.
	ConsumeState(sessionID, state string) bool

	// CreateConnectionToken mints a short resumption token pointing at
	// the session. Multiple tokens may point at the same session.
	CreateConnectionToken(sessionID string) (string, error)

	// ResolveConnectionToken maps a connection token back to its live
	// session, touching LastActivity.
	ResolveConnectionToken(token string) (*UserSession, bool)

	// Count returns the number of live sessions.
	Count() int

	// DeleteIdleBefore removes every session whose LastActivity is
	// older than the cutoff, cascading to connection tokens, and
	// returns how many were removed.
	DeleteIdleBefore(cutoff time.Time) int
}
