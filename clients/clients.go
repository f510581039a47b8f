package clients

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"

	"github.com/Sara3/tesla-mcp/internal/errors"
)

const clientSecretBytes = 32

// Client is a dynamically registered OAuth client record (RFC 7591).
// Registration is open and unauthenticated, mirroring the dynamic
// registration used by MCP tooling; records are immutable once created
// and live for the process lifetime.
type Client struct {
	ID           string    `json:"client_id"`
	Secret       string    `json:"client_secret"`
	Name         string    `json:"client_name,omitempty"`
	RedirectURIs []string  `json:"redirect_uris"`
	CreatedAt    time.Time `json:"created_at"`
}

// New mints a client with a uuid-derived id and a random secret.
func New(name string, redirectURIs []string) (*Client, error) {
	if len(redirectURIs) == 0 {
		return nil, errors.ErrInvalidRedirectURI
	}

	secret := make([]byte, clientSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, errors.Wrapf(err, "[clients.New] rand.Read")
	}

	return &Client{
		ID:           uuid.New().String(),
		Secret:       base64.RawURLEncoding.EncodeToString(secret),
		Name:         name,
		RedirectURIs: append([]string(nil), redirectURIs...),
		CreatedAt:    time.Now(),
	}, nil
}

// AllowsRedirectURI checks a redirect URI against the registered list.
// Only exact string matches are permitted; prefix or partial matching
// would open the relay to redirect abuse.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}
