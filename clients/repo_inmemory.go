package clients

import (
	"sync"

	"github.com/Sara3/tesla-mcp/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

type InMemoryRepo struct {
	clients map[string]*Client
	lock    sync.RWMutex
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{clients: make(map[string]*Client)}
}

func (r *InMemoryRepo) Upsert(client *Client) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.clients[client.ID] = client
	return nil
}

func (r *InMemoryRepo) Get(clientID string) (*Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	client, ok := r.clients[clientID]
	if !ok {
		return nil, errors.ErrInvalidClient
	}
	return client, nil
}

func (r *InMemoryRepo) Count() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.clients)
}
