// Package pool holds the ordered set of configured instance clients.
package pool

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/cortex-connector/internal/connector"
)

// Pool is the static, read-only set of instances. Membership changes require a
// restart, so concurrent reads need no locking.
type Pool struct {
	clients []connector.InstanceClient
	byID    map[string]connector.InstanceClient
}

// New builds a Pool preserving the order of clients. Ids must be unique and non-empty.
func New(clients ...connector.InstanceClient) (*Pool, error) {
	p := &Pool{
		clients: make([]connector.InstanceClient, 0, len(clients)),
		byID:    make(map[string]connector.InstanceClient, len(clients)),
	}
	for i, c := range clients {
		if c == nil {
			return nil, fmt.Errorf("instance %d is nil", i)
		}
		id := c.ID()
		if id == "" {
			return nil, errors.New("instance id is required")
		}
		if _, dup := p.byID[id]; dup {
			return nil, fmt.Errorf("duplicate instance id %q", id)
		}
		p.clients = append(p.clients, c)
		p.byID[id] = c
	}
	return p, nil
}

// Instances returns the clients in configuration order.
func (p *Pool) Instances() []connector.InstanceClient {
	out := make([]connector.InstanceClient, len(p.clients))
	copy(out, p.clients)
	return out
}

// Lookup returns the client with the given id or ErrInstanceNotFound.
func (p *Pool) Lookup(instanceID string) (connector.InstanceClient, error) {
	c, ok := p.byID[instanceID]
	if !ok {
		return nil, fmt.Errorf("lookup %q: %w", instanceID, connector.ErrInstanceNotFound)
	}
	return c, nil
}

// Len returns the number of configured instances.
func (p *Pool) Len() int {
	return len(p.clients)
}

// IDs returns instance ids in configuration order.
func (p *Pool) IDs() []string {
	ids := make([]string, len(p.clients))
	for i, c := range p.clients {
		ids[i] = c.ID()
	}
	return ids
}
