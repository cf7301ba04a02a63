package nodeclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// Registry is the process-wide node_id → Client map. Clients are built
// lazily from node rows and torn down on delete or disable.
type Registry struct {
	caPEM  string
	logger logger.Interface

	mu      sync.Mutex
	clients map[uint]*Client
	// connecting guards against overlapping connect attempts per node.
	connecting map[uint]struct{}
}

// NewRegistry creates a registry verifying nodes against the given CA.
func NewRegistry(caPEM string, log logger.Interface) *Registry {
	return &Registry{
		caPEM:      caPEM,
		logger:     log,
		clients:    make(map[uint]*Client),
		connecting: make(map[uint]struct{}),
	}
}

// SetCA replaces the CA bundle used for clients built after the call.
func (r *Registry) SetCA(caPEM string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caPEM = caPEM
}

// Get returns the client for the node, or nil when none is registered.
func (r *Registry) Get(nodeID uint) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients[nodeID]
}

// GetOrCreate returns the node's client, constructing one from the node row
// when absent or when the node's coordinates changed.
func (r *Registry) GetOrCreate(n *node.Node) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[n.ID()]; ok {
		if c.address == n.Address() && c.rpcPort == n.RPCPort() && c.statsPort == n.StatsPort() {
			return c, nil
		}
		// Coordinates changed; retire the stale client.
		c.logs.Stop()
		delete(r.clients, n.ID())
	}

	c, err := New(n.ID(), n.Address(), n.RPCPort(), n.StatsPort(), Credentials{
		CAPEM:         r.caPEM,
		ClientCertPEM: n.ClientCertPEM(),
		ClientKeyPEM:  n.ClientKeyPEM(),
	}, r.logger)
	if err != nil {
		return nil, err
	}
	r.clients[n.ID()] = c
	return c, nil
}

// Info fetches the live self-description of a connected node.
func (r *Registry) Info(ctx context.Context, nodeID uint) (*Info, error) {
	c := r.Get(nodeID)
	if c == nil || !c.Connected() {
		return nil, fmt.Errorf("node %d has no live session", nodeID)
	}
	return c.Info(ctx)
}

// UsersTraffic reads and resets the per-user counters of a connected node.
func (r *Registry) UsersTraffic(ctx context.Context, nodeID uint) ([]UserTraffic, error) {
	c := r.Get(nodeID)
	if c == nil {
		return nil, fmt.Errorf("node %d has no client", nodeID)
	}
	return c.Stats().GetAllUsersTraffic(ctx, true)
}

// Remove disconnects and drops the node's client.
func (r *Registry) Remove(ctx context.Context, nodeID uint) {
	r.mu.Lock()
	c := r.clients[nodeID]
	delete(r.clients, nodeID)
	delete(r.connecting, nodeID)
	r.mu.Unlock()

	if c != nil {
		c.Disconnect(ctx)
		r.logger.Debugw("node client removed", "node_id", nodeID)
	}
}

// List returns the registered clients.
func (r *Registry) List() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// BeginConnect marks a connect attempt in flight. It returns false when one
// is already running for the node.
func (r *Registry) BeginConnect(nodeID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.connecting[nodeID]; busy {
		return false
	}
	r.connecting[nodeID] = struct{}{}
	return true
}

// EndConnect clears the in-flight marker.
func (r *Registry) EndConnect(nodeID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connecting, nodeID)
}
