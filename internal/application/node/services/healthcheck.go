package services

import (
	"context"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/infrastructure/nodeclient"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// nodeConnector starts a (re)connect attempt for one node.
type nodeConnector interface {
	ConnectNode(ctx context.Context, nodeID uint) error
}

// probeClient is the slice of the node client the health loop exercises.
type probeClient interface {
	Connected() bool
	Ping(ctx context.Context) error
	ProbeStats(ctx context.Context) error
}

// HealthChecker probes every non-disabled node each tick: connected nodes
// get a ping and a stats probe; anything else gets a connect attempt.
type HealthChecker struct {
	nodes     node.Repository
	registry  *nodeclient.Registry
	connector nodeConnector
	logger    logger.Interface
}

// NewHealthChecker creates the node health job.
func NewHealthChecker(nodes node.Repository, registry *nodeclient.Registry, operations nodeConnector, log logger.Interface) *HealthChecker {
	return &HealthChecker{nodes: nodes, registry: registry, connector: operations, logger: log}
}

// Tick runs one probe round. Failures downgrade the node to error and an
// immediate reconnect is attempted; the next tick retries whatever is left.
func (h *HealthChecker) Tick(ctx context.Context) error {
	nodes, err := h.nodes.List(ctx)
	if err != nil {
		return err
	}

	for _, n := range nodes {
		switch n.Status() {
		case node.StatusDisabled:
			continue
		case node.StatusConnected:
			h.probe(ctx, n)
		default:
			// connecting or error: try to (re)establish.
			h.reconnect(ctx, n.ID())
		}
	}
	return nil
}

func (h *HealthChecker) probe(ctx context.Context, n *node.Node) {
	client := h.registry.Get(n.ID())
	if client == nil || !client.Connected() {
		h.reconnect(ctx, n.ID())
		return
	}
	h.check(ctx, n, client)
}

// check runs the ping and stats probes against a live client. Either
// failing marks the node as errored and triggers a reconnect.
func (h *HealthChecker) check(ctx context.Context, n *node.Node, client probeClient) {
	if err := client.Ping(ctx); err != nil {
		h.logger.Warnw("node ping failed", "node_id", n.ID(), "error", err)
		h.degrade(ctx, n, err)
		return
	}
	if err := client.ProbeStats(ctx); err != nil {
		h.logger.Warnw("node stats probe failed", "node_id", n.ID(), "error", err)
		h.degrade(ctx, n, err)
	}
}

func (h *HealthChecker) degrade(ctx context.Context, n *node.Node, cause error) {
	n.MarkError(cause.Error())
	if err := h.nodes.Update(ctx, n); err != nil {
		h.logger.Errorw("failed to persist node error state", "node_id", n.ID(), "error", err)
	}
	h.reconnect(ctx, n.ID())
}

func (h *HealthChecker) reconnect(ctx context.Context, nodeID uint) {
	if err := h.connector.ConnectNode(ctx, nodeID); err != nil {
		h.logger.Debugw("health reconnect failed", "node_id", nodeID, "error", err)
	}
}
