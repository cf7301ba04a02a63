// Package usecases holds node-scoped application use cases.
package usecases

import (
	"context"
	"time"

	"github.com/veilnet-io/veilnet/internal/application/node/services"
	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/infrastructure/pki"
	"github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/goroutine"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

type CreateNodeCommand struct {
	Name             string
	Address          string
	RPCPort          int
	StatsPort        int
	UsageCoefficient float64
}

type NodeResult struct {
	ID               uint       `json:"id"`
	Name             string     `json:"name"`
	Address          string     `json:"address"`
	RPCPort          int        `json:"rpc_port"`
	StatsPort        int        `json:"stats_port"`
	UsageCoefficient float64    `json:"usage_coefficient"`
	Status           string     `json:"status"`
	Message          string     `json:"message,omitempty"`
	EngineVersion    string     `json:"engine_version,omitempty"`
	EngineStarted    *bool      `json:"engine_started,omitempty"`
	LastStatusChange time.Time  `json:"last_status_change"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewNodeResult maps a node aggregate to its API shape.
func NewNodeResult(n *node.Node) *NodeResult {
	return &NodeResult{
		ID:               n.ID(),
		Name:             n.Name(),
		Address:          n.Address(),
		RPCPort:          n.RPCPort(),
		StatsPort:        n.StatsPort(),
		UsageCoefficient: n.UsageCoefficient(),
		Status:           n.Status().String(),
		Message:          n.Message(),
		EngineVersion:    n.EngineVersion(),
		LastStatusChange: n.LastStatusChange(),
		CreatedAt:        n.CreatedAt(),
	}
}

type CreateNodeUseCase struct {
	nodes      node.Repository
	pki        *pki.Manager
	operations *services.Operations
	logger     logger.Interface
}

func NewCreateNodeUseCase(
	nodes node.Repository,
	pkiManager *pki.Manager,
	operations *services.Operations,
	log logger.Interface,
) *CreateNodeUseCase {
	return &CreateNodeUseCase{
		nodes:      nodes,
		pki:        pkiManager,
		operations: operations,
		logger:     log,
	}
}

// Execute registers the node, issues its mTLS material and kicks off the
// first connect attempt in the background.
func (uc *CreateNodeUseCase) Execute(ctx context.Context, cmd CreateNodeCommand) (*NodeResult, error) {
	uc.logger.Infow("executing create node use case", "name", cmd.Name)

	n, err := node.NewNode(cmd.Name, cmd.Address, cmd.RPCPort, cmd.StatsPort, cmd.UsageCoefficient)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if err := uc.nodes.Create(ctx, n); err != nil {
		return nil, err
	}

	if _, err := uc.pki.IssueNodeCerts(ctx, n); err != nil {
		uc.logger.Errorw("failed to issue node certificates", "node_id", n.ID(), "error", err)
		return nil, err
	}
	if err := uc.nodes.Update(ctx, n); err != nil {
		return nil, err
	}

	nodeID := n.ID()
	goroutine.SafeGo(uc.logger, "connect-node", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := uc.operations.ConnectNode(ctx, nodeID); err != nil {
			uc.logger.Warnw("initial node connect failed", "node_id", nodeID, "error", err)
		}
	})

	return NewNodeResult(n), nil
}
