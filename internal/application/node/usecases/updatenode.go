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

type UpdateNodeCommand struct {
	NodeID           uint
	Name             *string
	Address          *string
	RPCPort          *int
	StatsPort        *int
	UsageCoefficient *float64
	// Enabled toggles the disabled state when present.
	Enabled *bool
}

type UpdateNodeUseCase struct {
	nodes      node.Repository
	pki        *pki.Manager
	operations *services.Operations
	logger     logger.Interface
}

func NewUpdateNodeUseCase(
	nodes node.Repository,
	pkiManager *pki.Manager,
	operations *services.Operations,
	log logger.Interface,
) *UpdateNodeUseCase {
	return &UpdateNodeUseCase{
		nodes:      nodes,
		pki:        pkiManager,
		operations: operations,
		logger:     log,
	}
}

// Execute patches the node. Address changes reissue certificates (the SAN
// set embeds the address) and trigger a reconnect.
func (uc *UpdateNodeUseCase) Execute(ctx context.Context, cmd UpdateNodeCommand) (*NodeResult, error) {
	n, err := uc.nodes.GetByID(ctx, cmd.NodeID)
	if err != nil {
		return nil, err
	}

	addressChanged := false
	if cmd.Name != nil {
		if err := n.UpdateName(*cmd.Name); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
		addressChanged = true
	}
	if cmd.Address != nil || cmd.RPCPort != nil || cmd.StatsPort != nil {
		address := n.Address()
		rpcPort := n.RPCPort()
		statsPort := n.StatsPort()
		if cmd.Address != nil {
			address = *cmd.Address
		}
		if cmd.RPCPort != nil {
			rpcPort = *cmd.RPCPort
		}
		if cmd.StatsPort != nil {
			statsPort = *cmd.StatsPort
		}
		if err := n.UpdateAddress(address, rpcPort, statsPort); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
		addressChanged = true
	}
	if cmd.UsageCoefficient != nil {
		if err := n.UpdateUsageCoefficient(*cmd.UsageCoefficient); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}

	if addressChanged {
		if _, err := uc.pki.Rotate(ctx, n); err != nil {
			return nil, err
		}
	}
	if err := uc.nodes.Update(ctx, n); err != nil {
		return nil, err
	}

	if cmd.Enabled != nil {
		if *cmd.Enabled && n.Status() == node.StatusDisabled {
			if err := uc.operations.EnableNode(ctx, n.ID()); err != nil {
				return nil, err
			}
		} else if !*cmd.Enabled && n.Status() != node.StatusDisabled {
			if err := uc.operations.DisableNode(ctx, n.ID()); err != nil {
				return nil, err
			}
		}
	} else if addressChanged && n.Status() != node.StatusDisabled {
		nodeID := n.ID()
		goroutine.SafeGo(uc.logger, "reconnect-node", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := uc.operations.ConnectNode(ctx, nodeID); err != nil {
				uc.logger.Warnw("reconnect after update failed", "node_id", nodeID, "error", err)
			}
		})
	}

	fresh, err := uc.nodes.GetByID(ctx, cmd.NodeID)
	if err != nil {
		return nil, err
	}
	return NewNodeResult(fresh), nil
}
