package usecases

import (
	"context"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/nodeclient"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

type DeleteNodeUseCase struct {
	nodes    node.Repository
	certs    node.CertificateRepository
	users    user.Repository
	registry *nodeclient.Registry
	logger   logger.Interface
}

func NewDeleteNodeUseCase(
	nodes node.Repository,
	certs node.CertificateRepository,
	users user.Repository,
	registry *nodeclient.Registry,
	log logger.Interface,
) *DeleteNodeUseCase {
	return &DeleteNodeUseCase{
		nodes:    nodes,
		certs:    certs,
		users:    users,
		registry: registry,
		logger:   log,
	}
}

// Execute removes the node. Users bound to it are detached first so the
// active-node reference never dangles; the node's client and certificates
// go with it. Usage history rows stay for reporting.
func (uc *DeleteNodeUseCase) Execute(ctx context.Context, nodeID uint) error {
	uc.logger.Infow("executing delete node use case", "node_id", nodeID)

	if _, err := uc.nodes.GetByID(ctx, nodeID); err != nil {
		return err
	}

	bound, err := uc.users.ListByActiveNode(ctx, nodeID)
	if err != nil {
		return err
	}
	for _, u := range bound {
		u.ClearActiveNode()
		if err := uc.users.Update(ctx, u); err != nil {
			uc.logger.Errorw("failed to detach user from node", "user_id", u.ID(), "node_id", nodeID, "error", err)
		}
	}

	uc.registry.Remove(ctx, nodeID)

	if err := uc.certs.DeleteByNode(ctx, nodeID); err != nil {
		uc.logger.Warnw("failed to delete node certificates", "node_id", nodeID, "error", err)
	}
	if err := uc.nodes.Delete(ctx, nodeID); err != nil {
		return err
	}

	uc.logger.Infow("node deleted", "node_id", nodeID, "detached_users", len(bound))
	return nil
}
