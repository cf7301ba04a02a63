package services

import (
	"context"
	"fmt"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/nodeclient"
	"github.com/veilnet-io/veilnet/internal/infrastructure/pki"
	apperrors "github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// Operations reconciles worker nodes against the database: it builds the
// full engine config for a node and pushes it over the node's client.
// Every method is idempotent; reconciliation is always a full-config push,
// never a per-user patch.
type Operations struct {
	nodes    node.Repository
	services node.ServiceConfigRepository
	users    user.Repository
	registry *nodeclient.Registry
	builder  *ConfigBuilder
	pki      *pki.Manager
	logger   logger.Interface
}

// NewOperations creates the orchestration service.
func NewOperations(
	nodes node.Repository,
	services node.ServiceConfigRepository,
	users user.Repository,
	registry *nodeclient.Registry,
	builder *ConfigBuilder,
	pkiManager *pki.Manager,
	log logger.Interface,
) *Operations {
	return &Operations{
		nodes:    nodes,
		services: services,
		users:    users,
		registry: registry,
		builder:  builder,
		pki:      pkiManager,
		logger:   log,
	}
}

// ConnectNode claims a session on the node and pushes the current config.
// Node status transitions are persisted whether the attempt succeeds or
// fails; overlapping attempts for the same node collapse into one.
func (o *Operations) ConnectNode(ctx context.Context, nodeID uint) error {
	if !o.registry.BeginConnect(nodeID) {
		o.logger.Debugw("connect already in flight", "node_id", nodeID)
		return nil
	}
	defer o.registry.EndConnect(nodeID)

	n, err := o.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if n.Status() == node.StatusDisabled {
		return nil
	}

	n.MarkConnecting()
	if err := o.nodes.Update(ctx, n); err != nil {
		return err
	}

	client, err := o.clientFor(ctx, n)
	if err != nil {
		return o.markError(ctx, n, err)
	}
	info, err := client.Connect(ctx)
	if err != nil {
		return o.markError(ctx, n, err)
	}

	config, err := o.buildConfig(ctx, n)
	if err != nil {
		return o.markError(ctx, n, err)
	}
	if err := client.Start(ctx, config); err != nil {
		return o.markError(ctx, n, err)
	}

	n.MarkConnected(info.EngineVersion)
	if err := o.nodes.Update(ctx, n); err != nil {
		return err
	}
	o.logger.Infow("node connected", "node_id", nodeID, "engine_version", info.EngineVersion)
	return nil
}

// RestartNode rebuilds the config from the current snapshot and pushes it
// to an already connected node.
func (o *Operations) RestartNode(ctx context.Context, nodeID uint) error {
	n, err := o.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if n.Status() != node.StatusConnected {
		// Not connected yet; a connect carries the fresh config anyway.
		return o.ConnectNode(ctx, nodeID)
	}

	client := o.registry.Get(nodeID)
	if client == nil || !client.Connected() {
		return o.ConnectNode(ctx, nodeID)
	}

	config, err := o.buildConfig(ctx, n)
	if err != nil {
		return o.markError(ctx, n, err)
	}
	if err := client.Restart(ctx, config); err != nil {
		if markErr := o.markError(ctx, n, err); markErr != nil {
			return markErr
		}
		return err
	}
	o.logger.Infow("node config reapplied", "node_id", nodeID)
	return nil
}

// ActivateUserOnNode binds the user's credentials to the node and restarts
// it with the enlarged user set. A previous binding on another node is
// released and that node restarted without the user.
func (o *Operations) ActivateUserOnNode(ctx context.Context, accountNumber string, nodeID uint) error {
	u, err := o.users.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return err
	}
	n, err := o.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if !n.Status().IsUsable() {
		return apperrors.NewConflictError("node is disabled")
	}
	if !u.Status().CanBeActivatedOnNode() {
		return apperrors.NewConflictError(fmt.Sprintf("user status %q cannot be activated on a node", u.Status()))
	}

	previous := u.ActiveNodeID()
	if previous != nil && *previous == nodeID {
		// Idempotent re-activation still reconciles the node.
		return o.RestartNode(ctx, nodeID)
	}

	u.SetActiveNode(nodeID)
	if err := o.users.Update(ctx, u); err != nil {
		return err
	}

	if previous != nil {
		if err := o.RestartNode(ctx, *previous); err != nil {
			o.logger.Warnw("failed to reconcile previous node after activation",
				"node_id", *previous, "user_id", u.ID(), "error", err)
		}
	}
	return o.RestartNode(ctx, nodeID)
}

// DeactivateUser clears the binding first, then restarts the old node so
// the rebuilt config omits the user.
func (o *Operations) DeactivateUser(ctx context.Context, accountNumber string) error {
	u, err := o.users.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return err
	}
	previous := u.ActiveNodeID()
	if previous == nil {
		return nil
	}

	u.ClearActiveNode()
	if err := o.users.Update(ctx, u); err != nil {
		return err
	}
	return o.RestartNode(ctx, *previous)
}

// ReapplyUser reconciles the user's active node after a status or credential
// change. Users no longer activatable are deactivated instead.
func (o *Operations) ReapplyUser(ctx context.Context, userID uint) error {
	u, err := o.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	active := u.ActiveNodeID()
	if active == nil {
		return nil
	}
	if !u.Status().CanBeActivatedOnNode() {
		return o.DeactivateUser(ctx, u.AccountNumber())
	}
	return o.RestartNode(ctx, *active)
}

// DisableNode takes the node out of service: disconnect, drop the client,
// persist disabled.
func (o *Operations) DisableNode(ctx context.Context, nodeID uint) error {
	n, err := o.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	o.registry.Remove(ctx, nodeID)
	n.Disable()
	if err := o.nodes.Update(ctx, n); err != nil {
		return err
	}
	o.logger.Infow("node disabled", "node_id", nodeID)
	return nil
}

// EnableNode returns a disabled node to service and starts a connect.
func (o *Operations) EnableNode(ctx context.Context, nodeID uint) error {
	n, err := o.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if err := n.Enable(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if err := o.nodes.Update(ctx, n); err != nil {
		return err
	}
	return o.ConnectNode(ctx, nodeID)
}

// clientFor returns the node's client, issuing mTLS material on first use.
func (o *Operations) clientFor(ctx context.Context, n *node.Node) (*nodeclient.Client, error) {
	if n.ClientCertPEM() == "" || n.ClientKeyPEM() == "" {
		if _, err := o.pki.IssueNodeCerts(ctx, n); err != nil {
			return nil, err
		}
		if err := o.nodes.Update(ctx, n); err != nil {
			return nil, err
		}
	}
	return o.registry.GetOrCreate(n)
}

// buildConfig renders the node's config from the current DB snapshot.
func (o *Operations) buildConfig(ctx context.Context, n *node.Node) (string, error) {
	users, err := o.users.ListByActiveNode(ctx, n.ID())
	if err != nil {
		return "", err
	}
	activatable := make([]*user.User, 0, len(users))
	for _, u := range users {
		if u.Status().CanBeActivatedOnNode() {
			activatable = append(activatable, u)
		}
	}

	services, err := o.services.ListByNode(ctx, n.ID())
	if err != nil {
		return "", err
	}
	return o.builder.Build(n, activatable, services)
}

// markError records the failure on the node row. The original error is
// wrapped as unavailable so API callers see a 503.
func (o *Operations) markError(ctx context.Context, n *node.Node, cause error) error {
	detail := cause.Error()
	if apiErr, ok := cause.(*nodeclient.APIError); ok {
		detail = apiErr.Detail
	}
	n.MarkError(detail)
	if err := o.nodes.Update(ctx, n); err != nil {
		o.logger.Errorw("failed to persist node error state", "node_id", n.ID(), "error", err)
	}
	o.logger.Warnw("node operation failed", "node_id", n.ID(), "detail", detail)
	return apperrors.NewUnavailableError("node unavailable", detail)
}
