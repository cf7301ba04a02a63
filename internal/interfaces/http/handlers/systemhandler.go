package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	nodeservices "github.com/veilnet-io/veilnet/internal/application/node/services"
	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/sysmetrics"
	"github.com/veilnet-io/veilnet/internal/shared/goroutine"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
	"github.com/veilnet-io/veilnet/internal/shared/utils"
)

// SystemHandler serves the panel overview stats and fleet-wide actions.
type SystemHandler struct {
	users      user.Repository
	nodes      node.Repository
	sampler    *sysmetrics.Sampler
	operations *nodeservices.Operations
	logger     logger.Interface
}

// NewSystemHandler creates a system handler.
func NewSystemHandler(
	users user.Repository,
	nodes node.Repository,
	sampler *sysmetrics.Sampler,
	operations *nodeservices.Operations,
	log logger.Interface,
) *SystemHandler {
	return &SystemHandler{
		users:      users,
		nodes:      nodes,
		sampler:    sampler,
		operations: operations,
		logger:     log,
	}
}

type systemStatsResponse struct {
	TotalUsers     int `json:"total_users"`
	ActiveUsers    int `json:"active_users"`
	OnHoldUsers    int `json:"on_hold_users"`
	LimitedUsers   int `json:"limited_users"`
	ExpiredUsers   int `json:"expired_users"`
	DisabledUsers  int `json:"disabled_users"`
	TotalNodes     int `json:"total_nodes"`
	ConnectedNodes int `json:"connected_nodes"`

	IncomingBandwidth      uint64 `json:"incoming_bandwidth"`
	OutgoingBandwidth      uint64 `json:"outgoing_bandwidth"`
	IncomingBandwidthSpeed uint64 `json:"incoming_bandwidth_speed"`
	OutgoingBandwidthSpeed uint64 `json:"outgoing_bandwidth_speed"`
}

// Stats handles GET /api/system
func (h *SystemHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := h.users.List(ctx)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	nodes, err := h.nodes.List(ctx)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	resp := systemStatsResponse{TotalUsers: len(users), TotalNodes: len(nodes)}
	for _, u := range users {
		switch u.Status() {
		case user.StatusActive:
			resp.ActiveUsers++
		case user.StatusOnHold:
			resp.OnHoldUsers++
		case user.StatusLimited:
			resp.LimitedUsers++
		case user.StatusExpired:
			resp.ExpiredUsers++
		case user.StatusDisabled:
			resp.DisabledUsers++
		}
	}
	for _, n := range nodes {
		if n.Status() == node.StatusConnected {
			resp.ConnectedNodes++
		}
	}

	sample := h.sampler.Latest()
	resp.IncomingBandwidth = sample.IncomingBytes
	resp.OutgoingBandwidth = sample.OutgoingBytes
	resp.IncomingBandwidthSpeed = sample.IncomingRate
	resp.OutgoingBandwidthSpeed = sample.OutgoingRate

	utils.SuccessResponse(c, http.StatusOK, "", resp)
}

// RestartCores handles POST /core/restart, pushing a fresh config to every
// non-disabled node in the background.
func (h *SystemHandler) RestartCores(c *gin.Context) {
	nodes, err := h.nodes.List(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	for _, n := range nodes {
		if n.Status() == node.StatusDisabled {
			continue
		}
		nodeID := n.ID()
		goroutine.SafeGo(h.logger, "restart-core", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := h.operations.RestartNode(ctx, nodeID); err != nil {
				h.logger.Warnw("core restart failed", "node_id", nodeID, "error", err)
			}
		})
	}

	utils.SuccessResponse(c, http.StatusAccepted, "Core restart scheduled", nil)
}
