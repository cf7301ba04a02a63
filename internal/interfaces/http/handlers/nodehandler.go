package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	nodeservices "github.com/veilnet-io/veilnet/internal/application/node/services"
	"github.com/veilnet-io/veilnet/internal/application/node/usecases"
	"github.com/veilnet-io/veilnet/internal/infrastructure/nodeclient"
	"github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/goroutine"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
	"github.com/veilnet-io/veilnet/internal/shared/utils"
)

// NodeHandler handles worker node management.
type NodeHandler struct {
	createUC   *usecases.CreateNodeUseCase
	updateUC   *usecases.UpdateNodeUseCase
	deleteUC   *usecases.DeleteNodeUseCase
	getUC      *usecases.GetNodeUseCase
	listUC     *usecases.ListNodesUseCase
	operations *nodeservices.Operations
	registry   *nodeclient.Registry
	logger     logger.Interface

	upgrader websocket.Upgrader
}

// NewNodeHandler creates a node handler.
func NewNodeHandler(
	createUC *usecases.CreateNodeUseCase,
	updateUC *usecases.UpdateNodeUseCase,
	deleteUC *usecases.DeleteNodeUseCase,
	getUC *usecases.GetNodeUseCase,
	listUC *usecases.ListNodesUseCase,
	operations *nodeservices.Operations,
	registry *nodeclient.Registry,
	log logger.Interface,
) *NodeHandler {
	return &NodeHandler{
		createUC:   createUC,
		updateUC:   updateUC,
		deleteUC:   deleteUC,
		getUC:      getUC,
		listUC:     listUC,
		operations: operations,
		registry:   registry,
		logger:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Auth already happened in middleware; origin checks do not
			// apply to panel-internal tooling.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

type createNodeRequest struct {
	Name             string  `json:"name" binding:"required"`
	Address          string  `json:"address" binding:"required"`
	RPCPort          int     `json:"rpc_port"`
	StatsPort        int     `json:"stats_port"`
	UsageCoefficient float64 `json:"usage_coefficient"`
}

// CreateNode handles POST /api/node
func (h *NodeHandler) CreateNode(c *gin.Context) {
	var req createNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewBadRequestError(err.Error()))
		return
	}

	result, err := h.createUC.Execute(c.Request.Context(), usecases.CreateNodeCommand{
		Name:             req.Name,
		Address:          req.Address,
		RPCPort:          req.RPCPort,
		StatsPort:        req.StatsPort,
		UsageCoefficient: req.UsageCoefficient,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, result, "Node created successfully")
}

// GetNode handles GET /api/node/:id
func (h *NodeHandler) GetNode(c *gin.Context) {
	nodeID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	result, err := h.getUC.Execute(c.Request.Context(), nodeID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// ListNodes handles GET /api/nodes
func (h *NodeHandler) ListNodes(c *gin.Context) {
	results, err := h.listUC.Execute(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", results)
}

type updateNodeRequest struct {
	Name             *string  `json:"name"`
	Address          *string  `json:"address"`
	RPCPort          *int     `json:"rpc_port"`
	StatsPort        *int     `json:"stats_port"`
	UsageCoefficient *float64 `json:"usage_coefficient"`
	Enabled          *bool    `json:"enabled"`
}

// UpdateNode handles PUT /api/node/:id
func (h *NodeHandler) UpdateNode(c *gin.Context) {
	nodeID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req updateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewBadRequestError(err.Error()))
		return
	}

	result, err := h.updateUC.Execute(c.Request.Context(), usecases.UpdateNodeCommand{
		NodeID:           nodeID,
		Name:             req.Name,
		Address:          req.Address,
		RPCPort:          req.RPCPort,
		StatsPort:        req.StatsPort,
		UsageCoefficient: req.UsageCoefficient,
		Enabled:          req.Enabled,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Node updated successfully", result)
}

// DeleteNode handles DELETE /api/node/:id
func (h *NodeHandler) DeleteNode(c *gin.Context) {
	nodeID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if err := h.deleteUC.Execute(c.Request.Context(), nodeID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}

// Reconnect handles POST /api/node/:id/reconnect. The connect runs in the
// background; the endpoint acknowledges the request immediately.
func (h *NodeHandler) Reconnect(c *gin.Context) {
	nodeID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	goroutine.SafeGo(h.logger, "reconnect-node", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := h.operations.ConnectNode(ctx, nodeID); err != nil {
			h.logger.Warnw("node reconnect failed", "node_id", nodeID, "error", err)
		}
	})

	utils.SuccessResponse(c, http.StatusAccepted, "Reconnect scheduled", nil)
}

// Usage handles GET /api/node/:id/usage?start=&end=
func (h *NodeHandler) Usage(c *gin.Context) {
	nodeID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	from, to, err := parseUsageRange(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	points, err := h.getUC.Usage(c.Request.Context(), nodeID, from, to)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", points)
}

// Logs handles GET /api/node/:id/logs, upgrading to a WebSocket that relays
// the node's engine log stream.
func (h *NodeHandler) Logs(c *gin.Context) {
	nodeID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	client := h.registry.Get(nodeID)
	if client == nil || !client.Connected() {
		utils.ErrorResponseWithError(c, errors.NewUnavailableError("node is not connected", ""))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "node_id", nodeID, "error", err)
		return
	}
	defer conn.Close()

	sub := client.Logs().Subscribe()
	defer sub.Close()

	ctx := c.Request.Context()
	for {
		lines, err := sub.Wait(ctx)
		if err != nil {
			return
		}
		for _, line := range lines {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		}
	}
}
