package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veilnet-io/veilnet/internal/application/node/usecases"
	"github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
	"github.com/veilnet-io/veilnet/internal/shared/utils"
)

// ServiceHandler handles per-node inbound service configuration.
type ServiceHandler struct {
	manageUC *usecases.ManageServiceConfigsUseCase
	logger   logger.Interface
}

// NewServiceHandler creates a service config handler.
func NewServiceHandler(manageUC *usecases.ManageServiceConfigsUseCase, log logger.Interface) *ServiceHandler {
	return &ServiceHandler{manageUC: manageUC, logger: log}
}

type serviceConfigRequest struct {
	Name             string                 `json:"name" binding:"required"`
	Enabled          *bool                  `json:"enabled"`
	Protocol         string                 `json:"protocol" binding:"required"`
	ListenAddress    string                 `json:"listen_address"`
	ListenPort       int                    `json:"listen_port" binding:"required"`
	Network          string                 `json:"network"`
	Security         string                 `json:"security"`
	WSPath           string                 `json:"ws_path"`
	GRPCServiceName  string                 `json:"grpc_service_name"`
	SNI              string                 `json:"sni"`
	Fingerprint      string                 `json:"fingerprint"`
	RealityPublicKey string                 `json:"reality_public_key"`
	RealityShortID   string                 `json:"reality_short_id"`
	AdvancedProtocol map[string]interface{} `json:"advanced_protocol"`
	AdvancedStream   map[string]interface{} `json:"advanced_stream"`
	AdvancedTLS      map[string]interface{} `json:"advanced_tls"`
	AdvancedReality  map[string]interface{} `json:"advanced_reality"`
	AdvancedSniffing map[string]interface{} `json:"advanced_sniffing"`
}

func (r *serviceConfigRequest) toCommand(nodeID uint) usecases.ServiceConfigCommand {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return usecases.ServiceConfigCommand{
		NodeID:           nodeID,
		Name:             r.Name,
		Enabled:          enabled,
		Protocol:         r.Protocol,
		ListenAddress:    r.ListenAddress,
		ListenPort:       r.ListenPort,
		Network:          r.Network,
		Security:         r.Security,
		WSPath:           r.WSPath,
		GRPCServiceName:  r.GRPCServiceName,
		SNI:              r.SNI,
		Fingerprint:      r.Fingerprint,
		RealityPublicKey: r.RealityPublicKey,
		RealityShortID:   r.RealityShortID,
		AdvancedProtocol: r.AdvancedProtocol,
		AdvancedStream:   r.AdvancedStream,
		AdvancedTLS:      r.AdvancedTLS,
		AdvancedReality:  r.AdvancedReality,
		AdvancedSniffing: r.AdvancedSniffing,
	}
}

// CreateService handles POST /api/node/:id/service
func (h *ServiceHandler) CreateService(c *gin.Context) {
	nodeID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req serviceConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewBadRequestError(err.Error()))
		return
	}

	result, err := h.manageUC.Create(c.Request.Context(), req.toCommand(nodeID))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, result, "Service created successfully")
}

// ListServices handles GET /api/node/:id/services
func (h *ServiceHandler) ListServices(c *gin.Context) {
	nodeID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	results, err := h.manageUC.ListByNode(c.Request.Context(), nodeID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", results)
}

// GetService handles GET /api/service/:id
func (h *ServiceHandler) GetService(c *gin.Context) {
	serviceID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	result, err := h.manageUC.Get(c.Request.Context(), serviceID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// UpdateService handles PUT /api/service/:id
func (h *ServiceHandler) UpdateService(c *gin.Context) {
	serviceID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req serviceConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewBadRequestError(err.Error()))
		return
	}

	// NodeID is taken from the stored row; the update path ignores it.
	result, err := h.manageUC.Update(c.Request.Context(), serviceID, req.toCommand(0))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Service updated successfully", result)
}

// DeleteService handles DELETE /api/service/:id
func (h *ServiceHandler) DeleteService(c *gin.Context) {
	serviceID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if err := h.manageUC.Delete(c.Request.Context(), serviceID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}
