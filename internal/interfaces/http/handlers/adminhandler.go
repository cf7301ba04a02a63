package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veilnet-io/veilnet/internal/application/admin/usecases"
	"github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
	"github.com/veilnet-io/veilnet/internal/shared/utils"
)

// AdminHandler handles admin account management. All routes are sudo-gated
// by the router.
type AdminHandler struct {
	manageUC *usecases.ManageAdminsUseCase
	logger   logger.Interface
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(manageUC *usecases.ManageAdminsUseCase, log logger.Interface) *AdminHandler {
	return &AdminHandler{manageUC: manageUC, logger: log}
}

type createAdminRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	IsSudo   bool   `json:"is_sudo"`
}

// CreateAdmin handles POST /api/admin
func (h *AdminHandler) CreateAdmin(c *gin.Context) {
	var req createAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewBadRequestError(err.Error()))
		return
	}

	result, err := h.manageUC.Create(c.Request.Context(), usecases.CreateAdminCommand{
		Username: req.Username,
		Password: req.Password,
		IsSudo:   req.IsSudo,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, result, "Admin created successfully")
}

// GetAdmin handles GET /api/admin/:username
func (h *AdminHandler) GetAdmin(c *gin.Context) {
	result, err := h.manageUC.Get(c.Request.Context(), c.Param("username"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// ListAdmins handles GET /api/admins
func (h *AdminHandler) ListAdmins(c *gin.Context) {
	results, err := h.manageUC.List(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", results)
}

type updateAdminRequest struct {
	Password *string `json:"password"`
	IsSudo   *bool   `json:"is_sudo"`
}

// UpdateAdmin handles PUT /api/admin/:username
func (h *AdminHandler) UpdateAdmin(c *gin.Context) {
	var req updateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewBadRequestError(err.Error()))
		return
	}

	result, err := h.manageUC.Update(c.Request.Context(), usecases.UpdateAdminCommand{
		Username: c.Param("username"),
		Password: req.Password,
		IsSudo:   req.IsSudo,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Admin updated successfully", result)
}

// DeleteAdmin handles DELETE /api/admin/:username
func (h *AdminHandler) DeleteAdmin(c *gin.Context) {
	if err := h.manageUC.Delete(c.Request.Context(), c.Param("username")); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}
