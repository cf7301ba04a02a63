package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	nodeservices "github.com/veilnet-io/veilnet/internal/application/node/services"
	"github.com/veilnet-io/veilnet/internal/application/user/usecases"
	"github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
	"github.com/veilnet-io/veilnet/internal/shared/utils"
)

// UserHandler handles HTTP requests for user operations.
type UserHandler struct {
	createUC   *usecases.CreateUserUseCase
	updateUC   *usecases.UpdateUserUseCase
	getUC      *usecases.GetUserUseCase
	listUC     *usecases.ListUsersUseCase
	deleteUC   *usecases.DeleteUserUseCase
	resetUC    *usecases.ResetUserUsageUseCase
	revokeUC   *usecases.RevokeSubscriptionUseCase
	nextPlanUC *usecases.ApplyNextPlanUseCase
	operations *nodeservices.Operations
	logger     logger.Interface
}

// NewUserHandler creates a user handler.
func NewUserHandler(
	createUC *usecases.CreateUserUseCase,
	updateUC *usecases.UpdateUserUseCase,
	getUC *usecases.GetUserUseCase,
	listUC *usecases.ListUsersUseCase,
	deleteUC *usecases.DeleteUserUseCase,
	resetUC *usecases.ResetUserUsageUseCase,
	revokeUC *usecases.RevokeSubscriptionUseCase,
	nextPlanUC *usecases.ApplyNextPlanUseCase,
	operations *nodeservices.Operations,
	log logger.Interface,
) *UserHandler {
	return &UserHandler{
		createUC:   createUC,
		updateUC:   updateUC,
		getUC:      getUC,
		listUC:     listUC,
		deleteUC:   deleteUC,
		resetUC:    resetUC,
		revokeUC:   revokeUC,
		nextPlanUC: nextPlanUC,
		operations: operations,
		logger:     log,
	}
}

type createUserRequest struct {
	AccountNumber        string                `json:"account_number" binding:"required"`
	Status               string                `json:"status"`
	DataLimit            *int64                `json:"data_limit"`
	ExpireAt             *time.Time            `json:"expire_at"`
	OnHoldExpireDuration *int64                `json:"on_hold_expire_duration"`
	OnHoldTimeout        *time.Time            `json:"on_hold_timeout"`
	ResetStrategy        string                `json:"data_limit_reset_strategy"`
	AutoDeleteInDays     *int                  `json:"auto_delete_in_days"`
	Proxies              []usecases.ProxyInput `json:"proxies"`
}

// CreateUser handles POST /api/user
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for create user", "error", err)
		utils.ErrorResponseWithError(c, errors.NewBadRequestError(err.Error()))
		return
	}

	adminID := currentAdminID(c)
	result, err := h.createUC.Execute(c.Request.Context(), usecases.CreateUserCommand{
		AccountNumber:        req.AccountNumber,
		AdminID:              adminID,
		Status:               req.Status,
		DataLimit:            req.DataLimit,
		ExpireAt:             req.ExpireAt,
		OnHoldExpireDuration: req.OnHoldExpireDuration,
		OnHoldTimeout:        req.OnHoldTimeout,
		ResetStrategy:        req.ResetStrategy,
		AutoDeleteInDays:     req.AutoDeleteInDays,
		Proxies:              req.Proxies,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result, "User created successfully")
}

// GetUser handles GET /api/user/:account
func (h *UserHandler) GetUser(c *gin.Context) {
	result, err := h.getUC.Execute(c.Request.Context(), c.Param("account"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// ListUsers handles GET /api/users?status=
func (h *UserHandler) ListUsers(c *gin.Context) {
	results, err := h.listUC.Execute(c.Request.Context(), c.Query("status"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", results)
}

type updateUserRequest struct {
	Status               *string                          `json:"status"`
	DataLimit            patchField[int64]                `json:"data_limit"`
	ExpireAt             patchField[time.Time]            `json:"expire_at"`
	OnHoldExpireDuration *int64                           `json:"on_hold_expire_duration"`
	OnHoldTimeout        *time.Time                       `json:"on_hold_timeout"`
	ResetStrategy        *string                          `json:"data_limit_reset_strategy"`
	AutoDeleteInDays     patchField[int]                  `json:"auto_delete_in_days"`
	Proxies              *[]usecases.ProxyInput           `json:"proxies"`
	NextPlan             patchField[usecases.NextPlanResult] `json:"next_plan"`
}

// UpdateUser handles PUT /api/user/:account
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for update user", "error", err)
		utils.ErrorResponseWithError(c, errors.NewBadRequestError(err.Error()))
		return
	}

	cmd := usecases.UpdateUserCommand{
		AccountNumber:        c.Param("account"),
		Status:               req.Status,
		OnHoldExpireDuration: req.OnHoldExpireDuration,
		OnHoldTimeout:        req.OnHoldTimeout,
		ResetStrategy:        req.ResetStrategy,
		Proxies:              req.Proxies,
	}
	if req.DataLimit.Present {
		cmd.DataLimit = &req.DataLimit.Value
	}
	if req.ExpireAt.Present {
		cmd.ExpireAt = &req.ExpireAt.Value
	}
	if req.AutoDeleteInDays.Present {
		cmd.AutoDeleteInDays = &req.AutoDeleteInDays.Value
	}
	if req.NextPlan.Present {
		cmd.NextPlan = &req.NextPlan.Value
	}

	result, err := h.updateUC.Execute(c.Request.Context(), cmd)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "User updated successfully", result)
}

// DeleteUser handles DELETE /api/user/:account
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.deleteUC.Execute(c.Request.Context(), c.Param("account")); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}

// ResetUsage handles POST /api/user/:account/reset
func (h *UserHandler) ResetUsage(c *gin.Context) {
	result, err := h.resetUC.Execute(c.Request.Context(), c.Param("account"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Usage reset", result)
}

// RevokeSubscription handles POST /api/user/:account/revoke_sub
func (h *UserHandler) RevokeSubscription(c *gin.Context) {
	result, err := h.revokeUC.Execute(c.Request.Context(), c.Param("account"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Subscription revoked", result)
}

// ApplyNextPlan handles POST /api/user/:account/active-next-plan
func (h *UserHandler) ApplyNextPlan(c *gin.Context) {
	result, err := h.nextPlanUC.Execute(c.Request.Context(), c.Param("account"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Next plan applied", result)
}

// Usage handles GET /api/user/:account/usage?start=&end=
func (h *UserHandler) Usage(c *gin.Context) {
	from, to, err := parseUsageRange(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	points, err := h.getUC.Usage(c.Request.Context(), c.Param("account"), from, to)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", points)
}

type activateNodeRequest struct {
	NodeID uint `json:"node_id" binding:"required"`
}

// ActivateNode handles POST /api/user/:account/node/activate
func (h *UserHandler) ActivateNode(c *gin.Context) {
	var req activateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewBadRequestError("node_id is required"))
		return
	}

	account := c.Param("account")
	if err := h.operations.ActivateUserOnNode(c.Request.Context(), account, req.NodeID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.getUC.Execute(c.Request.Context(), account)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "User activated on node", result)
}

// DeactivateNode handles POST /api/user/:account/node/deactivate
func (h *UserHandler) DeactivateNode(c *gin.Context) {
	account := c.Param("account")
	if err := h.operations.DeactivateUser(c.Request.Context(), account); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.getUC.Execute(c.Request.Context(), account)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "User deactivated", result)
}

// parseUsageRange reads the optional start/end RFC3339 query parameters,
// defaulting to the last 30 days.
func parseUsageRange(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := c.Query("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.NewBadRequestError("invalid start parameter")
		}
		from = t
	}
	if raw := c.Query("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.NewBadRequestError("invalid end parameter")
		}
		to = t
	}
	return from, to, nil
}

// currentAdminID reads the authenticated admin from the request context.
func currentAdminID(c *gin.Context) *uint {
	if v, ok := c.Get("admin_id"); ok {
		if id, ok := v.(uint); ok {
			return &id
		}
	}
	return nil
}
