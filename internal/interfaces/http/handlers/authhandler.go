package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veilnet-io/veilnet/internal/application/admin/usecases"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
	"github.com/veilnet-io/veilnet/internal/shared/utils"
)

// AuthHandler handles admin authentication.
type AuthHandler struct {
	loginUC *usecases.LoginUseCase
	logger  logger.Interface
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(loginUC *usecases.LoginUseCase, log logger.Interface) *AuthHandler {
	return &AuthHandler{loginUC: loginUC, logger: log}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/admin/token
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid login request body", "error", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "username and password are required")
		return
	}

	result, err := h.loginUC.Execute(c.Request.Context(), usecases.LoginCommand{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}
