package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veilnet-io/veilnet/internal/application/subscription"
	userusecases "github.com/veilnet-io/veilnet/internal/application/user/usecases"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/token"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
	"github.com/veilnet-io/veilnet/internal/shared/utils"
)

// SubscriptionHandler serves unauthenticated subscription retrieval. The
// token in the path is the only credential.
type SubscriptionHandler struct {
	users    user.Repository
	issuer   *token.SubscriptionIssuer
	renderer *subscription.Renderer
	getUC    *userusecases.GetUserUseCase
	logger   logger.Interface
}

// NewSubscriptionHandler creates a subscription handler.
func NewSubscriptionHandler(
	users user.Repository,
	issuer *token.SubscriptionIssuer,
	renderer *subscription.Renderer,
	getUC *userusecases.GetUserUseCase,
	log logger.Interface,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		users:    users,
		issuer:   issuer,
		renderer: renderer,
		getUC:    getUC,
		logger:   log,
	}
}

// Fetch handles GET /:subPath/:token
func (h *SubscriptionHandler) Fetch(c *gin.Context) {
	u, err := h.resolveUser(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.renderer.Render(c.Request.Context(), u, c.Request.UserAgent())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	for key, value := range h.renderer.Headers(u) {
		c.Header(key, value)
	}
	c.Header("content-disposition", fmt.Sprintf("attachment; filename=%q", u.AccountNumber()))
	c.Data(http.StatusOK, result.ContentType, []byte(result.Body))
}

// Info handles GET /:subPath/:token/info
func (h *SubscriptionHandler) Info(c *gin.Context) {
	u, err := h.resolveUser(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.getUC.Execute(c.Request.Context(), u.AccountNumber())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	// The subscription info view never exposes the token itself.
	result.SubscriptionToken = ""
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

func (h *SubscriptionHandler) resolveUser(c *gin.Context) (*user.User, error) {
	account, issuedAt, err := h.issuer.Parse(c.Param("token"))
	if err != nil {
		return nil, err
	}
	u, err := h.users.GetByAccountNumber(c.Request.Context(), account)
	if err != nil {
		return nil, err
	}
	if err := h.issuer.ValidateFor(u, issuedAt); err != nil {
		return nil, err
	}
	return u, nil
}
