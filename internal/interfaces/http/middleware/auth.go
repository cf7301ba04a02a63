package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/veilnet-io/veilnet/internal/domain/admin"
	"github.com/veilnet-io/veilnet/internal/infrastructure/auth"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
	"github.com/veilnet-io/veilnet/internal/shared/utils"
)

// Context keys set by RequireAuth.
const (
	ContextKeyAdminID  = "admin_id"
	ContextKeyUsername = "admin_username"
	ContextKeyIsSudo   = "is_sudo"
)

type AuthMiddleware struct {
	jwtService *auth.JWTService
	admins     admin.Repository
	logger     logger.Interface
}

func NewAuthMiddleware(jwtService *auth.JWTService, admins admin.Repository, logger logger.Interface) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		admins:     admins,
		logger:     logger,
	}
}

// RequireAuth verifies the bearer token, checks the admin still exists and
// the token postdates the last password reset, then stashes the identity in
// the request context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "missing authorization token")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := m.jwtService.Verify(parts[1])
		if err != nil {
			m.logger.Warnw("failed to verify token", "error", err)
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		adminID, err := strconv.ParseUint(claims.Subject, 10, 32)
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid token subject")
			c.Abort()
			return
		}

		a, err := m.admins.GetByID(c.Request.Context(), uint(adminID))
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "admin no longer exists")
			c.Abort()
			return
		}

		if err := m.jwtService.ValidateFreshness(a, claims); err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "token invalidated by password reset")
			c.Abort()
			return
		}

		c.Set(ContextKeyAdminID, a.ID())
		c.Set(ContextKeyUsername, a.Username())
		c.Set(ContextKeyIsSudo, claims.IsSudo || m.jwtService.IsEnvSudo(a.Username()))

		c.Next()
	}
}

// RequireSudo gates endpoints reserved for super admins. Must run after
// RequireAuth.
func (m *AuthMiddleware) RequireSudo() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextKeyIsSudo) {
			utils.ErrorResponse(c, http.StatusForbidden, "sudo privileges required")
			c.Abort()
			return
		}
		c.Next()
	}
}
