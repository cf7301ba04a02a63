// Package http wires the gin engine, routes and middleware for the panel
// API and the subscription endpoint.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/veilnet-io/veilnet/internal/interfaces/http/handlers"
	"github.com/veilnet-io/veilnet/internal/interfaces/http/middleware"
	"github.com/veilnet-io/veilnet/internal/shared/config"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
	"github.com/veilnet-io/veilnet/internal/shared/utils"
)

// Router owns the gin engine and the handler set.
type Router struct {
	engine *gin.Engine

	authHandler         *handlers.AuthHandler
	userHandler         *handlers.UserHandler
	adminHandler        *handlers.AdminHandler
	nodeHandler         *handlers.NodeHandler
	serviceHandler      *handlers.ServiceHandler
	subscriptionHandler *handlers.SubscriptionHandler
	systemHandler       *handlers.SystemHandler
	authMiddleware      *middleware.AuthMiddleware

	subPath        string
	allowedOrigins []string
	logger         logger.Interface
}

// NewRouter creates the router. Gin mode must be set by the caller before
// the engine is created.
func NewRouter(
	cfg *config.ServerConfig,
	subCfg *config.SubscriptionConfig,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	adminHandler *handlers.AdminHandler,
	nodeHandler *handlers.NodeHandler,
	serviceHandler *handlers.ServiceHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
	systemHandler *handlers.SystemHandler,
	authMiddleware *middleware.AuthMiddleware,
	log logger.Interface,
) *Router {
	subPath := subCfg.Path
	if subPath == "" {
		subPath = "sub"
	}

	return &Router{
		engine:              gin.New(),
		authHandler:         authHandler,
		userHandler:         userHandler,
		adminHandler:        adminHandler,
		nodeHandler:         nodeHandler,
		serviceHandler:      serviceHandler,
		subscriptionHandler: subscriptionHandler,
		systemHandler:       systemHandler,
		authMiddleware:      authMiddleware,
		subPath:             subPath,
		allowedOrigins:      cfg.AllowedOrigins,
		logger:              log,
	}
}

// SetupRoutes configures all HTTP routes.
func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.Logger(r.logger))
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.CORS(r.allowedOrigins))

	r.engine.GET("/health", func(c *gin.Context) {
		utils.SuccessResponse(c, 200, "ok", nil)
	})

	// Unauthenticated: admin login and subscription retrieval.
	r.engine.POST("/api/admin/token", r.authHandler.Login)

	sub := r.engine.Group("/" + r.subPath)
	{
		sub.GET("/:token", r.subscriptionHandler.Fetch)
		sub.GET("/:token/info", r.subscriptionHandler.Info)
	}

	api := r.engine.Group("/api")
	api.Use(r.authMiddleware.RequireAuth())
	{
		api.GET("/system", r.systemHandler.Stats)

		api.POST("/user", r.userHandler.CreateUser)
		api.GET("/users", r.userHandler.ListUsers)
		api.GET("/user/:account", r.userHandler.GetUser)
		api.PUT("/user/:account", r.userHandler.UpdateUser)
		api.DELETE("/user/:account", r.userHandler.DeleteUser)
		api.GET("/user/:account/usage", r.userHandler.Usage)
		api.POST("/user/:account/reset", r.userHandler.ResetUsage)
		api.POST("/user/:account/revoke_sub", r.userHandler.RevokeSubscription)
		api.POST("/user/:account/active-next-plan", r.userHandler.ApplyNextPlan)
		api.POST("/user/:account/node/activate", r.userHandler.ActivateNode)
		api.POST("/user/:account/node/deactivate", r.userHandler.DeactivateNode)

		api.POST("/node", r.nodeHandler.CreateNode)
		api.GET("/nodes", r.nodeHandler.ListNodes)
		api.GET("/node/:id", r.nodeHandler.GetNode)
		api.PUT("/node/:id", r.nodeHandler.UpdateNode)
		api.DELETE("/node/:id", r.nodeHandler.DeleteNode)
		api.POST("/node/:id/reconnect", r.nodeHandler.Reconnect)
		api.GET("/node/:id/usage", r.nodeHandler.Usage)
		api.GET("/node/:id/logs", r.nodeHandler.Logs)

		api.POST("/node/:id/service", r.serviceHandler.CreateService)
		api.GET("/node/:id/services", r.serviceHandler.ListServices)
		api.GET("/service/:id", r.serviceHandler.GetService)
		api.PUT("/service/:id", r.serviceHandler.UpdateService)
		api.DELETE("/service/:id", r.serviceHandler.DeleteService)

		sudo := api.Group("")
		sudo.Use(r.authMiddleware.RequireSudo())
		{
			sudo.POST("/admins", r.adminHandler.CreateAdmin)
			sudo.GET("/admins", r.adminHandler.ListAdmins)
			sudo.GET("/admins/:username", r.adminHandler.GetAdmin)
			sudo.PUT("/admins/:username", r.adminHandler.UpdateAdmin)
			sudo.DELETE("/admins/:username", r.adminHandler.DeleteAdmin)
		}
	}

	core := r.engine.Group("/core")
	core.Use(r.authMiddleware.RequireAuth(), r.authMiddleware.RequireSudo())
	{
		core.POST("/restart", r.systemHandler.RestartCores)
	}
}

// GetEngine returns the Gin engine.
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
