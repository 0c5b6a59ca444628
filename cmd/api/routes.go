package main

import (
	"github.com/gin-gonic/gin"

	"github.com/PewPewSlowMo/SmartCallCenter/internal/httpapi"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/notify"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/rbac"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, hub *notify.Hub, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// NOTE: Placeholder credential flow; see httpapi.Handlers.Login.
	r.POST("/v1/auth/login", h.Login)

	// Live notification stream. Token arrives via header or query param.
	r.GET("/ws", authMW, notify.AttachHandler(hub))

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", h.Me)

		// CALLS routes
		callsGroup := v1.Group("/calls")
		callsGroup.Use(rbac.RequireAnyRole(rbac.RoleManager, rbac.RoleSupervisor, rbac.RoleOperator))
		{
			callsGroup.GET("", h.ListCalls)
		}

		// Live sessions for wallboards.
		v1.GET("/sessions", rbac.RequireAnyRole(rbac.SupervisoryRoles()...), h.ActiveSessions)

		// OPERATORS routes
		ops := v1.Group("/operators")
		{
			ops.GET("", h.ListOperators)
			ops.POST("", rbac.RequireAnyRole(rbac.RoleAdmin), h.UpsertOperator)
			ops.PUT("/:operator_id/status", rbac.RequireAnyRole(rbac.SupervisoryRoles()...), h.SetOperatorStatus)
		}

		// SWITCH read queries
		sw := v1.Group("/switch")
		sw.Use(rbac.RequireAnyRole(rbac.SupervisoryRoles()...))
		{
			sw.GET("/channels", h.SwitchChannels)
			sw.GET("/device-states", h.SwitchDeviceStates)
		}

		// STATISTICS routes
		stats := v1.Group("/stats")
		stats.Use(rbac.RequireAnyRole(rbac.SupervisoryRoles()...))
		{
			stats.GET("/summary", h.StatsSummary)
			stats.GET("/queues", h.StatsByQueue)
		}

		// SWITCH control commands
		control := v1.Group("/control")
		control.Use(rbac.RequireAnyRole(rbac.SupervisoryRoles()...))
		{
			control.POST("/originate", h.Originate)
			control.POST("/hangup", h.Hangup)
		}
	}
}
