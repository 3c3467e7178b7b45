package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-crm/internal/middleware"
	"github.com/noah-isme/admissions-crm/internal/models"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Leads        *LeadHandler
	Interactions *InteractionHandler
	Analytics    *AnalyticsHandler
	Tokens       middleware.TokenValidator
	TokenHeader  string
}

// Register mounts every API route on api.
func (r Routes) Register(api *gin.RouterGroup) {
	authRequired := middleware.JWT(r.Tokens, r.TokenHeader)
	adminOnly := middleware.AdminOnly()

	auth := api.Group("/auth")
	auth.POST("", r.Auth.Login)
	auth.GET("", authRequired, r.Auth.Me)
	auth.POST("/register", r.Auth.Register)

	users := api.Group("/users")
	users.POST("/register-first-admin", r.Auth.RegisterFirstAdmin)
	users.POST("/register-lead", r.Auth.RegisterLeadUser)
	users.Use(authRequired)
	users.GET("", adminOnly, r.Users.List)
	users.POST("", adminOnly, r.Users.Create)
	users.GET("/agents", r.Users.Agents)
	users.GET("/lead-users", adminOnly, r.Users.LeadUsers)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.Self), r.Users.Get)
	users.PUT("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.Self), r.Users.Update)
	users.PUT("/:id/password", middleware.RBAC(middleware.Self), r.Users.ChangePassword)
	users.DELETE("/:id", adminOnly, r.Users.Delete)

	leads := api.Group("/leads", authRequired)
	leads.POST("", r.Leads.Create)
	leads.GET("", r.Leads.List)
	leads.GET("/unassigned", adminOnly, r.Leads.Unassigned)
	leads.GET("/assigned-to-me", middleware.RequireRoles(models.RoleLead), r.Leads.AssignedToMe)
	leads.GET("/recent", middleware.RequireRoles(models.RoleAgent, models.RoleLead), r.Leads.Recent)
	leads.GET("/filter/:status", r.Leads.ByStatus)
	leads.GET("/course/:course", r.Leads.ByCourse)
	leads.GET("/followup/today", r.Leads.FollowUpsToday)
	leads.GET("/admin-stats", adminOnly, r.Leads.AdminStats)
	leads.GET("/agent-stats", r.Leads.AgentStats)
	leads.GET("/stats", r.Leads.Stats)
	leads.GET("/export", adminOnly, r.Leads.Export)
	leads.POST("/upload", adminOnly, r.Leads.Upload)
	leads.PUT("/assign/:id", adminOnly, r.Leads.Assign)
	leads.POST("/assign-to-lead", adminOnly, r.Leads.BulkAssign)
	leads.GET("/:id", r.Leads.Get)
	leads.PUT("/:id", r.Leads.Update)
	leads.DELETE("/:id", adminOnly, r.Leads.Delete)

	interactions := api.Group("/interactions", authRequired)
	interactions.POST("", r.Interactions.Create)
	interactions.GET("", adminOnly, r.Interactions.List)
	interactions.GET("/me", r.Interactions.Mine)
	interactions.GET("/lead/:leadId", r.Interactions.ForLead)
	interactions.GET("/stats", r.Interactions.RecentMine)
	interactions.GET("/stats/agent/:id", adminOnly, r.Interactions.AgentStats)
	interactions.GET("/stats/overall", adminOnly, r.Interactions.OverallStats)
	interactions.GET("/:id", r.Interactions.Get)
	interactions.PUT("/:id", r.Interactions.Update)
	interactions.DELETE("/:id", adminOnly, r.Interactions.Delete)

	analytics := api.Group("/analytics", authRequired, adminOnly, middleware.WithResponseMeta())
	analytics.GET("/overview", r.Analytics.Overview)
	analytics.GET("/trends", r.Analytics.Trends)
	analytics.GET("/agent-performance", r.Analytics.AgentPerformance)
	analytics.GET("/recent-activities", r.Analytics.RecentActivities)
	analytics.GET("/lead-funnel", r.Analytics.LeadFunnel)
}
