package api

import (
	"github.com/gin-gonic/gin"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/handlers"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/middleware"
)

func registerClaimRoutes(api *gin.RouterGroup, deps Dependencies) {
	handler := handlers.NewClaimHandler(deps.Services.Claims)

	claims := api.Group("/claims")
	{
		claims.POST("", handler.Submit)
		claims.GET("/mine", handler.ListMine)
		claims.POST("/:id/approve", middleware.RequireAdmin(), handler.Approve)
		claims.POST("/:id/reject", middleware.RequireAdmin(), handler.Reject)
	}
}

func registerMaintenanceRoutes(api *gin.RouterGroup, deps Dependencies) {
	svc := deps.Services
	repairHandler := handlers.NewRepairHandler(svc.Repair, svc.Claims)
	auditHandler := handlers.NewAuditHandler(svc.Audit)

	api.POST("/repair/ownership", repairHandler.BackfillOwnership)
	api.POST("/repair/integrity", middleware.RequireAdmin(), repairHandler.ScanIntegrity)
	api.GET("/audit", middleware.RequireAdmin(), auditHandler.List)
}
