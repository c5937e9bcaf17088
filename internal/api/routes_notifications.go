package api

import (
	"github.com/gin-gonic/gin"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, deps Dependencies) {
	svc := deps.Services
	handler := handlers.NewNotificationHandler(svc.Notifications, svc.Requests, svc.Unread, deps.Hub)

	notifications := api.Group("/notifications")
	{
		notifications.GET("", handler.List)
		notifications.POST("/read-all", handler.MarkAllRead)
		notifications.POST("/:id/read", handler.MarkRead)
		notifications.GET("/stream", handler.Stream)
	}
}
