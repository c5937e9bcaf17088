package api

import (
	"github.com/gin-gonic/gin"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/handlers"
)

func registerRequestRoutes(api *gin.RouterGroup, deps Dependencies, writes []gin.HandlerFunc) {
	svc := deps.Services
	requestHandler := handlers.NewRequestHandler(svc.Requests, svc.Chat, svc.Unread)
	streamHandler := handlers.NewChatStreamHandler(svc.Chat, svc.Unread)
	unreadHandler := handlers.NewUnreadHandler(svc.Unread)

	requests := api.Group("/requests")
	{
		requests.POST("", guarded(writes, requestHandler.Create)...)
		requests.GET("/mine", requestHandler.ListMine)
		requests.GET("/vendor", requestHandler.ListVendor)
		requests.GET("/:id", requestHandler.Get)
		requests.GET("/:id/messages", requestHandler.Messages)
		requests.POST("/:id/messages", guarded(writes, requestHandler.SendMessage)...)
		requests.POST("/:id/complete", requestHandler.Complete)
		requests.POST("/:id/viewed", requestHandler.MarkViewed)
		requests.GET("/:id/stream", streamHandler.Stream)
	}

	api.GET("/unread", unreadHandler.Summary)
}

func guarded(guards []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(guards)+1)
	chain = append(chain, guards...)
	return append(chain, handler)
}
