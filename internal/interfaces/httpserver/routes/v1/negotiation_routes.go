package v1

import (
	"github.com/gin-gonic/gin"

	"ipmarket-server/internal/interfaces/httpserver/handlers"
)

func registerNegotiationRoutes(router gin.IRoutes, handler *handlers.NegotiationHandler) {
	router.POST("/negotiations", handler.Create)
	router.GET("/negotiations", handler.List)
	router.GET("/negotiations/:id", handler.Get)
	router.POST("/negotiations/:id/chat", handler.StartChat)
	router.POST("/negotiations/:id/complete", handler.Complete)
	router.POST("/negotiations/:id/cancel", handler.Cancel)
}
