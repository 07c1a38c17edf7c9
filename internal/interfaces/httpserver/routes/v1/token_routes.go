package v1

import (
	"github.com/gin-gonic/gin"

	"ipmarket-server/internal/interfaces/httpserver/handlers"
)

func registerTokenRoutes(router gin.IRoutes, handler *handlers.TokenHandler) {
	router.POST("/tokens/mint", handler.Mint)
	router.GET("/tokens/:token_id", handler.Get)
	router.POST("/tokens/:token_id/access", handler.BuyAccess)
	router.GET("/tokens/:token_id/access", handler.CheckAccess)
}
