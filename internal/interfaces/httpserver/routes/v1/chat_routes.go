package v1

import (
	"github.com/gin-gonic/gin"

	"ipmarket-server/internal/interfaces/httpserver/handlers"
)

func registerChatRoutes(router gin.IRoutes, chats *handlers.ChatHandler, escrows *handlers.EscrowHandler) {
	router.GET("/chats", chats.ListRooms)
	router.GET("/chats/:id", chats.GetRoom)
	router.GET("/chats/:id/messages", chats.ListMessages)
	router.POST("/chats/:id/messages", chats.SendMessage)

	// Escrow lifecycle scoped to the room it belongs to.
	router.GET("/chats/:id/escrow", escrows.GetDeal)
	router.POST("/chats/:id/escrow/deal", escrows.CreateDeal)
	router.POST("/chats/:id/escrow/fund", escrows.Fund)
	router.POST("/chats/:id/escrow/cancel", escrows.Cancel)
}
