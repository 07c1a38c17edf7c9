package v1

import (
	"github.com/gin-gonic/gin"

	"ipmarket-server/internal/interfaces/httpserver/handlers"
)

func registerMarketRoutes(router gin.IRoutes, handler *handlers.MarketHandler) {
	router.POST("/market/listings", handler.CreateListing)
	router.GET("/market/listings", handler.ActiveListings)
	router.GET("/market/listings/:token_id", handler.GetListing)
	router.DELETE("/market/listings/:token_id", handler.CancelListing)
	router.PATCH("/market/listings/:token_id/price", handler.UpdatePrice)
	router.POST("/market/listings/:token_id/buy", handler.Buy)

	router.POST("/market/auctions", handler.CreateAuction)
	router.GET("/market/auctions/:token_id", handler.GetAuction)
	router.GET("/market/auctions/:token_id/time", handler.TimeRemaining)
	router.POST("/market/auctions/:token_id/bids", handler.PlaceBid)
	router.POST("/market/auctions/:token_id/end", handler.EndAuction)
	router.POST("/market/auctions/:token_id/cancel", handler.CancelAuction)
	router.POST("/market/withdrawals", handler.Withdraw)
	router.GET("/market/withdrawals", handler.PendingReturns)

	router.POST("/market/lotteries", handler.StartLottery)
	router.GET("/market/lotteries", handler.LotteryCounters)
	router.GET("/market/lotteries/:id", handler.GetLottery)
	router.GET("/market/lotteries/:id/players", handler.LotteryPlayers)
	router.POST("/market/lotteries/:id/tickets", handler.BuyTicket)
	router.POST("/market/lotteries/:id/draw", handler.DrawLottery)
	router.POST("/market/lotteries/:id/winner", handler.AnnounceWinner)
}
