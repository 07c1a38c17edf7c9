package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/market"
	"ipmarket-server/internal/infrastructure/auth"
	"ipmarket-server/internal/interfaces/httpserver/requests"
	"ipmarket-server/internal/interfaces/httpserver/responses"
	"ipmarket-server/internal/utils/platformerrors"
)

// MarketHandler exposes fixed-price listings, auctions and lotteries.
type MarketHandler struct {
	service market.Service
	log     zerolog.Logger
}

// NewMarketHandler constructs the handler.
func NewMarketHandler(service market.Service, log zerolog.Logger) *MarketHandler {
	return &MarketHandler{
		service: service,
		log:     log.With().Str("handler", "market").Logger(),
	}
}

// CreateListing handles POST /v1/market/listings.
func (h *MarketHandler) CreateListing(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	var req requests.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "5a8b9c0d-1e2f-4ab3-c4cd-7e5f8a9b0c1d")
		return
	}

	txHash, err := h.service.List(c.Request.Context(), wallet, req.TokenID, req.Price)
	if err != nil {
		responses.HandleError(c, err, "failed to list token")
		return
	}

	c.JSON(http.StatusCreated, responses.TxResponse{TxHash: txHash})
}

// ActiveListings handles GET /v1/market/listings.
func (h *MarketHandler) ActiveListings(c *gin.Context) {
	listings, err := h.service.ActiveListings(c.Request.Context())
	if err != nil {
		responses.HandleError(c, err, "failed to list active listings")
		return
	}

	c.JSON(http.StatusOK, responses.NewListResponse(listings))
}

// GetListing handles GET /v1/market/listings/:token_id.
func (h *MarketHandler) GetListing(c *gin.Context) {
	listing, err := h.service.Listing(c.Request.Context(), c.Param("token_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get listing")
		return
	}

	c.JSON(http.StatusOK, listing)
}

// CancelListing handles DELETE /v1/market/listings/:token_id.
func (h *MarketHandler) CancelListing(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	txHash, err := h.service.CancelListing(c.Request.Context(), wallet, c.Param("token_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to cancel listing")
		return
	}

	c.JSON(http.StatusOK, responses.TxResponse{TxHash: txHash})
}

// UpdatePrice handles PATCH /v1/market/listings/:token_id/price.
func (h *MarketHandler) UpdatePrice(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	var req requests.UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "6b9c0d1e-2f3a-4bc4-d5de-8f6a9b0c1d2e")
		return
	}

	txHash, err := h.service.UpdatePrice(c.Request.Context(), wallet, c.Param("token_id"), req.Price)
	if err != nil {
		responses.HandleError(c, err, "failed to update price")
		return
	}

	c.JSON(http.StatusOK, responses.TxResponse{TxHash: txHash})
}

// Buy handles POST /v1/market/listings/:token_id/buy. The caller pays the
// current listing price.
func (h *MarketHandler) Buy(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	txHash, err := h.service.Buy(c.Request.Context(), wallet, c.Param("token_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to buy token")
		return
	}

	c.JSON(http.StatusOK, responses.TxResponse{TxHash: txHash})
}

// CreateAuction handles POST /v1/market/auctions.
func (h *MarketHandler) CreateAuction(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	var req requests.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "7c0d1e2f-3a4b-4cd5-e6ef-9a7b0c1d2e3f")
		return
	}

	txHash, err := h.service.CreateAuction(c.Request.Context(), wallet, req.TokenID, req.StartingPrice, req.DurationSeconds)
	if err != nil {
		responses.HandleError(c, err, "failed to create auction")
		return
	}

	c.JSON(http.StatusCreated, responses.TxResponse{TxHash: txHash})
}

// GetAuction handles GET /v1/market/auctions/:token_id.
func (h *MarketHandler) GetAuction(c *gin.Context) {
	auction, err := h.service.Auction(c.Request.Context(), c.Param("token_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get auction")
		return
	}

	c.JSON(http.StatusOK, auction)
}

// TimeRemaining handles GET /v1/market/auctions/:token_id/time.
func (h *MarketHandler) TimeRemaining(c *gin.Context) {
	seconds, err := h.service.TimeRemaining(c.Request.Context(), c.Param("token_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to read time remaining")
		return
	}

	c.JSON(http.StatusOK, gin.H{"seconds_remaining": seconds})
}

// PlaceBid handles POST /v1/market/auctions/:token_id/bids.
func (h *MarketHandler) PlaceBid(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	var req requests.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "8d1e2f3a-4b5c-4de6-f7fa-0b8c1d2e3f4a")
		return
	}

	txHash, err := h.service.PlaceBid(c.Request.Context(), wallet, c.Param("token_id"), req.Bid)
	if err != nil {
		responses.HandleError(c, err, "failed to place bid")
		return
	}

	c.JSON(http.StatusCreated, responses.TxResponse{TxHash: txHash})
}

// EndAuction handles POST /v1/market/auctions/:token_id/end.
func (h *MarketHandler) EndAuction(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	txHash, err := h.service.EndAuction(c.Request.Context(), wallet, c.Param("token_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to end auction")
		return
	}

	c.JSON(http.StatusOK, responses.TxResponse{TxHash: txHash})
}

// CancelAuction handles POST /v1/market/auctions/:token_id/cancel.
func (h *MarketHandler) CancelAuction(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	txHash, err := h.service.CancelAuction(c.Request.Context(), wallet, c.Param("token_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to cancel auction")
		return
	}

	c.JSON(http.StatusOK, responses.TxResponse{TxHash: txHash})
}

// Withdraw handles POST /v1/market/withdrawals, returning outbid funds to
// the caller.
func (h *MarketHandler) Withdraw(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	txHash, err := h.service.WithdrawBid(c.Request.Context(), wallet)
	if err != nil {
		responses.HandleError(c, err, "failed to withdraw")
		return
	}

	c.JSON(http.StatusOK, responses.TxResponse{TxHash: txHash})
}

// PendingReturns handles GET /v1/market/withdrawals, the caller's
// withdrawable balance.
func (h *MarketHandler) PendingReturns(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	amount, err := h.service.PendingReturns(c.Request.Context(), wallet)
	if err != nil {
		responses.HandleError(c, err, "failed to read pending returns")
		return
	}

	c.JSON(http.StatusOK, responses.AmountResponse{AmountWei: amount})
}

// StartLottery handles POST /v1/market/lotteries.
func (h *MarketHandler) StartLottery(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	var req requests.StartLotteryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "9e2f3a4b-5c6d-4ef7-a8ab-1c9d2e3f4a5b")
		return
	}

	txHash, err := h.service.StartLottery(c.Request.Context(), wallet, req.TokenID, req.TicketPrice, req.DurationSeconds)
	if err != nil {
		responses.HandleError(c, err, "failed to start lottery")
		return
	}

	c.JSON(http.StatusCreated, responses.TxResponse{TxHash: txHash})
}

// LotteryCounters handles GET /v1/market/lotteries, exposing the id the
// next lottery will be assigned.
func (h *MarketHandler) LotteryCounters(c *gin.Context) {
	nextID, err := h.service.NextLotteryID(c.Request.Context())
	if err != nil {
		responses.HandleError(c, err, "failed to read lottery counters")
		return
	}

	c.JSON(http.StatusOK, gin.H{"next_id": nextID})
}

// GetLottery handles GET /v1/market/lotteries/:id.
func (h *MarketHandler) GetLottery(c *gin.Context) {
	lottery, err := h.service.Lottery(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get lottery")
		return
	}

	c.JSON(http.StatusOK, lottery)
}

// LotteryPlayers handles GET /v1/market/lotteries/:id/players.
func (h *MarketHandler) LotteryPlayers(c *gin.Context) {
	players, err := h.service.LotteryPlayers(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to list lottery players")
		return
	}

	c.JSON(http.StatusOK, responses.NewListResponse(players))
}

// BuyTicket handles POST /v1/market/lotteries/:id/tickets. The caller pays
// the current ticket price.
func (h *MarketHandler) BuyTicket(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	txHash, err := h.service.BuyTicket(c.Request.Context(), wallet, c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to buy ticket")
		return
	}

	c.JSON(http.StatusCreated, responses.TxResponse{TxHash: txHash})
}

// DrawLottery handles POST /v1/market/lotteries/:id/draw.
func (h *MarketHandler) DrawLottery(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	txHash, err := h.service.DrawLottery(c.Request.Context(), wallet, c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to draw lottery")
		return
	}

	c.JSON(http.StatusOK, responses.TxResponse{TxHash: txHash})
}

// AnnounceWinner handles POST /v1/market/lotteries/:id/winner.
func (h *MarketHandler) AnnounceWinner(c *gin.Context) {
	wallet, ok := h.wallet(c)
	if !ok {
		return
	}

	txHash, err := h.service.AnnounceWinner(c.Request.Context(), wallet, c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to announce winner")
		return
	}

	c.JSON(http.StatusOK, responses.TxResponse{TxHash: txHash})
}

func (h *MarketHandler) wallet(c *gin.Context) (string, bool) {
	wallet := auth.WalletAddress(c)
	if wallet == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "0f3a4b5c-6d7e-4fa8-b9bc-2d0e3f4a5b6c")
		return "", false
	}
	return wallet, true
}
