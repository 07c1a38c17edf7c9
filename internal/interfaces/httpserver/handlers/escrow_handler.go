package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/domain/escrow"
	"ipmarket-server/internal/infrastructure/auth"
	"ipmarket-server/internal/interfaces/httpserver/requests"
	"ipmarket-server/internal/interfaces/httpserver/responses"
	"ipmarket-server/internal/utils/platformerrors"
)

// EscrowHandler exposes the deal lifecycle for a chat room. Every write
// waits for the chain receipt before answering, so these endpoints run for
// seconds rather than milliseconds.
type EscrowHandler struct {
	orchestrator *escrow.Orchestrator
	chats        chat.Service
	log          zerolog.Logger
}

// NewEscrowHandler constructs the handler.
func NewEscrowHandler(orchestrator *escrow.Orchestrator, chats chat.Service, log zerolog.Logger) *EscrowHandler {
	return &EscrowHandler{
		orchestrator: orchestrator,
		chats:        chats,
		log:          log.With().Str("handler", "escrow").Logger(),
	}
}

// CreateDeal handles POST /v1/chats/:id/escrow/deal.
func (h *EscrowHandler) CreateDeal(c *gin.Context) {
	wallet := auth.WalletAddress(c)
	if wallet == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "8f1a2b3c-4d5e-4fa6-b7bc-0d8e1f2a3b4c")
		return
	}

	var req requests.CreateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "9a2b3c4d-5e6f-4ab7-c8cd-1e9f2a3b4c5d")
		return
	}

	msg, err := h.orchestrator.CreateDeal(c.Request.Context(), wallet, c.Param("id"), req.Price)
	if err != nil {
		responses.HandleError(c, err, "failed to create deal")
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// Fund handles POST /v1/chats/:id/escrow/fund.
func (h *EscrowHandler) Fund(c *gin.Context) {
	wallet := auth.WalletAddress(c)
	if wallet == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "0b3c4d5e-6f7a-4bc8-d9de-2f0a3b4c5d6e")
		return
	}

	var req requests.FundDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "1c4d5e6f-7a8b-4cd9-e0ef-3a1b4c5d6e7f")
		return
	}

	msg, err := h.orchestrator.FundDeal(c.Request.Context(), wallet, c.Param("id"), req.Amount)
	if err != nil {
		responses.HandleError(c, err, "failed to fund deal")
		return
	}

	c.JSON(http.StatusOK, msg)
}

// Cancel handles POST /v1/chats/:id/escrow/cancel.
func (h *EscrowHandler) Cancel(c *gin.Context) {
	wallet := auth.WalletAddress(c)
	if wallet == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "2d5e6f7a-8b9c-4de0-f1fa-4b2c5d6e7f8a")
		return
	}

	msg, err := h.orchestrator.Cancel(c.Request.Context(), wallet, c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to cancel deal")
		return
	}

	c.JSON(http.StatusOK, msg)
}

// GetDeal handles GET /v1/chats/:id/escrow, returning the on-chain deal
// next to the room's projection.
func (h *EscrowHandler) GetDeal(c *gin.Context) {
	wallet := auth.WalletAddress(c)
	if wallet == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "3e6f7a8b-9c0d-4ef1-a2ab-5c3d6e7f8a9b")
		return
	}

	room, err := h.chats.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get chat room")
		return
	}
	if !room.HasParticipant(wallet) {
		responses.HandleNewError(c, platformerrors.ErrorTypeForbidden, "room is private to its participants", "4f7a8b9c-0d1e-4fa2-b3bc-6d4e7f8a9b0c")
		return
	}

	deal, err := h.orchestrator.Deal(c.Request.Context(), room.PublicID)
	if err != nil {
		responses.HandleError(c, err, "failed to read deal")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deal":          deal,
		"escrow_status": room.EscrowStatus,
	})
}
