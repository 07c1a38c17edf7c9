package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/negotiation"
	"ipmarket-server/internal/infrastructure/auth"
	"ipmarket-server/internal/interfaces/httpserver/requests"
	"ipmarket-server/internal/interfaces/httpserver/responses"
	"ipmarket-server/internal/utils/platformerrors"
)

// NegotiationHandler exposes HTTP entrypoints for negotiation requests.
type NegotiationHandler struct {
	service negotiation.Service
	log     zerolog.Logger
}

// NewNegotiationHandler constructs the handler.
func NewNegotiationHandler(service negotiation.Service, log zerolog.Logger) *NegotiationHandler {
	return &NegotiationHandler{
		service: service,
		log:     log.With().Str("handler", "negotiation").Logger(),
	}
}

// Create handles POST /v1/negotiations. The caller's wallet becomes the
// owner of the request.
func (h *NegotiationHandler) Create(c *gin.Context) {
	wallet := auth.WalletAddress(c)
	if wallet == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "7a0b1c2d-3e4f-4a5b-8c6d-9e7f0a1b2c3d")
		return
	}

	var req requests.CreateNegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "8b1c2d3e-4f5a-4b6c-9d7e-0f8a1b2c3d4e")
		return
	}

	created, err := h.service.Create(c.Request.Context(), negotiation.CreateParams{
		TokenID:  req.TokenID,
		OwnerID:  wallet,
		Title:    req.Title,
		Image:    req.Image,
		PriceWei: req.PriceWei,
		Category: req.Category,
	})
	if err != nil {
		responses.HandleError(c, err, "failed to create negotiation")
		return
	}

	c.JSON(http.StatusCreated, created)
}

// List handles GET /v1/negotiations. Supports owner, status and category
// query filters; "mine=true" restricts to the caller's requests.
func (h *NegotiationHandler) List(c *gin.Context) {
	var filter negotiation.Filter
	if owner := c.Query("owner"); owner != "" {
		filter.OwnerID = &owner
	}
	if c.Query("mine") == "true" {
		wallet := auth.WalletAddress(c)
		if wallet == "" {
			responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "9c2d3e4f-5a6b-4c7d-ae8f-1a9b2c3d4e5f")
			return
		}
		filter.OwnerID = &wallet
	}
	if status := c.Query("status"); status != "" {
		s := negotiation.Status(status)
		filter.Status = &s
	}
	if category := c.Query("category"); category != "" {
		filter.Category = &category
	}

	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		responses.HandleError(c, err, "failed to list negotiations")
		return
	}

	c.JSON(http.StatusOK, responses.NewListResponse(items))
}

// Get handles GET /v1/negotiations/:id.
func (h *NegotiationHandler) Get(c *gin.Context) {
	req, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get negotiation")
		return
	}

	c.JSON(http.StatusOK, req)
}

// StartChat handles POST /v1/negotiations/:id/chat. The caller becomes the
// buyer; the room is created or reused.
func (h *NegotiationHandler) StartChat(c *gin.Context) {
	wallet := auth.WalletAddress(c)
	if wallet == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "0d3e4f5a-6b7c-4d8e-bf9a-2b0c3d4e5f6a")
		return
	}

	room, err := h.service.StartChat(c.Request.Context(), c.Param("id"), wallet)
	if err != nil {
		responses.HandleError(c, err, "failed to start chat")
		return
	}

	c.JSON(http.StatusOK, room)
}

// Complete handles POST /v1/negotiations/:id/complete. Only the owner may
// close their request as completed.
func (h *NegotiationHandler) Complete(c *gin.Context) {
	if !h.ownerGate(c) {
		return
	}
	if err := h.service.Complete(c.Request.Context(), c.Param("id")); err != nil {
		responses.HandleError(c, err, "failed to complete negotiation")
		return
	}
	c.Status(http.StatusNoContent)
}

// Cancel handles POST /v1/negotiations/:id/cancel. Only the owner may
// cancel their request.
func (h *NegotiationHandler) Cancel(c *gin.Context) {
	if !h.ownerGate(c) {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		responses.HandleError(c, err, "failed to cancel negotiation")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NegotiationHandler) ownerGate(c *gin.Context) bool {
	wallet := auth.WalletAddress(c)
	if wallet == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "1e4f5a6b-7c8d-4e9f-a0ab-3c1d4e5f6a7b")
		return false
	}

	req, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get negotiation")
		return false
	}
	if req.OwnerID != wallet {
		responses.HandleNewError(c, platformerrors.ErrorTypeForbidden, "only the owner may close this negotiation", "2f5a6b7c-8d9e-4fa0-b1bc-4d2e5f6a7b8c")
		return false
	}
	return true
}
