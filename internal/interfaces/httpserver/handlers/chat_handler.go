package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/infrastructure/auth"
	"ipmarket-server/internal/interfaces/httpserver/requests"
	"ipmarket-server/internal/interfaces/httpserver/responses"
	"ipmarket-server/internal/utils/platformerrors"
)

// ChatHandler exposes HTTP entrypoints for chat rooms and messages.
type ChatHandler struct {
	service chat.Service
	log     zerolog.Logger
}

// NewChatHandler constructs the handler.
func NewChatHandler(service chat.Service, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		log:     log.With().Str("handler", "chat").Logger(),
	}
}

// ListRooms handles GET /v1/chats, returning the caller's rooms.
func (h *ChatHandler) ListRooms(c *gin.Context) {
	wallet := auth.WalletAddress(c)
	if wallet == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "3a6b7c8d-9e0f-4ab1-c2cd-5e3f6a7b8c9d")
		return
	}

	rooms, err := h.service.ListRoomsForUser(c.Request.Context(), wallet)
	if err != nil {
		responses.HandleError(c, err, "failed to list chat rooms")
		return
	}

	c.JSON(http.StatusOK, responses.NewListResponse(rooms))
}

// GetRoom handles GET /v1/chats/:id. Rooms are private to their two
// participants.
func (h *ChatHandler) GetRoom(c *gin.Context) {
	room, ok := h.roomForParticipant(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, room)
}

// ListMessages handles GET /v1/chats/:id/messages, oldest first.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	room, ok := h.roomForParticipant(c)
	if !ok {
		return
	}

	messages, err := h.service.ListMessages(c.Request.Context(), room.PublicID)
	if err != nil {
		responses.HandleError(c, err, "failed to list messages")
		return
	}

	c.JSON(http.StatusOK, responses.NewListResponse(messages))
}

// SendMessage handles POST /v1/chats/:id/messages. The sender is always
// the authenticated wallet.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	wallet := auth.WalletAddress(c)
	if wallet == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "4b7c8d9e-0f1a-4bc2-d3de-6f4a7b8c9d0e")
		return
	}

	var req requests.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "5c8d9e0f-1a2b-4cd3-e4ef-7a5b8c9d0e1f")
		return
	}

	params := chat.SendMessageParams{
		RoomID:   c.Param("id"),
		SenderID: wallet,
		Content:  req.Content,
		Type:     chat.MessageType(req.Type),
	}
	if req.Offer != nil {
		status := chat.OfferStatus(req.Offer.Status)
		if status == "" {
			status = chat.OfferStatusPending
		}
		params.Offer = &chat.OfferPayload{
			TokenID:  req.Offer.TokenID,
			PriceWei: req.Offer.PriceWei,
			Status:   status,
		}
		if params.Type == "" {
			params.Type = chat.MessageTypeOffer
		}
	}
	for _, a := range req.Attachments {
		params.Attachments = append(params.Attachments, chat.Attachment{
			Name: a.Name,
			URL:  a.URL,
			Mime: a.Mime,
		})
	}

	msg, err := h.service.SendMessage(c.Request.Context(), params)
	if err != nil {
		responses.HandleError(c, err, "failed to send message")
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) roomForParticipant(c *gin.Context) (*chat.Room, bool) {
	wallet := auth.WalletAddress(c)
	if wallet == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "6d9e0f1a-2b3c-4de4-f5fa-8b6c9d0e1f2a")
		return nil, false
	}

	room, err := h.service.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get chat room")
		return nil, false
	}
	if !room.HasParticipant(wallet) {
		responses.HandleNewError(c, platformerrors.ErrorTypeForbidden, "room is private to its participants", "7e0f1a2b-3c4d-4ef5-a6ab-9c7d0e1f2a3b")
		return nil, false
	}
	return room, true
}
