package chat

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ipmarket-server/internal/utils/idgen"
	"ipmarket-server/internal/utils/platformerrors"
)

// Event types pushed to live subscribers.
const (
	EventMessageCreated = "message.created"
	EventRoomUpdated    = "room.updated"
	EventEscrowUpdated  = "escrow.updated"
)

// Event is a realtime notification about a room.
type Event struct {
	Type    string   `json:"type"`
	Room    *Room    `json:"room,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// EventPublisher fans events out to both participants' live subscriptions.
type EventPublisher interface {
	PublishRoomEvent(ctx context.Context, event Event) error
}

// CreateRoomParams carries the inputs for opening a conversation.
type CreateRoomParams struct {
	TokenID  string
	OwnerID  string
	BuyerID  string
	IPTitle  string
	IPImage  string
	PriceWei string
	MediaURL *string
}

// SendMessageParams carries the inputs for appending a message.
type SendMessageParams struct {
	RoomID       string
	SenderID     string
	Content      string
	Type         MessageType
	Offer        *OfferPayload
	EscrowUpdate *EscrowUpdate
	Attachments  []Attachment
}

// Service exposes the chat store operations.
type Service interface {
	// CreateRoom returns the existing room for the (token, owner, buyer)
	// triple when one exists, otherwise creates it. Idempotent by lookup.
	CreateRoom(ctx context.Context, params CreateRoomParams) (*Room, error)
	GetRoom(ctx context.Context, roomID string) (*Room, error)
	// ListRoomsForUser returns all rooms the user participates in, most
	// recent message first.
	ListRoomsForUser(ctx context.Context, userID string) ([]*Room, error)
	SendMessage(ctx context.Context, params SendMessageParams) (*Message, error)
	ListMessages(ctx context.Context, roomID string) ([]*Message, error)
	// UpdateEscrowStatus is reserved for the escrow orchestrator and the
	// reconciler.
	UpdateEscrowStatus(ctx context.Context, roomID string, status EscrowStatus) error
	// ListRoomsWithOpenEscrow returns rooms whose escrow projection is
	// non-terminal, for reconciliation sweeps.
	ListRoomsWithOpenEscrow(ctx context.Context) ([]*Room, error)
}

// DefaultService implements Service on top of the repositories.
type DefaultService struct {
	rooms    RoomRepository
	messages MessageRepository
	events   EventPublisher
	log      zerolog.Logger
}

// NewService creates the chat service.
func NewService(rooms RoomRepository, messages MessageRepository, events EventPublisher, log zerolog.Logger) *DefaultService {
	return &DefaultService{
		rooms:    rooms,
		messages: messages,
		events:   events,
		log:      log.With().Str("component", "chat-service").Logger(),
	}
}

// CreateRoom implements Service.
func (s *DefaultService) CreateRoom(ctx context.Context, params CreateRoomParams) (*Room, error) {
	if err := validateCreateRoom(params); err != nil {
		return nil, err
	}

	existing, err := s.rooms.FindByTriple(ctx, params.TokenID, params.OwnerID, params.BuyerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "lookup existing chat room")
	}
	if existing != nil {
		return existing, nil
	}

	publicID, err := idgen.GenerateSecureID(idgen.PrefixChatRoom, 24)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "generate room id")
	}

	now := time.Now().UTC()
	room := &Room{
		PublicID:     publicID,
		TokenID:      params.TokenID,
		OwnerID:      params.OwnerID,
		BuyerID:      params.BuyerID,
		Participants: []string{params.OwnerID, params.BuyerID},
		EscrowStatus: EscrowStatusNone,
		IPTitle:      params.IPTitle,
		IPImage:      params.IPImage,
		PriceWei:     params.PriceWei,
		MediaURL:     params.MediaURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "create chat room")
	}

	s.publish(ctx, Event{Type: EventRoomUpdated, Room: room})
	return room, nil
}

// GetRoom implements Service.
func (s *DefaultService) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	return s.rooms.FindByPublicID(ctx, roomID)
}

// ListRoomsForUser implements Service. Rooms are sorted here rather than in
// SQL so the last-message ordering needs no composite index.
func (s *DefaultService) ListRoomsForUser(ctx context.Context, userID string) ([]*Room, error) {
	rooms, err := s.rooms.FindByFilter(ctx, RoomFilter{ParticipantID: &userID})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list chat rooms")
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		return roomActivity(rooms[i]).After(roomActivity(rooms[j]))
	})
	return rooms, nil
}

// SendMessage implements Service. The append and the parent room's
// last-message cache update are two writes; the cache may trail briefly.
func (s *DefaultService) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	if params.Type == "" {
		params.Type = MessageTypeText
	}
	if err := validateSendMessage(params); err != nil {
		return nil, err
	}

	room, err := s.rooms.FindByPublicID(ctx, params.RoomID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load chat room")
	}
	fromServer := params.SenderID == SystemSenderID || params.Type == MessageTypeSystem
	if !fromServer && !room.HasParticipant(params.SenderID) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"sender is not a participant of this room", nil, "6f3e1f0a-8f0b-4f4e-9f1c-2a7d5f9f2a01")
	}

	publicID, err := idgen.GenerateSecureID(idgen.PrefixChatMessage, 24)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "generate message id")
	}

	msg := &Message{
		PublicID:     publicID,
		RoomID:       params.RoomID,
		SenderID:     params.SenderID,
		Content:      params.Content,
		Type:         params.Type,
		Offer:        params.Offer,
		EscrowUpdate: params.EscrowUpdate,
		Attachments:  params.Attachments,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "append chat message")
	}

	if err := s.rooms.UpdateLastMessage(ctx, params.RoomID, params.Content); err != nil {
		// The message is already committed; a stale cache only affects
		// room-list ordering.
		s.log.Warn().Err(err).Str("room_id", params.RoomID).Msg("update last-message cache")
	}

	s.publish(ctx, Event{Type: EventMessageCreated, Room: room, Message: msg})
	return msg, nil
}

// ListMessages implements Service.
func (s *DefaultService) ListMessages(ctx context.Context, roomID string) ([]*Message, error) {
	return s.messages.ListByRoom(ctx, roomID)
}

// UpdateEscrowStatus implements Service.
func (s *DefaultService) UpdateEscrowStatus(ctx context.Context, roomID string, status EscrowStatus) error {
	if err := s.rooms.UpdateEscrowStatus(ctx, roomID, status); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "update escrow status")
	}

	room, err := s.rooms.FindByPublicID(ctx, roomID)
	if err == nil {
		s.publish(ctx, Event{Type: EventEscrowUpdated, Room: room})
	}
	return nil
}

// ListRoomsWithOpenEscrow implements Service. Rooms at none are included:
// a mined createDeal whose projection write failed leaves the room there.
func (s *DefaultService) ListRoomsWithOpenEscrow(ctx context.Context) ([]*Room, error) {
	return s.rooms.FindByFilter(ctx, RoomFilter{
		EscrowStatuses: []EscrowStatus{EscrowStatusNone, EscrowStatusCreated},
	})
}

func (s *DefaultService) publish(ctx context.Context, event Event) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRoomEvent(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", event.Type).Msg("publish room event")
	}
}

func roomActivity(r *Room) time.Time {
	if r.LastMessageAt != nil {
		return *r.LastMessageAt
	}
	return r.CreatedAt
}

func validateCreateRoom(params CreateRoomParams) error {
	switch {
	case strings.TrimSpace(params.TokenID) == "":
		return platformerrors.NewError(context.Background(), platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "token id is required", nil, "a1c2f3d4-0b1e-4c5a-8d9e-1f2a3b4c5d6e")
	case strings.TrimSpace(params.OwnerID) == "":
		return platformerrors.NewError(context.Background(), platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "owner id is required", nil, "b2d3e4f5-1c2f-4d6b-9e0f-2a3b4c5d6e7f")
	case strings.TrimSpace(params.BuyerID) == "":
		return platformerrors.NewError(context.Background(), platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "buyer id is required", nil, "c3e4f5a6-2d3a-4e7c-af1a-3b4c5d6e7f8a")
	case params.OwnerID == params.BuyerID:
		return platformerrors.NewError(context.Background(), platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "owner and buyer must differ", nil, "d4f5a6b7-3e4b-4f8d-ba2b-4c5d6e7f8a9b")
	}
	return nil
}

func validateSendMessage(params SendMessageParams) error {
	if strings.TrimSpace(params.RoomID) == "" {
		return platformerrors.NewError(context.Background(), platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "room id is required", nil, "e5a6b7c8-4f5c-4a9e-cb3c-5d6e7f8a9b0c")
	}
	if params.Type == MessageTypeText && strings.TrimSpace(params.Content) == "" {
		return platformerrors.NewError(context.Background(), platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "message content is required", nil, "f6b7c8d9-5a6d-4baf-bc4d-6e7f8a9b0c1d")
	}
	return nil
}
