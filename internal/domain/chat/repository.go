package chat

import "context"

// RoomFilter narrows room queries.
type RoomFilter struct {
	TokenID        *string
	ParticipantID  *string
	EscrowStatuses []EscrowStatus
}

// RoomRepository persists chat rooms.
type RoomRepository interface {
	Create(ctx context.Context, room *Room) error
	FindByPublicID(ctx context.Context, publicID string) (*Room, error)
	// FindByTriple returns the room for (tokenID, ownerID, buyerID), or nil
	// when none exists.
	FindByTriple(ctx context.Context, tokenID, ownerID, buyerID string) (*Room, error)
	FindByFilter(ctx context.Context, filter RoomFilter) ([]*Room, error)
	UpdateEscrowStatus(ctx context.Context, publicID string, status EscrowStatus) error
	UpdateLastMessage(ctx context.Context, publicID string, content string) error
}

// MessageRepository persists room messages.
type MessageRepository interface {
	Append(ctx context.Context, msg *Message) error
	// ListByRoom returns the room's messages ordered by creation time
	// ascending.
	ListByRoom(ctx context.Context, roomPublicID string) ([]*Message, error)
}
