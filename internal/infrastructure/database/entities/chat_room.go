package entities

import (
	"time"

	"github.com/lib/pq"

	"ipmarket-server/internal/domain/chat"
)

// ChatRoom represents the database schema for negotiation chat rooms.
type ChatRoom struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PublicID     string            `gorm:"type:varchar(50);uniqueIndex;not null"`
	TokenID      string            `gorm:"type:varchar(78);index:idx_chat_room_triple;not null"`
	OwnerID      string            `gorm:"type:varchar(64);index:idx_chat_room_triple;not null"`
	BuyerID      string            `gorm:"type:varchar(64);index:idx_chat_room_triple;not null"`
	Participants pq.StringArray    `gorm:"type:text[];not null"`
	EscrowStatus chat.EscrowStatus `gorm:"type:varchar(20);index;not null;default:'none'"`

	IPTitle  string  `gorm:"type:varchar(256)"`
	IPImage  string  `gorm:"type:text"`
	PriceWei string  `gorm:"type:varchar(78)"`
	MediaURL *string `gorm:"type:text"`

	LastMessage   *string    `gorm:"type:text"`
	LastMessageAt *time.Time `gorm:"index"`

	Messages []ChatMessage `gorm:"foreignKey:RoomID;references:PublicID"`
}

// TableName specifies the table name for ChatRoom.
func (ChatRoom) TableName() string {
	return "chat_rooms"
}

// EtoD converts the database entity to the domain model.
func (r *ChatRoom) EtoD() *chat.Room {
	return &chat.Room{
		PublicID:      r.PublicID,
		TokenID:       r.TokenID,
		OwnerID:       r.OwnerID,
		BuyerID:       r.BuyerID,
		Participants:  []string(r.Participants),
		EscrowStatus:  r.EscrowStatus,
		IPTitle:       r.IPTitle,
		IPImage:       r.IPImage,
		PriceWei:      r.PriceWei,
		MediaURL:      r.MediaURL,
		LastMessage:   r.LastMessage,
		LastMessageAt: r.LastMessageAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// NewSchemaChatRoom creates a database entity from the domain model.
func NewSchemaChatRoom(room *chat.Room) *ChatRoom {
	return &ChatRoom{
		PublicID:      room.PublicID,
		TokenID:       room.TokenID,
		OwnerID:       room.OwnerID,
		BuyerID:       room.BuyerID,
		Participants:  pq.StringArray(room.Participants),
		EscrowStatus:  room.EscrowStatus,
		IPTitle:       room.IPTitle,
		IPImage:       room.IPImage,
		PriceWei:      room.PriceWei,
		MediaURL:      room.MediaURL,
		LastMessage:   room.LastMessage,
		LastMessageAt: room.LastMessageAt,
		CreatedAt:     room.CreatedAt,
		UpdatedAt:     room.UpdatedAt,
	}
}
