package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"ipmarket-server/internal/domain/chat"
)

// ChatMessage represents the database schema for chat messages. Rows are
// append-only; nothing updates a message after insert.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	PublicID string           `gorm:"type:varchar(50);uniqueIndex;not null"`
	RoomID   string           `gorm:"type:varchar(50);index:idx_chat_message_room_created;not null"`
	SenderID string           `gorm:"type:varchar(64);not null"`
	Content  string           `gorm:"type:text"`
	Type     chat.MessageType `gorm:"type:varchar(20);not null;default:'text'"`

	Offer        datatypes.JSON `gorm:"type:jsonb"`
	EscrowUpdate datatypes.JSON `gorm:"type:jsonb"`
	Attachments  datatypes.JSON `gorm:"type:jsonb"`
}

// TableName specifies the table name for ChatMessage.
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// EtoD converts the database entity to the domain model.
func (m *ChatMessage) EtoD() (*chat.Message, error) {
	msg := &chat.Message{
		PublicID:  m.PublicID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
	}

	if len(m.Offer) > 0 {
		msg.Offer = &chat.OfferPayload{}
		if err := json.Unmarshal(m.Offer, msg.Offer); err != nil {
			return nil, fmt.Errorf("decode offer payload of %s: %w", m.PublicID, err)
		}
	}
	if len(m.EscrowUpdate) > 0 {
		msg.EscrowUpdate = &chat.EscrowUpdate{}
		if err := json.Unmarshal(m.EscrowUpdate, msg.EscrowUpdate); err != nil {
			return nil, fmt.Errorf("decode escrow update of %s: %w", m.PublicID, err)
		}
	}
	if len(m.Attachments) > 0 {
		if err := json.Unmarshal(m.Attachments, &msg.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of %s: %w", m.PublicID, err)
		}
	}
	return msg, nil
}

// NewSchemaChatMessage creates a database entity from the domain model.
func NewSchemaChatMessage(msg *chat.Message) (*ChatMessage, error) {
	entity := &ChatMessage{
		PublicID:  msg.PublicID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Type:      msg.Type,
		CreatedAt: msg.CreatedAt,
	}

	if msg.Offer != nil {
		raw, err := json.Marshal(msg.Offer)
		if err != nil {
			return nil, fmt.Errorf("encode offer payload: %w", err)
		}
		entity.Offer = raw
	}
	if msg.EscrowUpdate != nil {
		raw, err := json.Marshal(msg.EscrowUpdate)
		if err != nil {
			return nil, fmt.Errorf("encode escrow update: %w", err)
		}
		entity.EscrowUpdate = raw
	}
	if len(msg.Attachments) > 0 {
		raw, err := json.Marshal(msg.Attachments)
		if err != nil {
			return nil, fmt.Errorf("encode attachments: %w", err)
		}
		entity.Attachments = raw
	}
	return entity, nil
}
