package chat

import (
	"context"

	"gorm.io/gorm"

	domain "ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/infrastructure/database/entities"
	"ipmarket-server/internal/utils/platformerrors"
)

// MessageRepository provides append-only persistence for chat messages.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs the repository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts one message. There is no update path.
func (r *MessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	entity, err := entities.NewSchemaChatMessage(msg)
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeInternal,
			"failed to map message to entity",
			err,
			"chat-message-map-001",
		)
	}

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to append message",
			err,
			"chat-message-create-db-001",
		)
	}
	msg.CreatedAt = entity.CreatedAt
	return nil
}

// ListByRoom loads the room's timeline, oldest first.
func (r *MessageRepository) ListByRoom(ctx context.Context, roomPublicID string) ([]*domain.Message, error) {
	var rows []entities.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("room_id = ?", roomPublicID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list messages",
			err,
			"chat-message-list-db-001",
		)
	}

	messages := make([]*domain.Message, 0, len(rows))
	for i := range rows {
		msg, err := rows[i].EtoD()
		if err != nil {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeInternal,
				"failed to decode message",
				err,
				"chat-message-decode-001",
			)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
