// Package chat provides PostgreSQL persistence for chat rooms and messages.
package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	domain "ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/infrastructure/database/entities"
	"ipmarket-server/internal/utils/platformerrors"
)

// RoomRepository provides persistence for chat rooms.
type RoomRepository struct {
	db *gorm.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// Create inserts a new room record.
func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	entity := entities.NewSchemaChatRoom(room)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create chat room",
			err,
			"chat-room-create-db-001",
		)
	}
	room.CreatedAt = entity.CreatedAt
	room.UpdatedAt = entity.UpdatedAt
	return nil
}

// FindByPublicID loads one room.
func (r *RoomRepository) FindByPublicID(ctx context.Context, publicID string) (*domain.Room, error) {
	var entity entities.ChatRoom
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"chat room not found",
			err,
			"chat-room-find-404",
		)
	}
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to load chat room",
			err,
			"chat-room-find-db-001",
		)
	}
	return entity.EtoD(), nil
}

// FindByTriple loads the room for a (token, owner, buyer) triple, or nil
// when none exists.
func (r *RoomRepository) FindByTriple(ctx context.Context, tokenID, ownerID, buyerID string) (*domain.Room, error) {
	var entity entities.ChatRoom
	err := r.db.WithContext(ctx).
		Where("token_id = ? AND owner_id = ? AND buyer_id = ?", tokenID, ownerID, buyerID).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to look up chat room",
			err,
			"chat-room-triple-db-001",
		)
	}
	return entity.EtoD(), nil
}

// FindByFilter loads rooms matching the filter, most recent activity first.
func (r *RoomRepository) FindByFilter(ctx context.Context, filter domain.RoomFilter) ([]*domain.Room, error) {
	query := r.db.WithContext(ctx).Model(&entities.ChatRoom{})
	if filter.TokenID != nil {
		query = query.Where("token_id = ?", *filter.TokenID)
	}
	if filter.ParticipantID != nil {
		query = query.Where("? = ANY(participants)", *filter.ParticipantID)
	}
	if len(filter.EscrowStatuses) > 0 {
		query = query.Where("escrow_status IN ?", filter.EscrowStatuses)
	}

	var rows []entities.ChatRoom
	if err := query.
		Order("last_message_at DESC NULLS LAST").
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list chat rooms",
			err,
			"chat-room-list-db-001",
		)
	}

	rooms := make([]*domain.Room, 0, len(rows))
	for i := range rows {
		rooms = append(rooms, rows[i].EtoD())
	}
	return rooms, nil
}

// UpdateEscrowStatus sets the escrow projection field of one room.
func (r *RoomRepository) UpdateEscrowStatus(ctx context.Context, publicID string, status domain.EscrowStatus) error {
	result := r.db.WithContext(ctx).
		Model(&entities.ChatRoom{}).
		Where("public_id = ?", publicID).
		Update("escrow_status", status)
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update escrow status",
			result.Error,
			"chat-room-escrow-db-001",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"chat room not found",
			nil,
			"chat-room-escrow-404",
		)
	}
	return nil
}

// UpdateLastMessage refreshes the room's preview cache.
func (r *RoomRepository) UpdateLastMessage(ctx context.Context, publicID, preview string) error {
	if err := r.db.WithContext(ctx).
		Model(&entities.ChatRoom{}).
		Where("public_id = ?", publicID).
		Updates(map[string]any{
			"last_message":    preview,
			"last_message_at": time.Now().UTC(),
		}).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update room preview",
			err,
			"chat-room-preview-db-001",
		)
	}
	return nil
}
