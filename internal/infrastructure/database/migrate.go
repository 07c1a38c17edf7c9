package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"ipmarket-server/internal/infrastructure/database/entities"
)

// AutoMigrate applies database schema changes for the marketplace domain.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&entities.Negotiation{},
		&entities.ChatRoom{},
		&entities.ChatMessage{},
	); err != nil {
		return err
	}

	log.Info().Msg("database schema up to date")
	return nil
}
