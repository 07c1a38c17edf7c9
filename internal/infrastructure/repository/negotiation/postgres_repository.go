// Package negotiation provides PostgreSQL persistence for negotiation
// requests.
package negotiation

import (
	"context"
	"errors"

	"gorm.io/gorm"

	domain "ipmarket-server/internal/domain/negotiation"
	"ipmarket-server/internal/infrastructure/database/entities"
	"ipmarket-server/internal/utils/platformerrors"
)

// PostgresRepository provides persistence for negotiation requests.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new negotiation record.
func (r *PostgresRepository) Create(ctx context.Context, req *domain.Request) error {
	entity := entities.NewSchemaNegotiation(req)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create negotiation",
			err,
			"negotiation-create-db-001",
		)
	}
	req.CreatedAt = entity.CreatedAt
	req.UpdatedAt = entity.UpdatedAt
	return nil
}

// FindByPublicID loads one negotiation.
func (r *PostgresRepository) FindByPublicID(ctx context.Context, publicID string) (*domain.Request, error) {
	var entity entities.Negotiation
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"negotiation not found",
			err,
			"negotiation-find-404",
		)
	}
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to load negotiation",
			err,
			"negotiation-find-db-001",
		)
	}
	return entity.EtoD(), nil
}

// FindByFilter loads negotiations matching the filter, newest first.
func (r *PostgresRepository) FindByFilter(ctx context.Context, filter domain.Filter) ([]*domain.Request, error) {
	query := r.db.WithContext(ctx).Model(&entities.Negotiation{})
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}

	var rows []entities.Negotiation
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list negotiations",
			err,
			"negotiation-list-db-001",
		)
	}

	requests := make([]*domain.Request, 0, len(rows))
	for i := range rows {
		requests = append(requests, rows[i].EtoD())
	}
	return requests, nil
}

// UpdateStatus sets the negotiation status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, publicID string, status domain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Negotiation{}).
		Where("public_id = ?", publicID).
		Update("status", status)
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update negotiation status",
			result.Error,
			"negotiation-status-db-001",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"negotiation not found",
			nil,
			"negotiation-status-404",
		)
	}
	return nil
}
