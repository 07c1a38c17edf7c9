package entities

import (
	"time"

	"ipmarket-server/internal/domain/negotiation"
)

// Negotiation represents the database schema for negotiation requests.
type Negotiation struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PublicID string             `gorm:"type:varchar(50);uniqueIndex;not null"`
	TokenID  string             `gorm:"type:varchar(78);index;not null"`
	OwnerID  string             `gorm:"type:varchar(64);index:idx_negotiation_owner_status;not null"`
	Title    string             `gorm:"type:varchar(256);not null"`
	Image    string             `gorm:"type:text"`
	PriceWei string             `gorm:"type:varchar(78)"`
	Status   negotiation.Status `gorm:"type:varchar(20);index:idx_negotiation_owner_status;not null;default:'open'"`
	Category string             `gorm:"type:varchar(64);index"`
}

// TableName specifies the table name for Negotiation.
func (Negotiation) TableName() string {
	return "negotiations"
}

// EtoD converts the database entity to the domain model.
func (n *Negotiation) EtoD() *negotiation.Request {
	return &negotiation.Request{
		PublicID:  n.PublicID,
		TokenID:   n.TokenID,
		OwnerID:   n.OwnerID,
		Title:     n.Title,
		Image:     n.Image,
		PriceWei:  n.PriceWei,
		Status:    n.Status,
		Category:  n.Category,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

// NewSchemaNegotiation creates a database entity from the domain model.
func NewSchemaNegotiation(req *negotiation.Request) *Negotiation {
	return &Negotiation{
		PublicID:  req.PublicID,
		TokenID:   req.TokenID,
		OwnerID:   req.OwnerID,
		Title:     req.Title,
		Image:     req.Image,
		PriceWei:  req.PriceWei,
		Status:    req.Status,
		Category:  req.Category,
		CreatedAt: req.CreatedAt,
		UpdatedAt: req.UpdatedAt,
	}
}
