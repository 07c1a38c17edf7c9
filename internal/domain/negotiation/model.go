package negotiation

import (
	"context"
	"time"
)

// Status is the lifecycle of a negotiation request.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal returns true when the negotiation accepts no further action.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Request is an owner's public invitation to negotiate price and terms for
// one token, prior to any chat existing.
type Request struct {
	PublicID  string    `json:"id"`
	TokenID   string    `json:"token_id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Image     string    `json:"image"`
	PriceWei  string    `json:"price_wei"`
	Status    Status    `json:"status"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filter narrows negotiation queries.
type Filter struct {
	OwnerID  *string
	Status   *Status
	Category *string
}

// Repository persists negotiation requests.
type Repository interface {
	Create(ctx context.Context, req *Request) error
	FindByPublicID(ctx context.Context, publicID string) (*Request, error)
	FindByFilter(ctx context.Context, filter Filter) ([]*Request, error)
	UpdateStatus(ctx context.Context, publicID string, status Status) error
}
