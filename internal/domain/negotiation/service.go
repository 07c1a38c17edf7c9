package negotiation

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/utils/idgen"
	"ipmarket-server/internal/utils/platformerrors"
)

// CreateParams carries the inputs for opening a negotiation request.
type CreateParams struct {
	TokenID  string
	OwnerID  string
	Title    string
	Image    string
	PriceWei string
	Category string
}

// Service exposes negotiation-request operations.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*Request, error)
	Get(ctx context.Context, publicID string) (*Request, error)
	List(ctx context.Context, filter Filter) ([]*Request, error)
	// StartChat opens (or reuses) the chat room between the negotiation's
	// owner and the buyer, and flips the request to in_progress.
	StartChat(ctx context.Context, publicID, buyerID string) (*chat.Room, error)
	Complete(ctx context.Context, publicID string) error
	Cancel(ctx context.Context, publicID string) error
}

// DefaultService implements Service.
type DefaultService struct {
	repo  Repository
	chats chat.Service
	log   zerolog.Logger
}

// NewService creates the negotiation service.
func NewService(repo Repository, chats chat.Service, log zerolog.Logger) *DefaultService {
	return &DefaultService{
		repo:  repo,
		chats: chats,
		log:   log.With().Str("component", "negotiation-service").Logger(),
	}
}

// Create implements Service.
func (s *DefaultService) Create(ctx context.Context, params CreateParams) (*Request, error) {
	if strings.TrimSpace(params.TokenID) == "" || strings.TrimSpace(params.OwnerID) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"token id and owner id are required", nil, "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d")
	}

	publicID, err := idgen.GenerateSecureID(idgen.PrefixNegotiation, 24)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "generate negotiation id")
	}

	now := time.Now().UTC()
	req := &Request{
		PublicID:  publicID,
		TokenID:   params.TokenID,
		OwnerID:   params.OwnerID,
		Title:     params.Title,
		Image:     params.Image,
		PriceWei:  params.PriceWei,
		Status:    StatusOpen,
		Category:  params.Category,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "create negotiation")
	}
	return req, nil
}

// Get implements Service.
func (s *DefaultService) Get(ctx context.Context, publicID string) (*Request, error) {
	return s.repo.FindByPublicID(ctx, publicID)
}

// List implements Service.
func (s *DefaultService) List(ctx context.Context, filter Filter) ([]*Request, error) {
	return s.repo.FindByFilter(ctx, filter)
}

// StartChat implements Service.
func (s *DefaultService) StartChat(ctx context.Context, publicID, buyerID string) (*chat.Room, error) {
	req, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load negotiation")
	}
	if req.Status.IsTerminal() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			"negotiation is closed", nil, "1b2c3d4e-5f6a-4b7c-9d8e-0f1a2b3c4d5e")
	}
	if buyerID == req.OwnerID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"owner cannot negotiate with themselves", nil, "2c3d4e5f-6a7b-4c8d-ae9f-1a2b3c4d5e6f")
	}

	room, err := s.chats.CreateRoom(ctx, chat.CreateRoomParams{
		TokenID:  req.TokenID,
		OwnerID:  req.OwnerID,
		BuyerID:  buyerID,
		IPTitle:  req.Title,
		IPImage:  req.Image,
		PriceWei: req.PriceWei,
	})
	if err != nil {
		return nil, err
	}

	if req.Status == StatusOpen {
		if err := s.repo.UpdateStatus(ctx, publicID, StatusInProgress); err != nil {
			// The room already exists; a stale open status is repaired on
			// the next StartChat.
			s.log.Warn().Err(err).Str("negotiation_id", publicID).Msg("flip negotiation to in_progress")
		}
	}

	return room, nil
}

// Complete implements Service.
func (s *DefaultService) Complete(ctx context.Context, publicID string) error {
	return s.transition(ctx, publicID, StatusCompleted)
}

// Cancel implements Service.
func (s *DefaultService) Cancel(ctx context.Context, publicID string) error {
	return s.transition(ctx, publicID, StatusCancelled)
}

func (s *DefaultService) transition(ctx context.Context, publicID string, target Status) error {
	req, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load negotiation")
	}
	if req.Status.IsTerminal() {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			"negotiation is already closed", nil, "3d4e5f6a-7b8c-4d9e-bfa0-2b3c4d5e6f7a")
	}
	if err := s.repo.UpdateStatus(ctx, publicID, target); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "update negotiation status")
	}
	return nil
}
