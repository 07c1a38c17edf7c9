package negotiation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/utils/platformerrors"
)

type fakeRepo struct {
	CreateFunc         func(ctx context.Context, req *Request) error
	FindByPublicIDFunc func(ctx context.Context, publicID string) (*Request, error)
	FindByFilterFunc   func(ctx context.Context, filter Filter) ([]*Request, error)
	UpdateStatusFunc   func(ctx context.Context, publicID string, status Status) error

	created       []*Request
	statusUpdates []Status
}

func (f *fakeRepo) Create(ctx context.Context, req *Request) error {
	f.created = append(f.created, req)
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, req)
	}
	return nil
}

func (f *fakeRepo) FindByPublicID(ctx context.Context, publicID string) (*Request, error) {
	if f.FindByPublicIDFunc != nil {
		return f.FindByPublicIDFunc(ctx, publicID)
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
		platformerrors.ErrorTypeNotFound, "negotiation not found", nil, "negotiation-find-404")
}

func (f *fakeRepo) FindByFilter(ctx context.Context, filter Filter) ([]*Request, error) {
	if f.FindByFilterFunc != nil {
		return f.FindByFilterFunc(ctx, filter)
	}
	return nil, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, publicID string, status Status) error {
	f.statusUpdates = append(f.statusUpdates, status)
	if f.UpdateStatusFunc != nil {
		return f.UpdateStatusFunc(ctx, publicID, status)
	}
	return nil
}

type fakeChatService struct {
	CreateRoomFunc func(ctx context.Context, params chat.CreateRoomParams) (*chat.Room, error)

	roomParams []chat.CreateRoomParams
}

func (f *fakeChatService) CreateRoom(ctx context.Context, params chat.CreateRoomParams) (*chat.Room, error) {
	f.roomParams = append(f.roomParams, params)
	if f.CreateRoomFunc != nil {
		return f.CreateRoomFunc(ctx, params)
	}
	return &chat.Room{
		PublicID:     "chat_room_test",
		TokenID:      params.TokenID,
		OwnerID:      params.OwnerID,
		BuyerID:      params.BuyerID,
		Participants: []string{params.OwnerID, params.BuyerID},
	}, nil
}

func (f *fakeChatService) GetRoom(ctx context.Context, roomID string) (*chat.Room, error) {
	return nil, nil
}

func (f *fakeChatService) ListRoomsForUser(ctx context.Context, userID string) ([]*chat.Room, error) {
	return nil, nil
}

func (f *fakeChatService) SendMessage(ctx context.Context, params chat.SendMessageParams) (*chat.Message, error) {
	return nil, nil
}

func (f *fakeChatService) ListMessages(ctx context.Context, roomID string) ([]*chat.Message, error) {
	return nil, nil
}

func (f *fakeChatService) UpdateEscrowStatus(ctx context.Context, roomID string, status chat.EscrowStatus) error {
	return nil
}

func (f *fakeChatService) ListRoomsWithOpenEscrow(ctx context.Context) ([]*chat.Room, error) {
	return nil, nil
}

const (
	ownerAddr = "0x1111111111111111111111111111111111111111"
	buyerAddr = "0x2222222222222222222222222222222222222222"
)

func openRequest() *Request {
	return &Request{
		PublicID:  "neg_test",
		TokenID:   "42",
		OwnerID:   ownerAddr,
		Title:     "Sunset Render",
		PriceWei:  "1500000000000000000",
		Status:    StatusOpen,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("opens a request", func(t *testing.T) {
		repo := &fakeRepo{}
		svc := NewService(repo, &fakeChatService{}, zerolog.Nop())

		req, err := svc.Create(ctx, CreateParams{
			TokenID:  "42",
			OwnerID:  ownerAddr,
			Title:    "Sunset Render",
			PriceWei: "1500000000000000000",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Status != StatusOpen {
			t.Fatalf("new request must be open, got %s", req.Status)
		}
		if req.PublicID == "" {
			t.Fatal("expected a generated public id")
		}
		if len(repo.created) != 1 {
			t.Fatalf("expected one create, got %d", len(repo.created))
		}
	})

	t.Run("rejects missing identifiers", func(t *testing.T) {
		svc := NewService(&fakeRepo{}, &fakeChatService{}, zerolog.Nop())

		_, err := svc.Create(ctx, CreateParams{TokenID: "42"})
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestStartChat(t *testing.T) {
	ctx := context.Background()

	t.Run("opens the room and flips to in_progress", func(t *testing.T) {
		req := openRequest()
		repo := &fakeRepo{
			FindByPublicIDFunc: func(ctx context.Context, publicID string) (*Request, error) {
				return req, nil
			},
		}
		chats := &fakeChatService{}
		svc := NewService(repo, chats, zerolog.Nop())

		room, err := svc.StartChat(ctx, req.PublicID, buyerAddr)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if room == nil || room.BuyerID != buyerAddr {
			t.Fatalf("unexpected room: %+v", room)
		}
		if len(chats.roomParams) != 1 {
			t.Fatalf("expected one room creation, got %d", len(chats.roomParams))
		}
		if got := chats.roomParams[0]; got.TokenID != "42" || got.OwnerID != ownerAddr {
			t.Fatalf("room inherits the negotiation's token and owner, got %+v", got)
		}
		if len(repo.statusUpdates) != 1 || repo.statusUpdates[0] != StatusInProgress {
			t.Fatalf("expected in_progress update, got %v", repo.statusUpdates)
		}
	})

	t.Run("in_progress request reuses the room without another flip", func(t *testing.T) {
		req := openRequest()
		req.Status = StatusInProgress
		repo := &fakeRepo{
			FindByPublicIDFunc: func(ctx context.Context, publicID string) (*Request, error) {
				return req, nil
			},
		}
		svc := NewService(repo, &fakeChatService{}, zerolog.Nop())

		if _, err := svc.StartChat(ctx, req.PublicID, buyerAddr); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(repo.statusUpdates) != 0 {
			t.Fatalf("no status update expected, got %v", repo.statusUpdates)
		}
	})

	t.Run("closed request refuses new chats", func(t *testing.T) {
		req := openRequest()
		req.Status = StatusCompleted
		repo := &fakeRepo{
			FindByPublicIDFunc: func(ctx context.Context, publicID string) (*Request, error) {
				return req, nil
			},
		}
		chats := &fakeChatService{}
		svc := NewService(repo, chats, zerolog.Nop())

		_, err := svc.StartChat(ctx, req.PublicID, buyerAddr)
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		if len(chats.roomParams) != 0 {
			t.Fatal("no room may be created for a closed negotiation")
		}
	})

	t.Run("owner cannot negotiate with themselves", func(t *testing.T) {
		req := openRequest()
		repo := &fakeRepo{
			FindByPublicIDFunc: func(ctx context.Context, publicID string) (*Request, error) {
				return req, nil
			},
		}
		svc := NewService(repo, &fakeChatService{}, zerolog.Nop())

		_, err := svc.StartChat(ctx, req.PublicID, ownerAddr)
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("complete closes an open request", func(t *testing.T) {
		req := openRequest()
		repo := &fakeRepo{
			FindByPublicIDFunc: func(ctx context.Context, publicID string) (*Request, error) {
				return req, nil
			},
		}
		svc := NewService(repo, &fakeChatService{}, zerolog.Nop())

		if err := svc.Complete(ctx, req.PublicID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(repo.statusUpdates) != 1 || repo.statusUpdates[0] != StatusCompleted {
			t.Fatalf("expected completed update, got %v", repo.statusUpdates)
		}
	})

	t.Run("cancel closes an open request", func(t *testing.T) {
		req := openRequest()
		repo := &fakeRepo{
			FindByPublicIDFunc: func(ctx context.Context, publicID string) (*Request, error) {
				return req, nil
			},
		}
		svc := NewService(repo, &fakeChatService{}, zerolog.Nop())

		if err := svc.Cancel(ctx, req.PublicID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(repo.statusUpdates) != 1 || repo.statusUpdates[0] != StatusCancelled {
			t.Fatalf("expected cancelled update, got %v", repo.statusUpdates)
		}
	})

	t.Run("terminal requests stay closed", func(t *testing.T) {
		req := openRequest()
		req.Status = StatusCancelled
		repo := &fakeRepo{
			FindByPublicIDFunc: func(ctx context.Context, publicID string) (*Request, error) {
				return req, nil
			},
		}
		svc := NewService(repo, &fakeChatService{}, zerolog.Nop())

		err := svc.Complete(ctx, req.PublicID)
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		if len(repo.statusUpdates) != 0 {
			t.Fatalf("no update expected, got %v", repo.statusUpdates)
		}
	})
}
