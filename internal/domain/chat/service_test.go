package chat

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ipmarket-server/internal/utils/platformerrors"
)

type fakeRoomRepo struct {
	CreateFunc             func(ctx context.Context, room *Room) error
	FindByPublicIDFunc     func(ctx context.Context, publicID string) (*Room, error)
	FindByTripleFunc       func(ctx context.Context, tokenID, ownerID, buyerID string) (*Room, error)
	FindByFilterFunc       func(ctx context.Context, filter RoomFilter) ([]*Room, error)
	UpdateEscrowStatusFunc func(ctx context.Context, publicID string, status EscrowStatus) error
	UpdateLastMessageFunc  func(ctx context.Context, publicID string, content string) error

	created []*Room
}

func (f *fakeRoomRepo) Create(ctx context.Context, room *Room) error {
	f.created = append(f.created, room)
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, room)
	}
	return nil
}

func (f *fakeRoomRepo) FindByPublicID(ctx context.Context, publicID string) (*Room, error) {
	if f.FindByPublicIDFunc != nil {
		return f.FindByPublicIDFunc(ctx, publicID)
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
		platformerrors.ErrorTypeNotFound, "chat room not found", nil, "chat-room-find-404")
}

func (f *fakeRoomRepo) FindByTriple(ctx context.Context, tokenID, ownerID, buyerID string) (*Room, error) {
	if f.FindByTripleFunc != nil {
		return f.FindByTripleFunc(ctx, tokenID, ownerID, buyerID)
	}
	return nil, nil
}

func (f *fakeRoomRepo) FindByFilter(ctx context.Context, filter RoomFilter) ([]*Room, error) {
	if f.FindByFilterFunc != nil {
		return f.FindByFilterFunc(ctx, filter)
	}
	return nil, nil
}

func (f *fakeRoomRepo) UpdateEscrowStatus(ctx context.Context, publicID string, status EscrowStatus) error {
	if f.UpdateEscrowStatusFunc != nil {
		return f.UpdateEscrowStatusFunc(ctx, publicID, status)
	}
	return nil
}

func (f *fakeRoomRepo) UpdateLastMessage(ctx context.Context, publicID string, content string) error {
	if f.UpdateLastMessageFunc != nil {
		return f.UpdateLastMessageFunc(ctx, publicID, content)
	}
	return nil
}

type fakeMessageRepo struct {
	AppendFunc     func(ctx context.Context, msg *Message) error
	ListByRoomFunc func(ctx context.Context, roomPublicID string) ([]*Message, error)

	appended []*Message
}

func (f *fakeMessageRepo) Append(ctx context.Context, msg *Message) error {
	f.appended = append(f.appended, msg)
	if f.AppendFunc != nil {
		return f.AppendFunc(ctx, msg)
	}
	return nil
}

func (f *fakeMessageRepo) ListByRoom(ctx context.Context, roomPublicID string) ([]*Message, error) {
	if f.ListByRoomFunc != nil {
		return f.ListByRoomFunc(ctx, roomPublicID)
	}
	return nil, nil
}

type fakePublisher struct {
	events []Event
}

func (f *fakePublisher) PublishRoomEvent(ctx context.Context, event Event) error {
	f.events = append(f.events, event)
	return nil
}

const (
	testOwner = "0x1111111111111111111111111111111111111111"
	testBuyer = "0x2222222222222222222222222222222222222222"
)

func openRoom() *Room {
	return &Room{
		PublicID:     "chat_room_test",
		TokenID:      "42",
		OwnerID:      testOwner,
		BuyerID:      testBuyer,
		Participants: []string{testOwner, testBuyer},
		EscrowStatus: EscrowStatusNone,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a fresh room", func(t *testing.T) {
		rooms := &fakeRoomRepo{}
		events := &fakePublisher{}
		svc := NewService(rooms, &fakeMessageRepo{}, events, zerolog.Nop())

		room, err := svc.CreateRoom(ctx, CreateRoomParams{
			TokenID: "42",
			OwnerID: testOwner,
			BuyerID: testBuyer,
			IPTitle: "Sunset Render",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if room.PublicID == "" {
			t.Fatal("expected a generated public id")
		}
		if room.EscrowStatus != EscrowStatusNone {
			t.Fatalf("new room must start with no escrow, got %s", room.EscrowStatus)
		}
		if len(room.Participants) != 2 {
			t.Fatalf("expected both participants, got %v", room.Participants)
		}
		if len(rooms.created) != 1 {
			t.Fatalf("expected one repo create, got %d", len(rooms.created))
		}
		if len(events.events) != 1 || events.events[0].Type != EventRoomUpdated {
			t.Fatalf("expected a room.updated event, got %+v", events.events)
		}
	})

	t.Run("returns the existing room for the same triple", func(t *testing.T) {
		existing := openRoom()
		rooms := &fakeRoomRepo{
			FindByTripleFunc: func(ctx context.Context, tokenID, ownerID, buyerID string) (*Room, error) {
				return existing, nil
			},
		}
		svc := NewService(rooms, &fakeMessageRepo{}, nil, zerolog.Nop())

		room, err := svc.CreateRoom(ctx, CreateRoomParams{
			TokenID: "42",
			OwnerID: testOwner,
			BuyerID: testBuyer,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if room != existing {
			t.Fatal("expected the existing room back")
		}
		if len(rooms.created) != 0 {
			t.Fatal("no new room may be created for an existing triple")
		}
	})

	t.Run("rejects owner chatting with themselves", func(t *testing.T) {
		svc := NewService(&fakeRoomRepo{}, &fakeMessageRepo{}, nil, zerolog.Nop())

		_, err := svc.CreateRoom(ctx, CreateRoomParams{
			TokenID: "42",
			OwnerID: testOwner,
			BuyerID: testOwner,
		})
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("rejects missing token id", func(t *testing.T) {
		svc := NewService(&fakeRoomRepo{}, &fakeMessageRepo{}, nil, zerolog.Nop())

		_, err := svc.CreateRoom(ctx, CreateRoomParams{OwnerID: testOwner, BuyerID: testBuyer})
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	room := openRoom()
	rooms := &fakeRoomRepo{
		FindByPublicIDFunc: func(ctx context.Context, publicID string) (*Room, error) {
			return room, nil
		},
	}

	t.Run("participant message is appended and published", func(t *testing.T) {
		messages := &fakeMessageRepo{}
		events := &fakePublisher{}
		svc := NewService(rooms, messages, events, zerolog.Nop())

		msg, err := svc.SendMessage(ctx, SendMessageParams{
			RoomID:   room.PublicID,
			SenderID: testBuyer,
			Content:  "how about 1.2?",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msg.Type != MessageTypeText {
			t.Fatalf("type must default to text, got %s", msg.Type)
		}
		if len(messages.appended) != 1 {
			t.Fatalf("expected one append, got %d", len(messages.appended))
		}
		if len(events.events) != 1 || events.events[0].Type != EventMessageCreated {
			t.Fatalf("expected a message.created event, got %+v", events.events)
		}
	})

	t.Run("outsider is rejected", func(t *testing.T) {
		messages := &fakeMessageRepo{}
		svc := NewService(rooms, messages, nil, zerolog.Nop())

		_, err := svc.SendMessage(ctx, SendMessageParams{
			RoomID:   room.PublicID,
			SenderID: "0x3333333333333333333333333333333333333333",
			Content:  "let me in",
		})
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
		if len(messages.appended) != 0 {
			t.Fatal("rejected message must not be appended")
		}
	})

	t.Run("system messages bypass the participant check", func(t *testing.T) {
		messages := &fakeMessageRepo{}
		svc := NewService(rooms, messages, nil, zerolog.Nop())

		_, err := svc.SendMessage(ctx, SendMessageParams{
			RoomID:   room.PublicID,
			SenderID: "system",
			Content:  "deal cancelled",
			Type:     MessageTypeSystem,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(messages.appended) != 1 {
			t.Fatal("system message must be appended")
		}
	})

	t.Run("server sender can write escrow updates", func(t *testing.T) {
		messages := &fakeMessageRepo{}
		svc := NewService(rooms, messages, nil, zerolog.Nop())

		_, err := svc.SendMessage(ctx, SendMessageParams{
			RoomID:   room.PublicID,
			SenderID: SystemSenderID,
			Content:  "Escrow status updated to created from on-chain state.",
			Type:     MessageTypeEscrowUpdate,
			EscrowUpdate: &EscrowUpdate{
				Status: EscrowStatusCreated,
				Action: "reconciled",
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(messages.appended) != 1 {
			t.Fatal("server-written escrow update must be appended")
		}
	})

	t.Run("empty text message is rejected", func(t *testing.T) {
		svc := NewService(rooms, &fakeMessageRepo{}, nil, zerolog.Nop())

		_, err := svc.SendMessage(ctx, SendMessageParams{
			RoomID:   room.PublicID,
			SenderID: testBuyer,
			Content:  "   ",
		})
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("last-message cache failure does not fail the send", func(t *testing.T) {
		failing := &fakeRoomRepo{
			FindByPublicIDFunc: func(ctx context.Context, publicID string) (*Room, error) {
				return room, nil
			},
			UpdateLastMessageFunc: func(ctx context.Context, publicID string, content string) error {
				return platformerrors.NewError(ctx, platformerrors.LayerRepository,
					platformerrors.ErrorTypeDatabaseError, "update failed", nil, "chat-room-last-msg-001")
			},
		}
		svc := NewService(failing, &fakeMessageRepo{}, nil, zerolog.Nop())

		if _, err := svc.SendMessage(ctx, SendMessageParams{
			RoomID:   room.PublicID,
			SenderID: testBuyer,
			Content:  "still delivered",
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestListRoomsForUser(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	older := now.Add(-time.Hour)

	quiet := openRoom()
	quiet.PublicID = "chat_room_quiet"
	quiet.CreatedAt = older

	active := openRoom()
	active.PublicID = "chat_room_active"
	active.CreatedAt = older.Add(-time.Hour)
	active.LastMessageAt = &now

	rooms := &fakeRoomRepo{
		FindByFilterFunc: func(ctx context.Context, filter RoomFilter) ([]*Room, error) {
			if filter.ParticipantID == nil || *filter.ParticipantID != testBuyer {
				t.Fatalf("expected participant filter for %s, got %+v", testBuyer, filter)
			}
			return []*Room{quiet, active}, nil
		},
	}
	svc := NewService(rooms, &fakeMessageRepo{}, nil, zerolog.Nop())

	got, err := svc.ListRoomsForUser(ctx, testBuyer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(got))
	}
	// Most recent activity first, last message beating creation time.
	if got[0].PublicID != "chat_room_active" {
		t.Fatalf("expected the active room first, got %s", got[0].PublicID)
	}
}

func TestListRoomsWithOpenEscrow(t *testing.T) {
	ctx := context.Background()
	rooms := &fakeRoomRepo{
		FindByFilterFunc: func(ctx context.Context, filter RoomFilter) ([]*Room, error) {
			// Both non-terminal statuses must be swept. A room stuck at
			// none after a mined createDeal is only repairable this way.
			want := map[EscrowStatus]bool{EscrowStatusNone: false, EscrowStatusCreated: false}
			for _, status := range filter.EscrowStatuses {
				if _, ok := want[status]; !ok {
					t.Fatalf("unexpected status in sweep filter: %s", status)
				}
				want[status] = true
			}
			for status, seen := range want {
				if !seen {
					t.Fatalf("sweep filter misses %s, got %+v", status, filter.EscrowStatuses)
				}
			}
			return []*Room{openRoom()}, nil
		},
	}
	svc := NewService(rooms, &fakeMessageRepo{}, nil, zerolog.Nop())

	got, err := svc.ListRoomsWithOpenEscrow(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 room, got %d", len(got))
	}
}

func TestUpdateEscrowStatus(t *testing.T) {
	ctx := context.Background()
	room := openRoom()

	events := &fakePublisher{}
	rooms := &fakeRoomRepo{
		FindByPublicIDFunc: func(ctx context.Context, publicID string) (*Room, error) {
			return room, nil
		},
		UpdateEscrowStatusFunc: func(ctx context.Context, publicID string, status EscrowStatus) error {
			room.EscrowStatus = status
			return nil
		},
	}
	svc := NewService(rooms, &fakeMessageRepo{}, events, zerolog.Nop())

	if err := svc.UpdateEscrowStatus(ctx, room.PublicID, EscrowStatusCreated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if room.EscrowStatus != EscrowStatusCreated {
		t.Fatalf("expected created, got %s", room.EscrowStatus)
	}
	if len(events.events) != 1 || events.events[0].Type != EventEscrowUpdated {
		t.Fatalf("expected an escrow.updated event, got %+v", events.events)
	}
}
