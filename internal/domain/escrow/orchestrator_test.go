package escrow

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/domain/wallet"
	"ipmarket-server/internal/infrastructure/metrics"
	"ipmarket-server/internal/utils/platformerrors"
)

const (
	ownerAddr = "0x1111111111111111111111111111111111111111"
	buyerAddr = "0x2222222222222222222222222222222222222222"
	otherAddr = "0x3333333333333333333333333333333333333333"
)

type fakeSession struct{ addr string }

func (s *fakeSession) Address() string { return s.addr }

type fakeSessionStore struct{ sessions map[string]wallet.Session }

func (s *fakeSessionStore) Get(address string) (wallet.Session, bool) {
	sess, ok := s.sessions[address]
	return sess, ok
}

func connectedStore(addrs ...string) *fakeSessionStore {
	store := &fakeSessionStore{sessions: map[string]wallet.Session{}}
	for _, a := range addrs {
		store.sessions[a] = &fakeSession{addr: a}
	}
	return store
}

type fakeContract struct {
	CreateDealFunc func(ctx context.Context, signer wallet.Session, tokenID, buyer string, priceWei *big.Int) (string, error)
	FundDealFunc   func(ctx context.Context, signer wallet.Session, tokenID string, valueWei *big.Int) (string, error)
	CancelDealFunc func(ctx context.Context, signer wallet.Session, tokenID string) (string, error)
	DealFunc       func(ctx context.Context, tokenID string) (*Deal, error)

	createCalls int
	fundCalls   int
	cancelCalls int
}

func (c *fakeContract) CreateDeal(ctx context.Context, signer wallet.Session, tokenID, buyer string, priceWei *big.Int) (string, error) {
	c.createCalls++
	if c.CreateDealFunc != nil {
		return c.CreateDealFunc(ctx, signer, tokenID, buyer, priceWei)
	}
	return "0xcreate", nil
}

func (c *fakeContract) FundDeal(ctx context.Context, signer wallet.Session, tokenID string, valueWei *big.Int) (string, error) {
	c.fundCalls++
	if c.FundDealFunc != nil {
		return c.FundDealFunc(ctx, signer, tokenID, valueWei)
	}
	return "0xfund", nil
}

func (c *fakeContract) CancelDeal(ctx context.Context, signer wallet.Session, tokenID string) (string, error) {
	c.cancelCalls++
	if c.CancelDealFunc != nil {
		return c.CancelDealFunc(ctx, signer, tokenID)
	}
	return "0xcancel", nil
}

func (c *fakeContract) Deal(ctx context.Context, tokenID string) (*Deal, error) {
	if c.DealFunc != nil {
		return c.DealFunc(ctx, tokenID)
	}
	return &Deal{Exists: false}, nil
}

// fakeChat records writes so tests can assert exactly one projection update
// and one message per transition.
type fakeChat struct {
	room *chat.Room

	statusUpdates []chat.EscrowStatus
	messages      []chat.SendMessageParams

	updateErr error
	sendErr   error
}

func (c *fakeChat) CreateRoom(ctx context.Context, params chat.CreateRoomParams) (*chat.Room, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeChat) GetRoom(ctx context.Context, roomID string) (*chat.Room, error) {
	if c.room == nil || c.room.PublicID != roomID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"room not found", nil, "00000000-0000-4000-8000-000000000001")
	}
	return c.room, nil
}

func (c *fakeChat) ListRoomsForUser(ctx context.Context, userID string) ([]*chat.Room, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeChat) SendMessage(ctx context.Context, params chat.SendMessageParams) (*chat.Message, error) {
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	c.messages = append(c.messages, params)
	return &chat.Message{PublicID: "msg_test", RoomID: params.RoomID, Type: params.Type}, nil
}

func (c *fakeChat) ListMessages(ctx context.Context, roomID string) ([]*chat.Message, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeChat) UpdateEscrowStatus(ctx context.Context, roomID string, status chat.EscrowStatus) error {
	if c.updateErr != nil {
		return c.updateErr
	}
	c.statusUpdates = append(c.statusUpdates, status)
	c.room.EscrowStatus = status
	return nil
}

func (c *fakeChat) ListRoomsWithOpenEscrow(ctx context.Context) ([]*chat.Room, error) {
	if c.room != nil && !c.room.EscrowStatus.IsTerminal() {
		return []*chat.Room{c.room}, nil
	}
	return nil, nil
}

func testRoom(status chat.EscrowStatus) *chat.Room {
	return &chat.Room{
		PublicID:     "room_abc123",
		TokenID:      "42",
		OwnerID:      ownerAddr,
		BuyerID:      buyerAddr,
		Participants: []string{ownerAddr, buyerAddr},
		EscrowStatus: status,
	}
}

func newTestOrchestrator(contract *fakeContract, chats *fakeChat, store wallet.Store) *Orchestrator {
	return NewOrchestrator(contract, chats, store, nil, zerolog.Nop())
}

func TestCreateDeal(t *testing.T) {
	t.Run("owner creates from setup", func(t *testing.T) {
		contract := &fakeContract{}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusNone)}
		o := newTestOrchestrator(contract, chats, connectedStore(ownerAddr, buyerAddr))

		msg, err := o.CreateDeal(context.Background(), ownerAddr, "room_abc123", "1.5")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msg.Type != chat.MessageTypeEscrowUpdate {
			t.Errorf("expected escrow_update message, got %s", msg.Type)
		}
		if contract.createCalls != 1 {
			t.Errorf("expected 1 chain call, got %d", contract.createCalls)
		}
		if len(chats.statusUpdates) != 1 || chats.statusUpdates[0] != chat.EscrowStatusCreated {
			t.Errorf("expected one status update to created, got %v", chats.statusUpdates)
		}
		if len(chats.messages) != 1 {
			t.Fatalf("expected exactly one message, got %d", len(chats.messages))
		}
		if chats.messages[0].SenderID != ownerAddr {
			t.Errorf("expected the creating owner as sender, got %s", chats.messages[0].SenderID)
		}
		update := chats.messages[0].EscrowUpdate
		if update == nil || update.Action != "create_deal" || update.Step != 1 || update.TotalSteps != 2 {
			t.Errorf("unexpected escrow update payload: %+v", update)
		}
		if update.PriceWei != "1500000000000000000" {
			t.Errorf("expected price in wei, got %s", update.PriceWei)
		}
	})

	t.Run("buyer cannot create", func(t *testing.T) {
		contract := &fakeContract{}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusNone)}
		o := newTestOrchestrator(contract, chats, connectedStore(ownerAddr, buyerAddr))

		_, err := o.CreateDeal(context.Background(), buyerAddr, "room_abc123", "1")
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden) {
			t.Errorf("expected forbidden, got %v", err)
		}
		if contract.createCalls != 0 {
			t.Errorf("chain must not be called, got %d calls", contract.createCalls)
		}
	})

	t.Run("rejects when deal already created", func(t *testing.T) {
		contract := &fakeContract{}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusCreated)}
		o := newTestOrchestrator(contract, chats, connectedStore(ownerAddr, buyerAddr))

		_, err := o.CreateDeal(context.Background(), ownerAddr, "room_abc123", "1")
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
		if contract.createCalls != 0 {
			t.Errorf("chain must not be called, got %d calls", contract.createCalls)
		}
	})

	t.Run("disconnected wallet fails before any write", func(t *testing.T) {
		contract := &fakeContract{}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusNone)}
		o := newTestOrchestrator(contract, chats, connectedStore())

		_, err := o.CreateDeal(context.Background(), ownerAddr, "room_abc123", "1")
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeUnauthorized) {
			t.Errorf("expected unauthorized, got %v", err)
		}
		if contract.createCalls != 0 || len(chats.messages) != 0 {
			t.Error("no chain or chat write expected")
		}
	})

	t.Run("chain failure leaves projection untouched", func(t *testing.T) {
		contract := &fakeContract{
			CreateDealFunc: func(ctx context.Context, signer wallet.Session, tokenID, buyer string, priceWei *big.Int) (string, error) {
				return "", errors.New("execution reverted")
			},
		}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusNone)}
		o := newTestOrchestrator(contract, chats, connectedStore(ownerAddr))

		_, err := o.CreateDeal(context.Background(), ownerAddr, "room_abc123", "1")
		if err == nil {
			t.Fatal("expected error")
		}
		if len(chats.statusUpdates) != 0 || len(chats.messages) != 0 {
			t.Error("failed chain write must not produce chat writes")
		}
	})
}

func TestFundDeal(t *testing.T) {
	t.Run("buyer funds and deal completes", func(t *testing.T) {
		contract := &fakeContract{}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusCreated)}
		o := newTestOrchestrator(contract, chats, connectedStore(ownerAddr, buyerAddr))

		transitions := testutil.ToFloat64(metrics.EscrowTransitionsTotal.WithLabelValues("transfer_complete", "completed"))

		msg, err := o.FundDeal(context.Background(), buyerAddr, "room_abc123", "1.5")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msg == nil {
			t.Fatal("expected message")
		}
		if chats.room.EscrowStatus != chat.EscrowStatusCompleted {
			t.Errorf("expected completed, got %s", chats.room.EscrowStatus)
		}
		if chats.messages[0].SenderID != buyerAddr {
			t.Errorf("expected the funding buyer as sender, got %s", chats.messages[0].SenderID)
		}
		update := chats.messages[0].EscrowUpdate
		if update.Action != "transfer_complete" || update.Step != 2 {
			t.Errorf("unexpected escrow update: %+v", update)
		}
		if got := testutil.ToFloat64(metrics.EscrowTransitionsTotal.WithLabelValues("transfer_complete", "completed")); got != transitions+1 {
			t.Errorf("expected one transition increment, got %v", got-transitions)
		}
	})

	t.Run("owner cannot fund", func(t *testing.T) {
		contract := &fakeContract{}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusCreated)}
		o := newTestOrchestrator(contract, chats, connectedStore(ownerAddr, buyerAddr))

		_, err := o.FundDeal(context.Background(), ownerAddr, "room_abc123", "1.5")
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden) {
			t.Errorf("expected forbidden, got %v", err)
		}
		if contract.fundCalls != 0 {
			t.Error("chain must not be called")
		}
	})

	t.Run("cannot fund before create", func(t *testing.T) {
		contract := &fakeContract{}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusNone)}
		o := newTestOrchestrator(contract, chats, connectedStore(buyerAddr))

		_, err := o.FundDeal(context.Background(), buyerAddr, "room_abc123", "1.5")
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("mismatched value reverts with no chat write", func(t *testing.T) {
		contract := &fakeContract{
			FundDealFunc: func(ctx context.Context, signer wallet.Session, tokenID string, valueWei *big.Int) (string, error) {
				return "", errors.New("execution reverted: wrong amount")
			},
		}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusCreated)}
		o := newTestOrchestrator(contract, chats, connectedStore(buyerAddr))

		_, err := o.FundDeal(context.Background(), buyerAddr, "room_abc123", "0.5")
		if err == nil {
			t.Fatal("expected error")
		}
		if chats.room.EscrowStatus != chat.EscrowStatusCreated {
			t.Errorf("projection must stay created, got %s", chats.room.EscrowStatus)
		}
		if len(chats.messages) != 0 {
			t.Error("failed funding must not produce chat writes")
		}
	})
}

func TestCancel(t *testing.T) {
	t.Run("cancel from setup skips the chain", func(t *testing.T) {
		contract := &fakeContract{}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusNone)}
		o := newTestOrchestrator(contract, chats, connectedStore(ownerAddr, buyerAddr))

		_, err := o.Cancel(context.Background(), buyerAddr, "room_abc123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if contract.cancelCalls != 0 {
			t.Error("no on-chain deal exists; chain must not be called")
		}
		if chats.room.EscrowStatus != chat.EscrowStatusCancelled {
			t.Errorf("expected cancelled, got %s", chats.room.EscrowStatus)
		}
	})

	t.Run("cancel from created cancels on-chain first", func(t *testing.T) {
		contract := &fakeContract{}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusCreated)}
		o := newTestOrchestrator(contract, chats, connectedStore(ownerAddr, buyerAddr))

		_, err := o.Cancel(context.Background(), ownerAddr, "room_abc123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if contract.cancelCalls != 1 {
			t.Errorf("expected 1 chain call, got %d", contract.cancelCalls)
		}
		if chats.room.EscrowStatus != chat.EscrowStatusCancelled {
			t.Errorf("expected cancelled, got %s", chats.room.EscrowStatus)
		}
	})

	t.Run("cannot cancel a completed deal", func(t *testing.T) {
		contract := &fakeContract{}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusCompleted)}
		o := newTestOrchestrator(contract, chats, connectedStore(ownerAddr))

		_, err := o.Cancel(context.Background(), ownerAddr, "room_abc123")
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("non-participant cannot cancel", func(t *testing.T) {
		contract := &fakeContract{}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusCreated)}
		o := newTestOrchestrator(contract, chats, connectedStore(otherAddr))

		_, err := o.Cancel(context.Background(), otherAddr, "room_abc123")
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden) {
			t.Errorf("expected forbidden, got %v", err)
		}
		if contract.cancelCalls != 0 {
			t.Error("chain must not be called")
		}
	})
}

func TestReconcile(t *testing.T) {
	t.Run("repairs stale projection from chain", func(t *testing.T) {
		contract := &fakeContract{
			DealFunc: func(ctx context.Context, tokenID string) (*Deal, error) {
				return &Deal{
					TokenID:     tokenID,
					Seller:      ownerAddr,
					Buyer:       buyerAddr,
					Price:       "1000000000000000000",
					ChainStatus: ChainStatusConfirmed,
					Exists:      true,
				}, nil
			},
		}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusCreated)}
		o := newTestOrchestrator(contract, chats, connectedStore())

		changed, err := o.Reconcile(context.Background(), chats.room)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !changed {
			t.Fatal("expected projection change")
		}
		if chats.room.EscrowStatus != chat.EscrowStatusCompleted {
			t.Errorf("expected completed, got %s", chats.room.EscrowStatus)
		}
		if len(chats.messages) != 1 || chats.messages[0].EscrowUpdate.Action != "reconciled" {
			t.Errorf("expected one reconciled message, got %v", chats.messages)
		}
	})

	t.Run("no-op when projection matches", func(t *testing.T) {
		contract := &fakeContract{
			DealFunc: func(ctx context.Context, tokenID string) (*Deal, error) {
				return &Deal{ChainStatus: ChainStatusCreated, Exists: true}, nil
			},
		}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusCreated)}
		o := newTestOrchestrator(contract, chats, connectedStore())

		changed, err := o.Reconcile(context.Background(), chats.room)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if changed || len(chats.messages) != 0 {
			t.Error("expected no writes")
		}
	})

	t.Run("no-op when no deal exists", func(t *testing.T) {
		contract := &fakeContract{}
		chats := &fakeChat{room: testRoom(chat.EscrowStatusNone)}
		o := newTestOrchestrator(contract, chats, connectedStore())

		changed, err := o.Reconcile(context.Background(), chats.room)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if changed {
			t.Error("expected no change")
		}
	})

	// Drives the repair through the real chat service so the server-written
	// timeline entry faces the same participant rules as user messages. The
	// room sits at none after a mined createDeal whose projection write was
	// lost, the drift the sweep must be able to undo.
	t.Run("repair message passes the chat store participant rules", func(t *testing.T) {
		room := testRoom(chat.EscrowStatusNone)
		rooms := &memoryRoomRepo{room: room}
		messages := &memoryMessageRepo{}
		chatStore := chat.NewService(rooms, messages, nil, zerolog.Nop())

		contract := &fakeContract{
			DealFunc: func(ctx context.Context, tokenID string) (*Deal, error) {
				return &Deal{
					TokenID:     tokenID,
					Seller:      ownerAddr,
					Buyer:       buyerAddr,
					Price:       "1000000000000000000",
					ChainStatus: ChainStatusCreated,
					Exists:      true,
				}, nil
			},
		}
		o := NewOrchestrator(contract, chatStore, connectedStore(), nil, zerolog.Nop())

		changed, err := o.Reconcile(context.Background(), room)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !changed {
			t.Fatal("expected projection change")
		}
		if room.EscrowStatus != chat.EscrowStatusCreated {
			t.Errorf("expected created, got %s", room.EscrowStatus)
		}
		if len(messages.appended) != 1 {
			t.Fatalf("expected the repair message to be stored, got %d", len(messages.appended))
		}
		msg := messages.appended[0]
		if msg.SenderID != chat.SystemSenderID {
			t.Errorf("expected system sender, got %s", msg.SenderID)
		}
		if msg.Type != chat.MessageTypeEscrowUpdate || msg.EscrowUpdate == nil || msg.EscrowUpdate.Action != "reconciled" {
			t.Errorf("unexpected repair message: %+v", msg)
		}
	})
}

// memoryRoomRepo and memoryMessageRepo back the real chat service in tests
// that must go through its validation rather than a stubbed Service.
type memoryRoomRepo struct{ room *chat.Room }

func (r *memoryRoomRepo) Create(ctx context.Context, room *chat.Room) error {
	return errors.New("not implemented")
}

func (r *memoryRoomRepo) FindByPublicID(ctx context.Context, publicID string) (*chat.Room, error) {
	if r.room == nil || r.room.PublicID != publicID {
		return nil, errors.New("room not found")
	}
	return r.room, nil
}

func (r *memoryRoomRepo) FindByTriple(ctx context.Context, tokenID, ownerID, buyerID string) (*chat.Room, error) {
	return nil, nil
}

func (r *memoryRoomRepo) FindByFilter(ctx context.Context, filter chat.RoomFilter) ([]*chat.Room, error) {
	return []*chat.Room{r.room}, nil
}

func (r *memoryRoomRepo) UpdateEscrowStatus(ctx context.Context, publicID string, status chat.EscrowStatus) error {
	r.room.EscrowStatus = status
	return nil
}

func (r *memoryRoomRepo) UpdateLastMessage(ctx context.Context, publicID string, content string) error {
	return nil
}

type memoryMessageRepo struct{ appended []*chat.Message }

func (r *memoryMessageRepo) Append(ctx context.Context, msg *chat.Message) error {
	r.appended = append(r.appended, msg)
	return nil
}

func (r *memoryMessageRepo) ListByRoom(ctx context.Context, roomPublicID string) ([]*chat.Message, error) {
	return r.appended, nil
}
