package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/infrastructure/auth"
	"ipmarket-server/internal/interfaces/httpserver/handlers"
)

// MockChatService is a mock implementation of chat.Service for testing.
type MockChatService struct {
	CreateRoomFunc              func(ctx context.Context, params chat.CreateRoomParams) (*chat.Room, error)
	GetRoomFunc                 func(ctx context.Context, roomID string) (*chat.Room, error)
	ListRoomsForUserFunc        func(ctx context.Context, userID string) ([]*chat.Room, error)
	SendMessageFunc             func(ctx context.Context, params chat.SendMessageParams) (*chat.Message, error)
	ListMessagesFunc            func(ctx context.Context, roomID string) ([]*chat.Message, error)
	UpdateEscrowStatusFunc      func(ctx context.Context, roomID string, status chat.EscrowStatus) error
	ListRoomsWithOpenEscrowFunc func(ctx context.Context) ([]*chat.Room, error)
}

func (m *MockChatService) CreateRoom(ctx context.Context, params chat.CreateRoomParams) (*chat.Room, error) {
	if m.CreateRoomFunc != nil {
		return m.CreateRoomFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockChatService) GetRoom(ctx context.Context, roomID string) (*chat.Room, error) {
	if m.GetRoomFunc != nil {
		return m.GetRoomFunc(ctx, roomID)
	}
	return nil, nil
}

func (m *MockChatService) ListRoomsForUser(ctx context.Context, userID string) ([]*chat.Room, error) {
	if m.ListRoomsForUserFunc != nil {
		return m.ListRoomsForUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockChatService) SendMessage(ctx context.Context, params chat.SendMessageParams) (*chat.Message, error) {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockChatService) ListMessages(ctx context.Context, roomID string) ([]*chat.Message, error) {
	if m.ListMessagesFunc != nil {
		return m.ListMessagesFunc(ctx, roomID)
	}
	return nil, nil
}

func (m *MockChatService) UpdateEscrowStatus(ctx context.Context, roomID string, status chat.EscrowStatus) error {
	if m.UpdateEscrowStatusFunc != nil {
		return m.UpdateEscrowStatusFunc(ctx, roomID, status)
	}
	return nil
}

func (m *MockChatService) ListRoomsWithOpenEscrow(ctx context.Context) ([]*chat.Room, error) {
	if m.ListRoomsWithOpenEscrowFunc != nil {
		return m.ListRoomsWithOpenEscrowFunc(ctx)
	}
	return nil, nil
}

const (
	ownerAddr = "0x1111111111111111111111111111111111111111"
	buyerAddr = "0x2222222222222222222222222222222222222222"
	otherAddr = "0x3333333333333333333333333333333333333333"
)

func testRoom() *chat.Room {
	return &chat.Room{
		PublicID:     "chat_room_abc",
		TokenID:      "42",
		OwnerID:      ownerAddr,
		BuyerID:      buyerAddr,
		Participants: []string{ownerAddr, buyerAddr},
		EscrowStatus: chat.EscrowStatusNone,
	}
}

// newChatRouter wires the handler under a router that injects the given
// wallet identity, mirroring what the auth middleware does in production.
func newChatRouter(service chat.Service, wallet string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		if wallet != "" {
			c.Set(auth.ContextKeyWallet, wallet)
		}
		c.Next()
	})

	handler := handlers.NewChatHandler(service, zerolog.Nop())
	engine.GET("/v1/chats", handler.ListRooms)
	engine.GET("/v1/chats/:id", handler.GetRoom)
	engine.GET("/v1/chats/:id/messages", handler.ListMessages)
	engine.POST("/v1/chats/:id/messages", handler.SendMessage)
	return engine
}

func TestListRooms(t *testing.T) {
	t.Run("returns the caller's rooms", func(t *testing.T) {
		var requestedUser string
		service := &MockChatService{
			ListRoomsForUserFunc: func(ctx context.Context, userID string) ([]*chat.Room, error) {
				requestedUser = userID
				return []*chat.Room{testRoom()}, nil
			},
		}
		router := newChatRouter(service, buyerAddr)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if requestedUser != buyerAddr {
			t.Fatalf("expected lookup for %s, got %s", buyerAddr, requestedUser)
		}

		var body struct {
			Data []chat.Room `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if len(body.Data) != 1 || body.Data[0].PublicID != "chat_room_abc" {
			t.Fatalf("unexpected rooms payload: %+v", body.Data)
		}
	})

	t.Run("rejects anonymous callers", func(t *testing.T) {
		router := newChatRouter(&MockChatService{}, "")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("empty result serializes as an empty array", func(t *testing.T) {
		service := &MockChatService{
			ListRoomsForUserFunc: func(ctx context.Context, userID string) ([]*chat.Room, error) {
				return nil, nil
			},
		}
		router := newChatRouter(service, buyerAddr)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Body.String() != `{"data":[]}` {
			t.Fatalf("expected empty data array, got %s", rec.Body.String())
		}
	})
}

func TestGetRoom(t *testing.T) {
	service := &MockChatService{
		GetRoomFunc: func(ctx context.Context, roomID string) (*chat.Room, error) {
			return testRoom(), nil
		},
	}

	t.Run("participant sees the room", func(t *testing.T) {
		router := newChatRouter(service, ownerAddr)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/chats/chat_room_abc", nil)
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("outsider is rejected", func(t *testing.T) {
		router := newChatRouter(service, otherAddr)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/chats/chat_room_abc", nil)
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})
}

func TestSendMessage(t *testing.T) {
	t.Run("sender identity comes from the wallet, not the body", func(t *testing.T) {
		var got chat.SendMessageParams
		service := &MockChatService{
			SendMessageFunc: func(ctx context.Context, params chat.SendMessageParams) (*chat.Message, error) {
				got = params
				return &chat.Message{PublicID: "chat_msg_1", RoomID: params.RoomID, SenderID: params.SenderID, Content: params.Content, Type: chat.MessageTypeText}, nil
			},
		}
		router := newChatRouter(service, buyerAddr)

		payload, _ := json.Marshal(map[string]any{
			"content":   "would you take 1.2?",
			"sender_id": otherAddr,
		})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/chats/chat_room_abc/messages", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.SenderID != buyerAddr {
			t.Fatalf("expected sender %s, got %s", buyerAddr, got.SenderID)
		}
		if got.RoomID != "chat_room_abc" {
			t.Fatalf("expected room from path, got %s", got.RoomID)
		}
	})

	t.Run("offer body defaults type and status", func(t *testing.T) {
		var got chat.SendMessageParams
		service := &MockChatService{
			SendMessageFunc: func(ctx context.Context, params chat.SendMessageParams) (*chat.Message, error) {
				got = params
				return &chat.Message{PublicID: "chat_msg_2"}, nil
			},
		}
		router := newChatRouter(service, buyerAddr)

		payload, _ := json.Marshal(map[string]any{
			"content": "offer attached",
			"offer": map[string]any{
				"token_id":  "42",
				"price_wei": "1200000000000000000",
			},
		})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/chats/chat_room_abc/messages", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Type != chat.MessageTypeOffer {
			t.Fatalf("expected offer type, got %s", got.Type)
		}
		if got.Offer == nil || got.Offer.Status != chat.OfferStatusPending {
			t.Fatalf("expected pending offer, got %+v", got.Offer)
		}
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		router := newChatRouter(&MockChatService{}, buyerAddr)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/chats/chat_room_abc/messages", bytes.NewReader([]byte("{")))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
