// Package notify delivers outbound webhooks when escrow deals reach a
// terminal state, so downstream indexers and notification services can
// react without polling.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/chat"
)

// EscrowPayload is the structure sent to the webhook URL.
type EscrowPayload struct {
	Event    string `json:"event"` // "escrow.completed" or "escrow.cancelled"
	RoomID   string `json:"room_id"`
	TokenID  string `json:"token_id"`
	Seller   string `json:"seller"`
	Buyer    string `json:"buyer"`
	PriceWei string `json:"price_wei"`
	TxHash   string `json:"tx_hash,omitempty"`
	At       string `json:"at"`
}

// HTTPService delivers webhooks via HTTP POST with bounded retries.
type HTTPService struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger
	maxRetries int
	retryDelay time.Duration
}

// NewHTTPService creates the webhook service. An empty URL disables
// delivery.
func NewHTTPService(url string, log zerolog.Logger) *HTTPService {
	return &HTTPService{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log:        log.With().Str("component", "notify-webhook").Logger(),
		maxRetries: 3,
		retryDelay: 2 * time.Second,
	}
}

// DealClosed implements escrow.Notifier. Only terminal states are sent.
func (s *HTTPService) DealClosed(ctx context.Context, room *chat.Room, status chat.EscrowStatus, txHash string) {
	if s.url == "" {
		return
	}
	if !status.IsTerminal() {
		return
	}

	event := "escrow.completed"
	if status == chat.EscrowStatusCancelled {
		event = "escrow.cancelled"
	}

	payload := EscrowPayload{
		Event:    event,
		RoomID:   room.PublicID,
		TokenID:  room.TokenID,
		Seller:   room.OwnerID,
		Buyer:    room.BuyerID,
		PriceWei: room.PriceWei,
		TxHash:   txHash,
		At:       time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.send(ctx, payload); err != nil {
		s.log.Error().Err(err).Str("room_id", room.PublicID).Str("event", event).
			Msg("webhook delivery gave up")
	}
}

func (s *HTTPService) send(ctx context.Context, payload EscrowPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create webhook request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "ipmarket-server/1.0")
		req.Header.Set("X-IPMarket-Event", payload.Event)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("send webhook (attempt %d/%d): %w", attempt, s.maxRetries, err)
			s.log.Warn().Err(err).Int("attempt", attempt).Msg("webhook delivery failed")
			if attempt < s.maxRetries {
				time.Sleep(s.retryDelay)
			}
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Info().Int("status", resp.StatusCode).Str("event", payload.Event).
				Msg("webhook delivered")
			return nil
		}

		lastErr = fmt.Errorf("webhook returned status %d (attempt %d/%d)", resp.StatusCode, attempt, s.maxRetries)
		s.log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("webhook delivery failed")
		if attempt < s.maxRetries {
			time.Sleep(s.retryDelay)
		}
	}

	return lastErr
}
