package chat

import (
	"time"
)

// EscrowStatus is the chat room's projection of the on-chain deal state.
// It is maintained by the escrow orchestrator and the reconciler only; the
// chain remains authoritative and the projection may briefly trail it.
type EscrowStatus string

const (
	EscrowStatusNone      EscrowStatus = "none"
	EscrowStatusCreated   EscrowStatus = "created"
	EscrowStatusCompleted EscrowStatus = "completed"
	EscrowStatusCancelled EscrowStatus = "cancelled"
)

// IsTerminal returns true when no further escrow action is possible.
func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowStatusCompleted || s == EscrowStatusCancelled
}

// MessageType categorises chat messages.
type MessageType string

const (
	MessageTypeText         MessageType = "text"
	MessageTypeOffer        MessageType = "offer"
	MessageTypeEscrowUpdate MessageType = "escrow_update"
	MessageTypeSystem       MessageType = "system"
)

// SystemSenderID marks messages the server writes itself, such as
// reconciler repairs. It is exempt from the participant check.
const SystemSenderID = "system"

// OfferStatus is the lifecycle of a price offer message.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
)

// Room is a two-participant conversation scoped to one token and one
// owner/buyer pair. At most one active room exists per (token, owner, buyer)
// triple; uniqueness is lookup-before-create, so a concurrent first contact
// can still race (accepted limitation).
type Room struct {
	PublicID     string       `json:"id"`
	TokenID      string       `json:"token_id"`
	OwnerID      string       `json:"owner_id"`
	BuyerID      string       `json:"buyer_id"`
	Participants []string     `json:"participants"`
	EscrowStatus EscrowStatus `json:"escrow_status"`

	// Denormalized IP preview, kept so room lists render without a
	// metadata round-trip.
	IPTitle  string  `json:"ip_title"`
	IPImage  string  `json:"ip_image"`
	PriceWei string  `json:"price_wei"`
	MediaURL *string `json:"media_url,omitempty"`

	LastMessage   *string    `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasParticipant reports whether the given user belongs to the room.
func (r *Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Message is one append-only item in a room's timeline, ordered by
// creation time ascending. Messages are never mutated after creation.
type Message struct {
	PublicID     string        `json:"id"`
	RoomID       string        `json:"room_id"`
	SenderID     string        `json:"sender_id"`
	Content      string        `json:"content"`
	Type         MessageType   `json:"type"`
	Offer        *OfferPayload `json:"offer,omitempty"`
	EscrowUpdate *EscrowUpdate `json:"escrow_update,omitempty"`
	Attachments  []Attachment  `json:"attachments,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// OfferPayload carries a structured price offer.
type OfferPayload struct {
	TokenID  string      `json:"token_id"`
	PriceWei string      `json:"price_wei"`
	Status   OfferStatus `json:"status"`
}

// EscrowUpdate is the human-visible projection of one escrow step; it
// carries enough data for the receiving party to render the next action.
type EscrowUpdate struct {
	Status      EscrowStatus `json:"status"`
	Action      string       `json:"action"` // create_deal | transfer_complete | cancel_deal | reconciled
	TokenID     string       `json:"token_id"`
	PriceWei    string       `json:"price_wei"`
	Seller      string       `json:"seller"`
	Buyer       string       `json:"buyer"`
	Step        int          `json:"step"`
	TotalSteps  int          `json:"total_steps"`
	Description string       `json:"description"`
	TxHash      *string      `json:"tx_hash,omitempty"`
}

// Attachment references pinned content accompanying a message.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Mime string `json:"mime,omitempty"`
}
