package escrow

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/domain/wallet"
	"ipmarket-server/internal/infrastructure/metrics"
	"ipmarket-server/internal/infrastructure/observability"
	"ipmarket-server/internal/utils/platformerrors"
	"ipmarket-server/internal/utils/wei"
)

// Deal is the decoded on-chain deal record. It is the authoritative state;
// the chat room's escrow status is only a projection of it.
type Deal struct {
	TokenID         string          `json:"token_id"`
	Seller          string          `json:"seller"`
	Buyer           string          `json:"buyer"`
	PriceWei        *big.Int        `json:"-"`
	Price           string          `json:"price_wei"`
	SellerConfirmed bool            `json:"seller_confirmed"`
	BuyerConfirmed  bool            `json:"buyer_confirmed"`
	ChainStatus     ChainDealStatus `json:"chain_status"`
	Exists          bool            `json:"exists"`
}

// DealContract is the escrow contract surface the orchestrator drives.
// Implemented by the chain facade.
type DealContract interface {
	CreateDeal(ctx context.Context, signer wallet.Session, tokenID, buyer string, priceWei *big.Int) (txHash string, err error)
	// FundDeal attaches value to the call; the contract rejects any value
	// that does not equal the deal price.
	FundDeal(ctx context.Context, signer wallet.Session, tokenID string, valueWei *big.Int) (txHash string, err error)
	CancelDeal(ctx context.Context, signer wallet.Session, tokenID string) (txHash string, err error)
	Deal(ctx context.Context, tokenID string) (*Deal, error)
}

// Notifier is told about terminal deal outcomes. Delivery is best-effort
// and must not block the transition.
type Notifier interface {
	DealClosed(ctx context.Context, room *chat.Room, status chat.EscrowStatus, txHash string)
}

// Orchestrator coordinates the create -> fund -> complete lifecycle between
// the chain and the chat store. Every transition is one awaited chain write
// followed by one chat write; the two are not transactional, which is why
// the reconciler exists.
type Orchestrator struct {
	contract DealContract
	chats    chat.Service
	sessions wallet.Store
	notifier Notifier
	log      zerolog.Logger
}

// NewOrchestrator creates the orchestrator. The notifier may be nil.
func NewOrchestrator(contract DealContract, chats chat.Service, sessions wallet.Store, notifier Notifier, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		contract: contract,
		chats:    chats,
		sessions: sessions,
		notifier: notifier,
		log:      log.With().Str("component", "escrow-orchestrator").Logger(),
	}
}

const totalSteps = 2

// CreateDeal opens the on-chain deal for the room's token. Owner only, from
// setup. On success the chat status becomes created and a step-1 update is
// posted.
func (o *Orchestrator) CreateDeal(ctx context.Context, callerID, roomID, price string) (*chat.Message, error) {
	ctx, span := observability.StartEscrowSpan(ctx, "create_deal", roomID)
	defer span.End()

	room, session, err := o.prepare(ctx, callerID, roomID)
	if err != nil {
		return nil, err
	}
	if callerID != room.OwnerID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"only the owner can create the deal", nil, "7a8b9c0d-1e2f-4a3b-8c4d-5e6f7a8b9c0d")
	}
	if current := projectionOf(room.EscrowStatus); current != StatusSetup {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			fmt.Sprintf("deal already %s", current), nil, "8b9c0d1e-2f3a-4b4c-9d5e-6f7a8b9c0d1e")
	}

	priceWei, err := wei.ParseEther(price)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"invalid price", err, "9c0d1e2f-3a4b-4c5d-ae6f-7a8b9c0d1e2f")
	}

	txHash, err := o.contract.CreateDeal(ctx, session, room.TokenID, room.BuyerID, priceWei)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerChain, err, "create deal")
	}

	return o.recordTransition(ctx, room, callerID, chat.EscrowStatusCreated, &chat.EscrowUpdate{
		Status:      chat.EscrowStatusCreated,
		Action:      "create_deal",
		TokenID:     room.TokenID,
		PriceWei:    priceWei.String(),
		Seller:      room.OwnerID,
		Buyer:       room.BuyerID,
		Step:        1,
		TotalSteps:  totalSteps,
		Description: fmt.Sprintf("Escrow deal created for %s. Waiting for the buyer to fund.", wei.FormatEther(priceWei)),
		TxHash:      &txHash,
	})
}

// FundDeal funds the deal with the exact price; the contract transfers the
// token and releases payment in the same transaction, so success moves the
// room straight to completed. Buyer only, from created.
func (o *Orchestrator) FundDeal(ctx context.Context, callerID, roomID, amount string) (*chat.Message, error) {
	ctx, span := observability.StartEscrowSpan(ctx, "fund_deal", roomID)
	defer span.End()

	room, session, err := o.prepare(ctx, callerID, roomID)
	if err != nil {
		return nil, err
	}
	if callerID != room.BuyerID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"only the buyer can fund the deal", nil, "0d1e2f3a-4b5c-4d6e-bf7a-8b9c0d1e2f3a")
	}
	if current := projectionOf(room.EscrowStatus); current != StatusCreated {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			fmt.Sprintf("deal is %s, expected created", current), nil, "1e2f3a4b-5c6d-4e7f-aa8b-9c0d1e2f3a4b")
	}

	valueWei, err := wei.ParseEther(amount)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"invalid amount", err, "2f3a4b5c-6d7e-4f8a-bb9c-0d1e2f3a4b5c")
	}

	txHash, err := o.contract.FundDeal(ctx, session, room.TokenID, valueWei)
	if err != nil {
		// A value mismatch reverts on-chain; the projection stays put.
		return nil, platformerrors.AsError(ctx, platformerrors.LayerChain, err, "fund deal")
	}

	msg, err := o.recordTransition(ctx, room, callerID, chat.EscrowStatusCompleted, &chat.EscrowUpdate{
		Status:      chat.EscrowStatusCompleted,
		Action:      "transfer_complete",
		TokenID:     room.TokenID,
		PriceWei:    valueWei.String(),
		Seller:      room.OwnerID,
		Buyer:       room.BuyerID,
		Step:        2,
		TotalSteps:  totalSteps,
		Description: "Deal funded. Token transferred and payment released.",
		TxHash:      &txHash,
	})
	if err != nil {
		return nil, err
	}

	o.notifyClosed(ctx, room, chat.EscrowStatusCompleted, txHash)
	return msg, nil
}

// Cancel aborts the deal. Either party, from setup or created only. From
// setup there is nothing on-chain to cancel; the chat projection alone is
// closed.
func (o *Orchestrator) Cancel(ctx context.Context, callerID, roomID string) (*chat.Message, error) {
	ctx, span := observability.StartEscrowSpan(ctx, "cancel_deal", roomID)
	defer span.End()

	room, session, err := o.prepare(ctx, callerID, roomID)
	if err != nil {
		return nil, err
	}

	current := projectionOf(room.EscrowStatus)
	if !current.CanTransitionTo(StatusCancelled) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			fmt.Sprintf("cannot cancel a %s deal", current), nil, "3a4b5c6d-7e8f-4a9b-8c0d-1e2f3a4b5c6d")
	}

	var txHash string
	if current == StatusCreated {
		txHash, err = o.contract.CancelDeal(ctx, session, room.TokenID)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerChain, err, "cancel deal")
		}
	}

	if err := o.chats.UpdateEscrowStatus(ctx, room.PublicID, chat.EscrowStatusCancelled); err != nil {
		o.log.Error().Err(err).Str("room_id", room.PublicID).Msg("chat projection update failed after chain write")
		return nil, err
	}

	content := fmt.Sprintf("Escrow deal for token %s was cancelled by %s.", room.TokenID, shorten(callerID))
	msg, err := o.chats.SendMessage(ctx, chat.SendMessageParams{
		RoomID:   room.PublicID,
		SenderID: callerID,
		Content:  content,
		Type:     chat.MessageTypeSystem,
	})
	if err != nil {
		o.log.Error().Err(err).Str("room_id", room.PublicID).Str("tx_hash", txHash).
			Msg("cancel recorded on-chain but system message failed; reconciler will repair")
		return nil, err
	}

	metrics.EscrowTransitionsTotal.WithLabelValues("cancel_deal", string(chat.EscrowStatusCancelled)).Inc()
	o.notifyClosed(ctx, room, chat.EscrowStatusCancelled, txHash)
	return msg, nil
}

// notifyClosed fires the terminal-deal webhook without holding up the
// caller.
func (o *Orchestrator) notifyClosed(ctx context.Context, room *chat.Room, status chat.EscrowStatus, txHash string) {
	if o.notifier == nil {
		return
	}
	go o.notifier.DealClosed(context.WithoutCancel(ctx), room, status, txHash)
}

// Deal reads the authoritative on-chain state for the room's token.
func (o *Orchestrator) Deal(ctx context.Context, roomID string) (*Deal, error) {
	room, err := o.chats.GetRoom(ctx, roomID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load chat room")
	}
	deal, err := o.contract.Deal(ctx, room.TokenID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read deal")
	}
	return deal, nil
}

// Reconcile repairs the room's escrow projection from on-chain truth. The
// chain wins every disagreement. Returns true when the projection changed.
func (o *Orchestrator) Reconcile(ctx context.Context, room *chat.Room) (bool, error) {
	deal, err := o.contract.Deal(ctx, room.TokenID)
	if err != nil {
		return false, platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read deal")
	}
	if !deal.Exists {
		return false, nil
	}

	want := chatStatusOf(deal.ChainStatus.Projection())
	if want == room.EscrowStatus {
		return false, nil
	}

	if err := o.chats.UpdateEscrowStatus(ctx, room.PublicID, want); err != nil {
		return false, err
	}

	_, err = o.chats.SendMessage(ctx, chat.SendMessageParams{
		RoomID:   room.PublicID,
		SenderID: chat.SystemSenderID,
		Content:  fmt.Sprintf("Escrow status updated to %s from on-chain state.", want),
		Type:     chat.MessageTypeEscrowUpdate,
		EscrowUpdate: &chat.EscrowUpdate{
			Status:      want,
			Action:      "reconciled",
			TokenID:     room.TokenID,
			PriceWei:    deal.Price,
			Seller:      deal.Seller,
			Buyer:       deal.Buyer,
			Step:        stepOf(want),
			TotalSteps:  totalSteps,
			Description: "Projection repaired from on-chain state.",
		},
	})
	if err != nil {
		o.log.Warn().Err(err).Str("room_id", room.PublicID).Msg("reconcile message failed")
	}

	o.log.Info().
		Str("room_id", room.PublicID).
		Str("token_id", room.TokenID).
		Str("from", string(room.EscrowStatus)).
		Str("to", string(want)).
		Msg("escrow projection reconciled")
	return true, nil
}

// prepare loads the room and resolves the caller's signing session. A
// missing session fails before any chain call and writes nothing.
func (o *Orchestrator) prepare(ctx context.Context, callerID, roomID string) (*chat.Room, wallet.Session, error) {
	session, ok := o.sessions.Get(callerID)
	if !ok {
		return nil, nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"connect your wallet to continue", wallet.ErrNotConnected, "4b5c6d7e-8f9a-4b0c-9d1e-2f3a4b5c6d7e")
	}

	room, err := o.chats.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load chat room")
	}
	if !room.HasParticipant(callerID) {
		return nil, nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"caller is not a participant of this room", nil, "5c6d7e8f-9a0b-4c1d-ae2f-3a4b5c6d7e8f")
	}
	return room, session, nil
}

// recordTransition performs the chat side of a successful chain write:
// exactly one status field update and one escrow_update message, attributed
// to the caller who signed the transaction.
func (o *Orchestrator) recordTransition(ctx context.Context, room *chat.Room, callerID string, status chat.EscrowStatus, update *chat.EscrowUpdate) (*chat.Message, error) {
	if err := o.chats.UpdateEscrowStatus(ctx, room.PublicID, status); err != nil {
		o.log.Error().Err(err).Str("room_id", room.PublicID).
			Msg("chain write succeeded but projection update failed; reconciler will repair")
		return nil, err
	}

	msg, err := o.chats.SendMessage(ctx, chat.SendMessageParams{
		RoomID:       room.PublicID,
		SenderID:     callerID,
		Content:      update.Description,
		Type:         chat.MessageTypeEscrowUpdate,
		EscrowUpdate: update,
	})
	if err != nil {
		o.log.Error().Err(err).Str("room_id", room.PublicID).
			Msg("chain write succeeded but escrow_update message failed; reconciler will repair")
		return nil, err
	}

	metrics.EscrowTransitionsTotal.WithLabelValues(update.Action, string(status)).Inc()
	return msg, nil
}

func projectionOf(s chat.EscrowStatus) DealStatus {
	switch s {
	case chat.EscrowStatusCreated:
		return StatusCreated
	case chat.EscrowStatusCompleted:
		return StatusCompleted
	case chat.EscrowStatusCancelled:
		return StatusCancelled
	default:
		return StatusSetup
	}
}

func chatStatusOf(s DealStatus) chat.EscrowStatus {
	switch s {
	case StatusCreated:
		return chat.EscrowStatusCreated
	case StatusCompleted:
		return chat.EscrowStatusCompleted
	case StatusCancelled:
		return chat.EscrowStatusCancelled
	default:
		return chat.EscrowStatusNone
	}
}

func stepOf(s chat.EscrowStatus) int {
	if s == chat.EscrowStatusCompleted {
		return 2
	}
	return 1
}

func shorten(addr string) string {
	if strings.HasPrefix(addr, "0x") && len(addr) > 10 {
		return addr[:6] + "..." + addr[len(addr)-4:]
	}
	return addr
}
