package handlers

import (
	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/domain/escrow"
	"ipmarket-server/internal/domain/market"
	"ipmarket-server/internal/domain/negotiation"
	"ipmarket-server/internal/domain/wallet"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Negotiation *NegotiationHandler
	Chat        *ChatHandler
	Escrow      *EscrowHandler
	Market      *MarketHandler
	Token       *TokenHandler
	Wallet      *WalletHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(
	negotiations negotiation.Service,
	chats chat.Service,
	orchestrator *escrow.Orchestrator,
	markets market.Service,
	balances wallet.BalanceReader,
	sessions wallet.Store,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Negotiation: NewNegotiationHandler(negotiations, log),
		Chat:        NewChatHandler(chats, log),
		Escrow:      NewEscrowHandler(orchestrator, chats, log),
		Market:      NewMarketHandler(markets, log),
		Token:       NewTokenHandler(markets, log),
		Wallet:      NewWalletHandler(balances, sessions, log),
	}
}
