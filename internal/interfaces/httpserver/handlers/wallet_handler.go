package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/wallet"
	"ipmarket-server/internal/infrastructure/auth"
	"ipmarket-server/internal/interfaces/httpserver/responses"
	"ipmarket-server/internal/utils/platformerrors"
)

// WalletHandler reports the caller's wallet state.
type WalletHandler struct {
	balances wallet.BalanceReader
	sessions wallet.Store
	log      zerolog.Logger
}

// NewWalletHandler constructs the handler.
func NewWalletHandler(balances wallet.BalanceReader, sessions wallet.Store, log zerolog.Logger) *WalletHandler {
	return &WalletHandler{
		balances: balances,
		sessions: sessions,
		log:      log.With().Str("handler", "wallet").Logger(),
	}
}

// Get handles GET /v1/wallet: the caller's address, native balance and
// whether a signing session is available for writes.
func (h *WalletHandler) Get(c *gin.Context) {
	addr := auth.WalletAddress(c)
	if addr == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "7f6a5b4c-3d2e-4fb1-a0ab-9e8d7c6b5a4f")
		return
	}

	balance, err := h.balances.BalanceAt(c.Request.Context(), addr)
	if err != nil {
		responses.HandleError(c, platformerrors.AsError(c.Request.Context(), platformerrors.LayerChain, err, "read balance"), "failed to read balance")
		return
	}

	_, canSign := h.sessions.Get(addr)
	c.JSON(http.StatusOK, gin.H{
		"address":     addr,
		"balance_wei": balance.String(),
		"can_sign":    canSign,
	})
}
