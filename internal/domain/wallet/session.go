// Package wallet defines the session abstraction every chain write requires.
// Sessions are injected explicitly; nothing reads ambient global wallet state.
package wallet

import (
	"context"
	"errors"
	"math/big"
)

// ErrNotConnected is returned when an operation requires a signing session
// and none is available for the caller.
var ErrNotConnected = errors.New("wallet not connected")

// Session identifies a connected wallet able to sign transactions.
// Concrete implementations live in the chain infrastructure.
type Session interface {
	// Address returns the checksummed 0x-prefixed wallet address.
	Address() string
}

// Store resolves the signing session for an authenticated wallet address.
type Store interface {
	Get(address string) (Session, bool)
}

// BalanceReader reads an address's native-token balance.
type BalanceReader interface {
	BalanceAt(ctx context.Context, address string) (*big.Int, error)
}
