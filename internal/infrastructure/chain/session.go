package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"ipmarket-server/internal/domain/wallet"
)

// KeyedSession is a wallet.Session backed by a locally held private key.
type KeyedSession struct {
	address common.Address
	key     *ecdsa.PrivateKey
	chainID *big.Int
}

// Address implements wallet.Session.
func (s *KeyedSession) Address() string {
	return s.address.Hex()
}

// transactOpts builds signing options for one transaction.
func (s *KeyedSession) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor for %s: %w", s.address.Hex(), err)
	}
	opts.Context = ctx
	return opts, nil
}

// keyedSession narrows a wallet.Session to the signing implementation this
// package produces. Domain code never sees the private key.
func keyedSession(s wallet.Session) (*KeyedSession, error) {
	ks, ok := s.(*KeyedSession)
	if !ok {
		return nil, fmt.Errorf("session for %s cannot sign transactions", s.Address())
	}
	return ks, nil
}

// SessionStore holds the custodial signing sessions parsed from config.
type SessionStore struct {
	sessions map[common.Address]*KeyedSession
}

// NewSessionStore parses comma-separated "0xaddress=hexkey" pairs. The
// address of each pair must match the one derived from the key.
func NewSessionStore(walletKeys string, chainID *big.Int) (*SessionStore, error) {
	store := &SessionStore{sessions: make(map[common.Address]*KeyedSession)}

	for _, pair := range strings.Split(walletKeys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		addrHex, keyHex, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("malformed wallet key pair %q", addrHex)
		}
		if !common.IsHexAddress(addrHex) {
			return nil, fmt.Errorf("invalid wallet address %q", addrHex)
		}

		key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse key for %s: %w", addrHex, err)
		}

		addr := common.HexToAddress(addrHex)
		if derived := crypto.PubkeyToAddress(key.PublicKey); derived != addr {
			return nil, fmt.Errorf("key for %s derives %s", addr.Hex(), derived.Hex())
		}
		store.sessions[addr] = &KeyedSession{address: addr, key: key, chainID: chainID}
	}
	return store, nil
}

// Get implements wallet.Store. Lookup is case-insensitive on the hex form.
func (s *SessionStore) Get(address string) (wallet.Session, bool) {
	if !common.IsHexAddress(address) {
		return nil, false
	}
	sess, ok := s.sessions[common.HexToAddress(address)]
	if !ok {
		return nil, false
	}
	return sess, true
}
