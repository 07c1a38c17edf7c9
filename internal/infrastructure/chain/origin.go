package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"ipmarket-server/internal/domain/wallet"
)

const originABI = `[
  {"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"tokenURI","type":"string"},{"name":"parentTokenId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"buyAccess","stateMutability":"payable","inputs":[{"name":"tokenId","type":"uint256"},{"name":"periods","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"tokenURI","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"hasAccess","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"},{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"event","name":"Transfer","inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}],"anonymous":false}
]`

// Origin binds the IP-NFT contract used for minting and access control.
type Origin struct {
	client   *Client
	contract *bind.BoundContract
	abi      abi.ABI
	address  common.Address
}

// NewOrigin binds the Origin IP-NFT contract at the given address.
func NewOrigin(client *Client, address string) (*Origin, error) {
	parsed, err := abi.JSON(strings.NewReader(originABI))
	if err != nil {
		return nil, fmt.Errorf("parse origin abi: %w", err)
	}
	addr := common.HexToAddress(address)
	return &Origin{
		client:   client,
		contract: bind.NewBoundContract(addr, parsed, client.eth, client.eth, client.eth),
		abi:      parsed,
		address:  addr,
	}, nil
}

// Address returns the bound contract address.
func (o *Origin) Address() string { return o.address.Hex() }

// Mint creates a new IP token owned by the signer, pointing at the pinned
// metadata. Pass parentTokenID "0" for a root work. The new token id is
// recovered from the mint receipt's Transfer event.
func (o *Origin) Mint(ctx context.Context, signer wallet.Session, tokenURI, parentTokenID string) (tokenID, txHash string, err error) {
	ks, err := keyedSession(signer)
	if err != nil {
		return "", "", err
	}
	parent, err := parseTokenID(parentTokenID)
	if err != nil {
		return "", "", err
	}

	opts, err := ks.transactOpts(ctx)
	if err != nil {
		return "", "", err
	}
	tx, err := o.contract.Transact(opts, "mint", ks.address, tokenURI, parent)
	if err != nil {
		return "", "", fmt.Errorf("mint: %w", err)
	}
	receipt, err := o.client.waitMined(ctx, tx, "origin", "mint")
	if err != nil {
		return "", "", err
	}

	id, err := o.mintedTokenID(receipt.Logs)
	if err != nil {
		return "", "", err
	}
	return id.String(), tx.Hash().Hex(), nil
}

// Approve grants the spender contract transfer rights over the token.
// Required before listing, auctioning, raffling or escrowing it.
func (o *Origin) Approve(ctx context.Context, signer wallet.Session, spender, tokenID string) (string, error) {
	ks, err := keyedSession(signer)
	if err != nil {
		return "", err
	}
	if !common.IsHexAddress(spender) {
		return "", fmt.Errorf("invalid spender address %q", spender)
	}
	id, err := parseTokenID(tokenID)
	if err != nil {
		return "", err
	}

	opts, err := ks.transactOpts(ctx)
	if err != nil {
		return "", err
	}
	tx, err := o.contract.Transact(opts, "approve", common.HexToAddress(spender), id)
	if err != nil {
		return "", fmt.Errorf("approve: %w", err)
	}
	if _, err := o.client.waitMined(ctx, tx, "origin", "approve"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// BuyAccess purchases an access entitlement for the given number of
// periods; the access fee rides as transaction value.
func (o *Origin) BuyAccess(ctx context.Context, signer wallet.Session, tokenID string, periods int64, feeWei *big.Int) (string, error) {
	ks, err := keyedSession(signer)
	if err != nil {
		return "", err
	}
	id, err := parseTokenID(tokenID)
	if err != nil {
		return "", err
	}
	if periods <= 0 {
		return "", fmt.Errorf("periods must be positive, got %d", periods)
	}

	opts, err := ks.transactOpts(ctx)
	if err != nil {
		return "", err
	}
	opts.Value = feeWei
	tx, err := o.contract.Transact(opts, "buyAccess", id, big.NewInt(periods))
	if err != nil {
		return "", fmt.Errorf("buyAccess: %w", err)
	}
	if _, err := o.client.waitMined(ctx, tx, "origin", "buyAccess"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// OwnerOf reads the current owner of the token.
func (o *Origin) OwnerOf(ctx context.Context, tokenID string) (string, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return "", err
	}

	var out []any
	if err := o.contract.Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", id); err != nil {
		return "", fmt.Errorf("ownerOf %s: %w", tokenID, err)
	}
	owner := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	return owner.Hex(), nil
}

// TokenURI reads the metadata URI of the token.
func (o *Origin) TokenURI(ctx context.Context, tokenID string) (string, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return "", err
	}

	var out []any
	if err := o.contract.Call(&bind.CallOpts{Context: ctx}, &out, "tokenURI", id); err != nil {
		return "", fmt.Errorf("tokenURI %s: %w", tokenID, err)
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// HasAccess reads whether the user holds a live access entitlement.
func (o *Origin) HasAccess(ctx context.Context, tokenID, user string) (bool, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return false, err
	}
	if !common.IsHexAddress(user) {
		return false, fmt.Errorf("invalid address %q", user)
	}

	var out []any
	if err := o.contract.Call(&bind.CallOpts{Context: ctx}, &out, "hasAccess", id, common.HexToAddress(user)); err != nil {
		return false, fmt.Errorf("hasAccess %s: %w", tokenID, err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// mintedTokenID extracts the token id from the Transfer event of a mint
// receipt. Mints transfer from the zero address.
func (o *Origin) mintedTokenID(logs []*types.Log) (*big.Int, error) {
	transferTopic := o.abi.Events["Transfer"].ID
	for _, entry := range logs {
		if entry.Address != o.address || len(entry.Topics) != 4 || entry.Topics[0] != transferTopic {
			continue
		}
		if common.BytesToAddress(entry.Topics[1].Bytes()) != (common.Address{}) {
			continue
		}
		return new(big.Int).SetBytes(entry.Topics[3].Bytes()), nil
	}
	return nil, fmt.Errorf("mint receipt has no Transfer event")
}
