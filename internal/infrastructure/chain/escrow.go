package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"ipmarket-server/internal/domain/escrow"
	"ipmarket-server/internal/domain/wallet"
	"ipmarket-server/internal/infrastructure/observability"
)

const escrowABI = `[
  {"type":"function","name":"createDeal","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"},{"name":"buyer","type":"address"},{"name":"price","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"fundDeal","stateMutability":"payable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"cancelDeal","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"deals","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"seller","type":"address"},{"name":"buyer","type":"address"},{"name":"price","type":"uint256"},{"name":"sellerConfirmed","type":"bool"},{"name":"buyerConfirmed","type":"bool"},{"name":"status","type":"uint8"}]}
]`

// Escrow binds the deployed escrow contract. It implements
// escrow.DealContract.
type Escrow struct {
	client   *Client
	contract *bind.BoundContract
	address  common.Address
}

// NewEscrow binds the escrow contract at the given address.
func NewEscrow(client *Client, address string) (*Escrow, error) {
	parsed, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("parse escrow abi: %w", err)
	}
	addr := common.HexToAddress(address)
	return &Escrow{
		client:   client,
		contract: bind.NewBoundContract(addr, parsed, client.eth, client.eth, client.eth),
		address:  addr,
	}, nil
}

// Address returns the bound contract address.
func (e *Escrow) Address() string { return e.address.Hex() }

// CreateDeal implements escrow.DealContract.
func (e *Escrow) CreateDeal(ctx context.Context, signer wallet.Session, tokenID, buyer string, priceWei *big.Int) (string, error) {
	ctx, span := observability.StartChainSpan(ctx, "escrow", "createDeal", tokenID)
	defer span.End()

	ks, err := keyedSession(signer)
	if err != nil {
		return "", err
	}
	id, err := parseTokenID(tokenID)
	if err != nil {
		return "", err
	}
	if !common.IsHexAddress(buyer) {
		return "", fmt.Errorf("invalid buyer address %q", buyer)
	}

	opts, err := ks.transactOpts(ctx)
	if err != nil {
		return "", err
	}
	tx, err := e.contract.Transact(opts, "createDeal", id, common.HexToAddress(buyer), priceWei)
	if err != nil {
		return "", fmt.Errorf("createDeal: %w", err)
	}
	if _, err := e.client.waitMined(ctx, tx, "escrow", "createDeal"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// FundDeal implements escrow.DealContract. The value rides on the
// transaction; the contract rejects anything but the exact price.
func (e *Escrow) FundDeal(ctx context.Context, signer wallet.Session, tokenID string, valueWei *big.Int) (string, error) {
	ctx, span := observability.StartChainSpan(ctx, "escrow", "fundDeal", tokenID)
	defer span.End()

	ks, err := keyedSession(signer)
	if err != nil {
		return "", err
	}
	id, err := parseTokenID(tokenID)
	if err != nil {
		return "", err
	}

	opts, err := ks.transactOpts(ctx)
	if err != nil {
		return "", err
	}
	opts.Value = valueWei
	tx, err := e.contract.Transact(opts, "fundDeal", id)
	if err != nil {
		return "", fmt.Errorf("fundDeal: %w", err)
	}
	if _, err := e.client.waitMined(ctx, tx, "escrow", "fundDeal"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// CancelDeal implements escrow.DealContract.
func (e *Escrow) CancelDeal(ctx context.Context, signer wallet.Session, tokenID string) (string, error) {
	ctx, span := observability.StartChainSpan(ctx, "escrow", "cancelDeal", tokenID)
	defer span.End()

	ks, err := keyedSession(signer)
	if err != nil {
		return "", err
	}
	id, err := parseTokenID(tokenID)
	if err != nil {
		return "", err
	}

	opts, err := ks.transactOpts(ctx)
	if err != nil {
		return "", err
	}
	tx, err := e.contract.Transact(opts, "cancelDeal", id)
	if err != nil {
		return "", fmt.Errorf("cancelDeal: %w", err)
	}
	if _, err := e.client.waitMined(ctx, tx, "escrow", "cancelDeal"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// Deal reads the deals mapping for the token. A zero seller address means
// no deal was ever created.
func (e *Escrow) Deal(ctx context.Context, tokenID string) (*escrow.Deal, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return nil, err
	}

	var out []any
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, "deals", id); err != nil {
		return nil, fmt.Errorf("read deal %s: %w", tokenID, err)
	}

	seller := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	buyer := *abi.ConvertType(out[1], new(common.Address)).(*common.Address)
	price := *abi.ConvertType(out[2], new(*big.Int)).(**big.Int)
	sellerConfirmed := *abi.ConvertType(out[3], new(bool)).(*bool)
	buyerConfirmed := *abi.ConvertType(out[4], new(bool)).(*bool)
	status := *abi.ConvertType(out[5], new(uint8)).(*uint8)

	return &escrow.Deal{
		TokenID:         tokenID,
		Seller:          seller.Hex(),
		Buyer:           buyer.Hex(),
		PriceWei:        price,
		Price:           price.String(),
		SellerConfirmed: sellerConfirmed,
		BuyerConfirmed:  buyerConfirmed,
		ChainStatus:     escrow.ChainDealStatus(status),
		Exists:          seller != (common.Address{}),
	}, nil
}

func parseTokenID(tokenID string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid token id %q", tokenID)
	}
	return id, nil
}
