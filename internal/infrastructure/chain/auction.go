package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"ipmarket-server/internal/domain/market"
	"ipmarket-server/internal/domain/wallet"
)

const auctionABI = `[
  {"type":"function","name":"createAuction","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"},{"name":"startingPrice","type":"uint256"},{"name":"duration","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"placeBid","stateMutability":"payable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"endAuction","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"cancelAuction","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"getAuction","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"components":[{"name":"seller","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"startingPrice","type":"uint256"},{"name":"highestBid","type":"uint256"},{"name":"highestBidder","type":"address"},{"name":"endTime","type":"uint256"},{"name":"ended","type":"bool"}],"name":"","type":"tuple"}]},
  {"type":"function","name":"getTimeRemaining","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"pendingReturns","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// auctionInfo is the ABI decode target for the contract's Auction tuple.
type auctionInfo struct {
	Seller        common.Address
	TokenId       *big.Int
	StartingPrice *big.Int
	HighestBid    *big.Int
	HighestBidder common.Address
	EndTime       *big.Int
	Ended         bool
}

func (a auctionInfo) toDomain() market.AuctionState {
	return market.AuctionState{
		TokenID:          a.TokenId.String(),
		Seller:           a.Seller.Hex(),
		StartingPriceWei: a.StartingPrice,
		StartingPrice:    a.StartingPrice.String(),
		HighestBidWei:    a.HighestBid,
		HighestBid:       a.HighestBid.String(),
		HighestBidder:    a.HighestBidder.Hex(),
		EndTime:          time.Unix(a.EndTime.Int64(), 0).UTC(),
		Ended:            a.Ended,
	}
}

// Auction binds the deployed english-auction contract. It implements
// market.AuctionContract.
type Auction struct {
	client   *Client
	contract *bind.BoundContract
	address  common.Address
}

// NewAuction binds the auction contract at the given address.
func NewAuction(client *Client, address string) (*Auction, error) {
	parsed, err := abi.JSON(strings.NewReader(auctionABI))
	if err != nil {
		return nil, fmt.Errorf("parse auction abi: %w", err)
	}
	addr := common.HexToAddress(address)
	return &Auction{
		client:   client,
		contract: bind.NewBoundContract(addr, parsed, client.eth, client.eth, client.eth),
		address:  addr,
	}, nil
}

// Address returns the bound contract address.
func (a *Auction) Address() string { return a.address.Hex() }

// CreateAuction opens an auction for the token. The seller must have
// approved this contract for the token first.
func (a *Auction) CreateAuction(ctx context.Context, signer wallet.Session, tokenID string, startingPriceWei *big.Int, duration *big.Int) (string, error) {
	id, opts, err := a.writeArgs(ctx, signer, tokenID)
	if err != nil {
		return "", err
	}
	tx, err := a.contract.Transact(opts, "createAuction", id, startingPriceWei, duration)
	if err != nil {
		return "", fmt.Errorf("createAuction: %w", err)
	}
	if _, err := a.client.waitMined(ctx, tx, "auction", "createAuction"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// PlaceBid bids on the auction; the bid amount rides as transaction value.
// An outbid bidder's previous amount lands in pendingReturns.
func (a *Auction) PlaceBid(ctx context.Context, signer wallet.Session, tokenID string, bidWei *big.Int) (string, error) {
	id, opts, err := a.writeArgs(ctx, signer, tokenID)
	if err != nil {
		return "", err
	}
	opts.Value = bidWei
	tx, err := a.contract.Transact(opts, "placeBid", id)
	if err != nil {
		return "", fmt.Errorf("placeBid: %w", err)
	}
	if _, err := a.client.waitMined(ctx, tx, "auction", "placeBid"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// EndAuction settles an expired auction.
func (a *Auction) EndAuction(ctx context.Context, signer wallet.Session, tokenID string) (string, error) {
	id, opts, err := a.writeArgs(ctx, signer, tokenID)
	if err != nil {
		return "", err
	}
	tx, err := a.contract.Transact(opts, "endAuction", id)
	if err != nil {
		return "", fmt.Errorf("endAuction: %w", err)
	}
	if _, err := a.client.waitMined(ctx, tx, "auction", "endAuction"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// CancelAuction aborts an auction with no bids.
func (a *Auction) CancelAuction(ctx context.Context, signer wallet.Session, tokenID string) (string, error) {
	id, opts, err := a.writeArgs(ctx, signer, tokenID)
	if err != nil {
		return "", err
	}
	tx, err := a.contract.Transact(opts, "cancelAuction", id)
	if err != nil {
		return "", fmt.Errorf("cancelAuction: %w", err)
	}
	if _, err := a.client.waitMined(ctx, tx, "auction", "cancelAuction"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// Withdraw reclaims the caller's outbid funds.
func (a *Auction) Withdraw(ctx context.Context, signer wallet.Session) (string, error) {
	ks, err := keyedSession(signer)
	if err != nil {
		return "", err
	}
	opts, err := ks.transactOpts(ctx)
	if err != nil {
		return "", err
	}
	tx, err := a.contract.Transact(opts, "withdraw")
	if err != nil {
		return "", fmt.Errorf("withdraw: %w", err)
	}
	if _, err := a.client.waitMined(ctx, tx, "auction", "withdraw"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// GetAuction reads the auction state for one token.
func (a *Auction) GetAuction(ctx context.Context, tokenID string) (*market.AuctionState, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return nil, err
	}

	var out []any
	if err := a.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAuction", id); err != nil {
		return nil, fmt.Errorf("getAuction %s: %w", tokenID, err)
	}
	raw := *abi.ConvertType(out[0], new(auctionInfo)).(*auctionInfo)
	state := raw.toDomain()
	return &state, nil
}

// GetTimeRemaining reads seconds until the auction closes, zero if over.
func (a *Auction) GetTimeRemaining(ctx context.Context, tokenID string) (*big.Int, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return nil, err
	}

	var out []any
	if err := a.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getTimeRemaining", id); err != nil {
		return nil, fmt.Errorf("getTimeRemaining %s: %w", tokenID, err)
	}
	remaining := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return remaining, nil
}

// PendingReturns reads the outbid balance reclaimable by the address.
func (a *Auction) PendingReturns(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}

	var out []any
	if err := a.contract.Call(&bind.CallOpts{Context: ctx}, &out, "pendingReturns", common.HexToAddress(address)); err != nil {
		return nil, fmt.Errorf("pendingReturns %s: %w", address, err)
	}
	pending := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return pending, nil
}

func (a *Auction) writeArgs(ctx context.Context, signer wallet.Session, tokenID string) (*big.Int, *bind.TransactOpts, error) {
	ks, err := keyedSession(signer)
	if err != nil {
		return nil, nil, err
	}
	id, err := parseTokenID(tokenID)
	if err != nil {
		return nil, nil, err
	}
	opts, err := ks.transactOpts(ctx)
	if err != nil {
		return nil, nil, err
	}
	return id, opts, nil
}
