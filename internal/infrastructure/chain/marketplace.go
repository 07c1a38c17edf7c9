package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"ipmarket-server/internal/domain/market"
	"ipmarket-server/internal/domain/wallet"
)

const marketplaceABI = `[
  {"type":"function","name":"listNFT","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"},{"name":"price","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"buyNFT","stateMutability":"payable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"cancelListing","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"updatePrice","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"},{"name":"newPrice","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getListing","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"components":[{"name":"seller","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"price","type":"uint256"},{"name":"active","type":"bool"}],"name":"","type":"tuple"}]},
  {"type":"function","name":"getAllActiveListings","stateMutability":"view","inputs":[],"outputs":[{"components":[{"name":"seller","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"price","type":"uint256"},{"name":"active","type":"bool"}],"name":"","type":"tuple[]"}]}
]`

// marketplaceListing is the ABI decode target for the contract's Listing
// tuple; field names must match the ABI component names.
type marketplaceListing struct {
	Seller  common.Address
	TokenId *big.Int
	Price   *big.Int
	Active  bool
}

func (l marketplaceListing) toDomain() market.Listing {
	return market.Listing{
		TokenID:  l.TokenId.String(),
		Seller:   l.Seller.Hex(),
		PriceWei: l.Price,
		Price:    l.Price.String(),
		Active:   l.Active,
	}
}

// Marketplace binds the deployed fixed-price marketplace contract. It
// implements market.MarketplaceContract.
type Marketplace struct {
	client   *Client
	contract *bind.BoundContract
	address  common.Address
}

// NewMarketplace binds the marketplace contract at the given address.
func NewMarketplace(client *Client, address string) (*Marketplace, error) {
	parsed, err := abi.JSON(strings.NewReader(marketplaceABI))
	if err != nil {
		return nil, fmt.Errorf("parse marketplace abi: %w", err)
	}
	addr := common.HexToAddress(address)
	return &Marketplace{
		client:   client,
		contract: bind.NewBoundContract(addr, parsed, client.eth, client.eth, client.eth),
		address:  addr,
	}, nil
}

// Address returns the bound contract address.
func (m *Marketplace) Address() string { return m.address.Hex() }

// ListNFT puts the token up for sale at the given wei price. The seller
// must have approved this contract for the token first.
func (m *Marketplace) ListNFT(ctx context.Context, signer wallet.Session, tokenID string, priceWei *big.Int) (string, error) {
	id, opts, err := m.writeArgs(ctx, signer, tokenID)
	if err != nil {
		return "", err
	}
	tx, err := m.contract.Transact(opts, "listNFT", id, priceWei)
	if err != nil {
		return "", fmt.Errorf("listNFT: %w", err)
	}
	if _, err := m.client.waitMined(ctx, tx, "marketplace", "listNFT"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// BuyNFT purchases the listed token, paying the listing price as value.
func (m *Marketplace) BuyNFT(ctx context.Context, signer wallet.Session, tokenID string, valueWei *big.Int) (string, error) {
	id, opts, err := m.writeArgs(ctx, signer, tokenID)
	if err != nil {
		return "", err
	}
	opts.Value = valueWei
	tx, err := m.contract.Transact(opts, "buyNFT", id)
	if err != nil {
		return "", fmt.Errorf("buyNFT: %w", err)
	}
	if _, err := m.client.waitMined(ctx, tx, "marketplace", "buyNFT"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// CancelListing takes the token off the market.
func (m *Marketplace) CancelListing(ctx context.Context, signer wallet.Session, tokenID string) (string, error) {
	id, opts, err := m.writeArgs(ctx, signer, tokenID)
	if err != nil {
		return "", err
	}
	tx, err := m.contract.Transact(opts, "cancelListing", id)
	if err != nil {
		return "", fmt.Errorf("cancelListing: %w", err)
	}
	if _, err := m.client.waitMined(ctx, tx, "marketplace", "cancelListing"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// UpdatePrice changes the listing price.
func (m *Marketplace) UpdatePrice(ctx context.Context, signer wallet.Session, tokenID string, newPriceWei *big.Int) (string, error) {
	id, opts, err := m.writeArgs(ctx, signer, tokenID)
	if err != nil {
		return "", err
	}
	tx, err := m.contract.Transact(opts, "updatePrice", id, newPriceWei)
	if err != nil {
		return "", fmt.Errorf("updatePrice: %w", err)
	}
	if _, err := m.client.waitMined(ctx, tx, "marketplace", "updatePrice"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// GetListing reads the listing for one token.
func (m *Marketplace) GetListing(ctx context.Context, tokenID string) (*market.Listing, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return nil, err
	}

	var out []any
	if err := m.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getListing", id); err != nil {
		return nil, fmt.Errorf("getListing %s: %w", tokenID, err)
	}
	raw := *abi.ConvertType(out[0], new(marketplaceListing)).(*marketplaceListing)
	listing := raw.toDomain()
	return &listing, nil
}

// GetAllActiveListings reads every active listing.
func (m *Marketplace) GetAllActiveListings(ctx context.Context) ([]market.Listing, error) {
	var out []any
	if err := m.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAllActiveListings"); err != nil {
		return nil, fmt.Errorf("getAllActiveListings: %w", err)
	}
	raw := *abi.ConvertType(out[0], new([]marketplaceListing)).(*[]marketplaceListing)

	listings := make([]market.Listing, 0, len(raw))
	for _, entry := range raw {
		listings = append(listings, entry.toDomain())
	}
	return listings, nil
}

func (m *Marketplace) writeArgs(ctx context.Context, signer wallet.Session, tokenID string) (*big.Int, *bind.TransactOpts, error) {
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
