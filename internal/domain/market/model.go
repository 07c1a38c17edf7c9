// Package market turns trading intent into chain writes: fixed-price
// listings, auctions, lotteries, minting and access purchases.
package market

import (
	"context"
	"io"
	"math/big"
	"time"

	"ipmarket-server/internal/domain/wallet"
)

// Listing is a fixed-price marketplace entry.
type Listing struct {
	TokenID  string   `json:"token_id"`
	Seller   string   `json:"seller"`
	PriceWei *big.Int `json:"-"`
	Price    string   `json:"price_wei"`
	Active   bool     `json:"active"`
}

// AuctionState is the live state of one auction.
type AuctionState struct {
	TokenID          string    `json:"token_id"`
	Seller           string    `json:"seller"`
	StartingPriceWei *big.Int  `json:"-"`
	StartingPrice    string    `json:"starting_price_wei"`
	HighestBidWei    *big.Int  `json:"-"`
	HighestBid       string    `json:"highest_bid_wei"`
	HighestBidder    string    `json:"highest_bidder"`
	EndTime          time.Time `json:"end_time"`
	Ended            bool      `json:"ended"`
}

// LotteryState is the live state of one lottery.
type LotteryState struct {
	ID             string    `json:"id"`
	Owner          string    `json:"owner"`
	TokenID        string    `json:"token_id"`
	TicketPriceWei *big.Int  `json:"-"`
	TicketPrice    string    `json:"ticket_price_wei"`
	EndTime        time.Time `json:"end_time"`
	Winner         string    `json:"winner"`
	Drawn          bool      `json:"drawn"`
	Active         bool      `json:"active"`
}

// MintResult is the outcome of a successful mint.
type MintResult struct {
	TokenID  string `json:"token_id"`
	TokenURI string `json:"token_uri"`
	TxHash   string `json:"tx_hash"`
}

// MarketplaceContract is the fixed-price contract surface.
type MarketplaceContract interface {
	Address() string
	ListNFT(ctx context.Context, signer wallet.Session, tokenID string, priceWei *big.Int) (string, error)
	BuyNFT(ctx context.Context, signer wallet.Session, tokenID string, valueWei *big.Int) (string, error)
	CancelListing(ctx context.Context, signer wallet.Session, tokenID string) (string, error)
	UpdatePrice(ctx context.Context, signer wallet.Session, tokenID string, newPriceWei *big.Int) (string, error)
	GetListing(ctx context.Context, tokenID string) (*Listing, error)
	GetAllActiveListings(ctx context.Context) ([]Listing, error)
}

// AuctionContract is the english-auction contract surface.
type AuctionContract interface {
	Address() string
	CreateAuction(ctx context.Context, signer wallet.Session, tokenID string, startingPriceWei, duration *big.Int) (string, error)
	PlaceBid(ctx context.Context, signer wallet.Session, tokenID string, bidWei *big.Int) (string, error)
	EndAuction(ctx context.Context, signer wallet.Session, tokenID string) (string, error)
	CancelAuction(ctx context.Context, signer wallet.Session, tokenID string) (string, error)
	Withdraw(ctx context.Context, signer wallet.Session) (string, error)
	GetAuction(ctx context.Context, tokenID string) (*AuctionState, error)
	GetTimeRemaining(ctx context.Context, tokenID string) (*big.Int, error)
	PendingReturns(ctx context.Context, address string) (*big.Int, error)
}

// LotteryContract is the raffle contract surface.
type LotteryContract interface {
	Address() string
	StartLottery(ctx context.Context, signer wallet.Session, tokenID string, ticketPriceWei, duration *big.Int) (string, error)
	BuyTicket(ctx context.Context, signer wallet.Session, lotteryID string, ticketPriceWei *big.Int) (string, error)
	DrawLottery(ctx context.Context, signer wallet.Session, lotteryID string) (string, error)
	AnnounceWinner(ctx context.Context, signer wallet.Session, lotteryID string) (string, error)
	GetLottery(ctx context.Context, lotteryID string) (*LotteryState, error)
	GetPlayers(ctx context.Context, lotteryID string) ([]string, error)
	NextLotteryID(ctx context.Context) (*big.Int, error)
}

// OriginContract is the IP-NFT contract surface.
type OriginContract interface {
	Address() string
	Mint(ctx context.Context, signer wallet.Session, tokenURI, parentTokenID string) (tokenID, txHash string, err error)
	Approve(ctx context.Context, signer wallet.Session, spender, tokenID string) (string, error)
	BuyAccess(ctx context.Context, signer wallet.Session, tokenID string, periods int64, feeWei *big.Int) (string, error)
	OwnerOf(ctx context.Context, tokenID string) (string, error)
	TokenURI(ctx context.Context, tokenID string) (string, error)
	HasAccess(ctx context.Context, tokenID, user string) (bool, error)
}

// Pinner uploads content to the pinning gateway and returns its URI.
type Pinner interface {
	PinFile(ctx context.Context, name string, content io.Reader) (string, error)
	PinJSON(ctx context.Context, name string, payload any) (string, error)
}
