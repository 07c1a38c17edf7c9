package market

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/wallet"
	"ipmarket-server/internal/utils/platformerrors"
	"ipmarket-server/internal/utils/wei"
)

// MintParams describes one mint request.
type MintParams struct {
	Creator       string
	Name          string
	Description   string
	ParentTokenID string
	FileName      string
	File          io.Reader
	LicenseTerms  map[string]any
}

// Service is the single place trading intent becomes a chain write.
type Service interface {
	// Fixed-price marketplace.
	List(ctx context.Context, callerID, tokenID, price string) (string, error)
	Buy(ctx context.Context, callerID, tokenID string) (string, error)
	CancelListing(ctx context.Context, callerID, tokenID string) (string, error)
	UpdatePrice(ctx context.Context, callerID, tokenID, newPrice string) (string, error)
	Listing(ctx context.Context, tokenID string) (*Listing, error)
	ActiveListings(ctx context.Context) ([]Listing, error)

	// Auctions.
	CreateAuction(ctx context.Context, callerID, tokenID, startingPrice string, durationSeconds int64) (string, error)
	PlaceBid(ctx context.Context, callerID, tokenID, bid string) (string, error)
	EndAuction(ctx context.Context, callerID, tokenID string) (string, error)
	CancelAuction(ctx context.Context, callerID, tokenID string) (string, error)
	WithdrawBid(ctx context.Context, callerID string) (string, error)
	Auction(ctx context.Context, tokenID string) (*AuctionState, error)
	TimeRemaining(ctx context.Context, tokenID string) (int64, error)
	PendingReturns(ctx context.Context, address string) (string, error)

	// Lotteries.
	StartLottery(ctx context.Context, callerID, tokenID, ticketPrice string, durationSeconds int64) (string, error)
	BuyTicket(ctx context.Context, callerID, lotteryID string) (string, error)
	DrawLottery(ctx context.Context, callerID, lotteryID string) (string, error)
	AnnounceWinner(ctx context.Context, callerID, lotteryID string) (string, error)
	Lottery(ctx context.Context, lotteryID string) (*LotteryState, error)
	LotteryPlayers(ctx context.Context, lotteryID string) ([]string, error)
	NextLotteryID(ctx context.Context) (string, error)

	// Minting and access.
	Mint(ctx context.Context, params MintParams) (*MintResult, error)
	BuyAccess(ctx context.Context, callerID, tokenID string, periods int64, fee string) (string, error)
	HasAccess(ctx context.Context, tokenID, user string) (bool, error)
	TokenOwner(ctx context.Context, tokenID string) (string, error)
	TokenURI(ctx context.Context, tokenID string) (string, error)
}

// DefaultService implements Service.
type DefaultService struct {
	marketplace MarketplaceContract
	auctions    AuctionContract
	lotteries   LotteryContract
	origin      OriginContract
	pinner      Pinner
	sessions    wallet.Store
	log         zerolog.Logger
}

// NewService creates the market service.
func NewService(
	marketplace MarketplaceContract,
	auctions AuctionContract,
	lotteries LotteryContract,
	origin OriginContract,
	pinner Pinner,
	sessions wallet.Store,
	log zerolog.Logger,
) *DefaultService {
	return &DefaultService{
		marketplace: marketplace,
		auctions:    auctions,
		lotteries:   lotteries,
		origin:      origin,
		pinner:      pinner,
		sessions:    sessions,
		log:         log.With().Str("component", "market-service").Logger(),
	}
}

// List approves the marketplace for the token, then lists it. Approval
// failure stops the flow before listNFT is attempted.
func (s *DefaultService) List(ctx context.Context, callerID, tokenID, price string) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}
	priceWei, err := s.parseAmount(ctx, price)
	if err != nil {
		return "", err
	}

	if err := s.approve(ctx, session, s.marketplace.Address(), tokenID); err != nil {
		return "", err
	}

	txHash, err := s.marketplace.ListNFT(ctx, session, tokenID, priceWei)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "list token")
	}
	s.log.Info().Str("token_id", tokenID).Str("seller", callerID).Str("tx_hash", txHash).Msg("token listed")
	return txHash, nil
}

// Buy pays the current listing price for the token.
func (s *DefaultService) Buy(ctx context.Context, callerID, tokenID string) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}

	listing, err := s.marketplace.GetListing(ctx, tokenID)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read listing")
	}
	if !listing.Active {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			"token is not listed", nil, "6d7e8f9a-0b1c-4d2e-af3a-4b5c6d7e8f9a")
	}

	txHash, err := s.marketplace.BuyNFT(ctx, session, tokenID, listing.PriceWei)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "buy token")
	}
	s.log.Info().Str("token_id", tokenID).Str("buyer", callerID).Str("tx_hash", txHash).Msg("token bought")
	return txHash, nil
}

// CancelListing takes the caller's token off the market.
func (s *DefaultService) CancelListing(ctx context.Context, callerID, tokenID string) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}
	txHash, err := s.marketplace.CancelListing(ctx, session, tokenID)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "cancel listing")
	}
	return txHash, nil
}

// UpdatePrice changes the caller's listing price.
func (s *DefaultService) UpdatePrice(ctx context.Context, callerID, tokenID, newPrice string) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}
	priceWei, err := s.parseAmount(ctx, newPrice)
	if err != nil {
		return "", err
	}
	txHash, err := s.marketplace.UpdatePrice(ctx, session, tokenID, priceWei)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "update price")
	}
	return txHash, nil
}

// Listing reads one listing.
func (s *DefaultService) Listing(ctx context.Context, tokenID string) (*Listing, error) {
	listing, err := s.marketplace.GetListing(ctx, tokenID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read listing")
	}
	return listing, nil
}

// ActiveListings reads every active listing.
func (s *DefaultService) ActiveListings(ctx context.Context) ([]Listing, error) {
	listings, err := s.marketplace.GetAllActiveListings(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read listings")
	}
	return listings, nil
}

// CreateAuction approves the auction contract for the token, then opens
// the auction.
func (s *DefaultService) CreateAuction(ctx context.Context, callerID, tokenID, startingPrice string, durationSeconds int64) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}
	priceWei, err := s.parseAmount(ctx, startingPrice)
	if err != nil {
		return "", err
	}
	if durationSeconds <= 0 {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"duration must be positive", nil, "7e8f9a0b-1c2d-4e3f-ba4b-5c6d7e8f9a0b")
	}

	if err := s.approve(ctx, session, s.auctions.Address(), tokenID); err != nil {
		return "", err
	}

	txHash, err := s.auctions.CreateAuction(ctx, session, tokenID, priceWei, big.NewInt(durationSeconds))
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "create auction")
	}
	s.log.Info().Str("token_id", tokenID).Str("seller", callerID).Str("tx_hash", txHash).Msg("auction created")
	return txHash, nil
}

// PlaceBid bids on an auction. The contract refunds the previous highest
// bidder into pendingReturns.
func (s *DefaultService) PlaceBid(ctx context.Context, callerID, tokenID, bid string) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}
	bidWei, err := s.parseAmount(ctx, bid)
	if err != nil {
		return "", err
	}
	txHash, err := s.auctions.PlaceBid(ctx, session, tokenID, bidWei)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "place bid")
	}
	return txHash, nil
}

// EndAuction settles an expired auction.
func (s *DefaultService) EndAuction(ctx context.Context, callerID, tokenID string) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}
	txHash, err := s.auctions.EndAuction(ctx, session, tokenID)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "end auction")
	}
	return txHash, nil
}

// CancelAuction aborts an auction with no bids.
func (s *DefaultService) CancelAuction(ctx context.Context, callerID, tokenID string) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}
	txHash, err := s.auctions.CancelAuction(ctx, session, tokenID)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "cancel auction")
	}
	return txHash, nil
}

// WithdrawBid reclaims the caller's outbid funds.
func (s *DefaultService) WithdrawBid(ctx context.Context, callerID string) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}
	txHash, err := s.auctions.Withdraw(ctx, session)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "withdraw")
	}
	return txHash, nil
}

// Auction reads the auction for one token.
func (s *DefaultService) Auction(ctx context.Context, tokenID string) (*AuctionState, error) {
	state, err := s.auctions.GetAuction(ctx, tokenID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read auction")
	}
	return state, nil
}

// TimeRemaining reads seconds until the auction closes.
func (s *DefaultService) TimeRemaining(ctx context.Context, tokenID string) (int64, error) {
	remaining, err := s.auctions.GetTimeRemaining(ctx, tokenID)
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read time remaining")
	}
	return remaining.Int64(), nil
}

// PendingReturns reads the reclaimable outbid balance in wei.
func (s *DefaultService) PendingReturns(ctx context.Context, address string) (string, error) {
	pending, err := s.auctions.PendingReturns(ctx, address)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read pending returns")
	}
	return pending.String(), nil
}

// StartLottery approves the lottery contract for the token, then starts
// the raffle.
func (s *DefaultService) StartLottery(ctx context.Context, callerID, tokenID, ticketPrice string, durationSeconds int64) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}
	priceWei, err := s.parseAmount(ctx, ticketPrice)
	if err != nil {
		return "", err
	}
	if durationSeconds <= 0 {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"duration must be positive", nil, "8f9a0b1c-2d3e-4f4a-8b5c-6d7e8f9a0b1c")
	}

	if err := s.approve(ctx, session, s.lotteries.Address(), tokenID); err != nil {
		return "", err
	}

	txHash, err := s.lotteries.StartLottery(ctx, session, tokenID, priceWei, big.NewInt(durationSeconds))
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "start lottery")
	}
	s.log.Info().Str("token_id", tokenID).Str("owner", callerID).Str("tx_hash", txHash).Msg("lottery started")
	return txHash, nil
}

// BuyTicket pays the current ticket price for one ticket.
func (s *DefaultService) BuyTicket(ctx context.Context, callerID, lotteryID string) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}

	state, err := s.lotteries.GetLottery(ctx, lotteryID)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read lottery")
	}
	if !state.Active {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			"lottery is not active", nil, "9a0b1c2d-3e4f-4a5b-9c6d-7e8f9a0b1c2d")
	}

	txHash, err := s.lotteries.BuyTicket(ctx, session, lotteryID, state.TicketPriceWei)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "buy ticket")
	}
	return txHash, nil
}

// DrawLottery picks the winner of an expired lottery.
func (s *DefaultService) DrawLottery(ctx context.Context, callerID, lotteryID string) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}
	txHash, err := s.lotteries.DrawLottery(ctx, session, lotteryID)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "draw lottery")
	}
	return txHash, nil
}

// AnnounceWinner transfers the token and pot after a draw.
func (s *DefaultService) AnnounceWinner(ctx context.Context, callerID, lotteryID string) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}
	txHash, err := s.lotteries.AnnounceWinner(ctx, session, lotteryID)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "announce winner")
	}
	return txHash, nil
}

// Lottery reads one lottery by id.
func (s *DefaultService) Lottery(ctx context.Context, lotteryID string) (*LotteryState, error) {
	state, err := s.lotteries.GetLottery(ctx, lotteryID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read lottery")
	}
	return state, nil
}

// LotteryPlayers reads the ticket holders of a lottery.
func (s *DefaultService) LotteryPlayers(ctx context.Context, lotteryID string) ([]string, error) {
	players, err := s.lotteries.GetPlayers(ctx, lotteryID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read players")
	}
	return players, nil
}

// NextLotteryID reads the id the next lottery will take.
func (s *DefaultService) NextLotteryID(ctx context.Context) (string, error) {
	next, err := s.lotteries.NextLotteryID(ctx)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read next lottery id")
	}
	return next.String(), nil
}

// Mint pins the file and a metadata document, then mints the token
// pointing at the metadata URI.
func (s *DefaultService) Mint(ctx context.Context, params MintParams) (*MintResult, error) {
	session, err := s.session(ctx, params.Creator)
	if err != nil {
		return nil, err
	}
	if params.Name == "" || params.File == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"name and file are required", nil, "0b1c2d3e-4f5a-4b6c-ad7e-8f9a0b1c2d3e")
	}

	fileURI, err := s.pinner.PinFile(ctx, params.FileName, params.File)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "pin file")
	}

	metadata := map[string]any{
		"name":        params.Name,
		"description": params.Description,
		"file":        fileURI,
	}
	if len(params.LicenseTerms) > 0 {
		metadata["license_terms"] = params.LicenseTerms
	}
	tokenURI, err := s.pinner.PinJSON(ctx, params.Name+".json", metadata)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "pin metadata")
	}

	parent := params.ParentTokenID
	if parent == "" {
		parent = "0"
	}
	tokenID, txHash, err := s.origin.Mint(ctx, session, tokenURI, parent)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerChain, err, "mint token")
	}

	s.log.Info().
		Str("token_id", tokenID).
		Str("creator", params.Creator).
		Str("token_uri", tokenURI).
		Msg("token minted")
	return &MintResult{TokenID: tokenID, TokenURI: tokenURI, TxHash: txHash}, nil
}

// BuyAccess purchases an access entitlement to the token.
func (s *DefaultService) BuyAccess(ctx context.Context, callerID, tokenID string, periods int64, fee string) (string, error) {
	session, err := s.session(ctx, callerID)
	if err != nil {
		return "", err
	}
	feeWei, err := s.parseAmount(ctx, fee)
	if err != nil {
		return "", err
	}
	txHash, err := s.origin.BuyAccess(ctx, session, tokenID, periods, feeWei)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "buy access")
	}
	return txHash, nil
}

// HasAccess reads whether the user holds a live access entitlement.
func (s *DefaultService) HasAccess(ctx context.Context, tokenID, user string) (bool, error) {
	ok, err := s.origin.HasAccess(ctx, tokenID, user)
	if err != nil {
		return false, platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read access")
	}
	return ok, nil
}

// TokenOwner reads the current owner of the token.
func (s *DefaultService) TokenOwner(ctx context.Context, tokenID string) (string, error) {
	owner, err := s.origin.OwnerOf(ctx, tokenID)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read owner")
	}
	return owner, nil
}

// TokenURI reads the metadata URI of the token.
func (s *DefaultService) TokenURI(ctx context.Context, tokenID string) (string, error) {
	uri, err := s.origin.TokenURI(ctx, tokenID)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerChain, err, "read token uri")
	}
	return uri, nil
}

// session resolves the caller's signing session. Every write starts here;
// no session means no chain call.
func (s *DefaultService) session(ctx context.Context, callerID string) (wallet.Session, error) {
	session, ok := s.sessions.Get(callerID)
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"connect your wallet to continue", wallet.ErrNotConnected, "1c2d3e4f-5a6b-4c7d-be8f-9a0b1c2d3e4f")
	}
	return session, nil
}

// approve grants the spender contract transfer rights. A failed approval
// stops the combined flow; the primary action is never attempted.
func (s *DefaultService) approve(ctx context.Context, session wallet.Session, spender, tokenID string) error {
	if _, err := s.origin.Approve(ctx, session, spender, tokenID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerChain, err, fmt.Sprintf("approve %s", spender))
	}
	return nil
}

func (s *DefaultService) parseAmount(ctx context.Context, amount string) (*big.Int, error) {
	amountWei, err := wei.ParseEther(amount)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"invalid amount", err, "2d3e4f5a-6b7c-4d8e-af9a-0b1c2d3e4f5a")
	}
	return amountWei, nil
}
