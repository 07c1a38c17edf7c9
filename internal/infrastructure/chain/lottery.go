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

const lotteryABI = `[
  {"type":"function","name":"startLottery","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"},{"name":"ticketPrice","type":"uint256"},{"name":"duration","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"buyTicket","stateMutability":"payable","inputs":[{"name":"lotteryId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"drawLottery","stateMutability":"nonpayable","inputs":[{"name":"lotteryId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"announceWinner","stateMutability":"nonpayable","inputs":[{"name":"lotteryId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"lotteries","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"owner","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"ticketPrice","type":"uint256"},{"name":"endTime","type":"uint256"},{"name":"winner","type":"address"},{"name":"drawn","type":"bool"},{"name":"active","type":"bool"}]},
  {"type":"function","name":"getPlayers","stateMutability":"view","inputs":[{"name":"lotteryId","type":"uint256"}],"outputs":[{"name":"","type":"address[]"}]},
  {"type":"function","name":"nextLotteryId","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// Lottery binds the deployed raffle contract. It implements
// market.LotteryContract.
type Lottery struct {
	client   *Client
	contract *bind.BoundContract
	address  common.Address
}

// NewLottery binds the lottery contract at the given address.
func NewLottery(client *Client, address string) (*Lottery, error) {
	parsed, err := abi.JSON(strings.NewReader(lotteryABI))
	if err != nil {
		return nil, fmt.Errorf("parse lottery abi: %w", err)
	}
	addr := common.HexToAddress(address)
	return &Lottery{
		client:   client,
		contract: bind.NewBoundContract(addr, parsed, client.eth, client.eth, client.eth),
		address:  addr,
	}, nil
}

// Address returns the bound contract address.
func (l *Lottery) Address() string { return l.address.Hex() }

// StartLottery raffles off the token at the given ticket price. The owner
// must have approved this contract for the token first.
func (l *Lottery) StartLottery(ctx context.Context, signer wallet.Session, tokenID string, ticketPriceWei, duration *big.Int) (string, error) {
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
	tx, err := l.contract.Transact(opts, "startLottery", id, ticketPriceWei, duration)
	if err != nil {
		return "", fmt.Errorf("startLottery: %w", err)
	}
	if _, err := l.client.waitMined(ctx, tx, "lottery", "startLottery"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// BuyTicket buys one ticket; the ticket price rides as transaction value.
func (l *Lottery) BuyTicket(ctx context.Context, signer wallet.Session, lotteryID string, ticketPriceWei *big.Int) (string, error) {
	ks, err := keyedSession(signer)
	if err != nil {
		return "", err
	}
	id, err := parseTokenID(lotteryID)
	if err != nil {
		return "", err
	}
	opts, err := ks.transactOpts(ctx)
	if err != nil {
		return "", err
	}
	opts.Value = ticketPriceWei
	tx, err := l.contract.Transact(opts, "buyTicket", id)
	if err != nil {
		return "", fmt.Errorf("buyTicket: %w", err)
	}
	if _, err := l.client.waitMined(ctx, tx, "lottery", "buyTicket"); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// DrawLottery picks the winner of an expired lottery.
func (l *Lottery) DrawLottery(ctx context.Context, signer wallet.Session, lotteryID string) (string, error) {
	return l.simpleWrite(ctx, signer, lotteryID, "drawLottery")
}

// AnnounceWinner transfers the token and pot after a draw.
func (l *Lottery) AnnounceWinner(ctx context.Context, signer wallet.Session, lotteryID string) (string, error) {
	return l.simpleWrite(ctx, signer, lotteryID, "announceWinner")
}

// GetLottery reads one lottery by id.
func (l *Lottery) GetLottery(ctx context.Context, lotteryID string) (*market.LotteryState, error) {
	id, err := parseTokenID(lotteryID)
	if err != nil {
		return nil, err
	}

	var out []any
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, "lotteries", id); err != nil {
		return nil, fmt.Errorf("read lottery %s: %w", lotteryID, err)
	}

	owner := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	tokenID := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	ticketPrice := *abi.ConvertType(out[2], new(*big.Int)).(**big.Int)
	endTime := *abi.ConvertType(out[3], new(*big.Int)).(**big.Int)
	winner := *abi.ConvertType(out[4], new(common.Address)).(*common.Address)
	drawn := *abi.ConvertType(out[5], new(bool)).(*bool)
	active := *abi.ConvertType(out[6], new(bool)).(*bool)

	return &market.LotteryState{
		ID:             lotteryID,
		Owner:          owner.Hex(),
		TokenID:        tokenID.String(),
		TicketPriceWei: ticketPrice,
		TicketPrice:    ticketPrice.String(),
		EndTime:        time.Unix(endTime.Int64(), 0).UTC(),
		Winner:         winner.Hex(),
		Drawn:          drawn,
		Active:         active,
	}, nil
}

// GetPlayers reads the ticket holders of a lottery.
func (l *Lottery) GetPlayers(ctx context.Context, lotteryID string) ([]string, error) {
	id, err := parseTokenID(lotteryID)
	if err != nil {
		return nil, err
	}

	var out []any
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getPlayers", id); err != nil {
		return nil, fmt.Errorf("getPlayers %s: %w", lotteryID, err)
	}
	addrs := *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address)

	players := make([]string, 0, len(addrs))
	for _, a := range addrs {
		players = append(players, a.Hex())
	}
	return players, nil
}

// NextLotteryID reads the id the next startLottery call will take.
func (l *Lottery) NextLotteryID(ctx context.Context) (*big.Int, error) {
	var out []any
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, "nextLotteryId"); err != nil {
		return nil, fmt.Errorf("nextLotteryId: %w", err)
	}
	next := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return next, nil
}

func (l *Lottery) simpleWrite(ctx context.Context, signer wallet.Session, lotteryID, method string) (string, error) {
	ks, err := keyedSession(signer)
	if err != nil {
		return "", err
	}
	id, err := parseTokenID(lotteryID)
	if err != nil {
		return "", err
	}
	opts, err := ks.transactOpts(ctx)
	if err != nil {
		return "", err
	}
	tx, err := l.contract.Transact(opts, method, id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", method, err)
	}
	if _, err := l.client.waitMined(ctx, tx, "lottery", method); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}
