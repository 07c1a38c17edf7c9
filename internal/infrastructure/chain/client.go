// Package chain holds the ethclient-backed bindings for the deployed
// marketplace, auction, escrow, lottery and Origin IP-NFT contracts. Every
// write waits for the mined receipt; a reverted receipt is an error.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"ipmarket-server/internal/config"
	"ipmarket-server/internal/infrastructure/metrics"
)

// Client wraps the RPC connection shared by all contract bindings.
type Client struct {
	eth            *ethclient.Client
	chainID        *big.Int
	receiptTimeout time.Duration
	log            zerolog.Logger
}

// Dial connects to the chain RPC endpoint and verifies the chain id.
func Dial(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.ChainRPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc %s: %w", cfg.ChainRPCURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	if chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("chain id mismatch: rpc reports %d, configured %d", chainID.Int64(), cfg.ChainID)
	}

	log.Info().
		Str("rpc_url", cfg.ChainRPCURL).
		Int64("chain_id", cfg.ChainID).
		Msg("connected to chain")

	return &Client{
		eth:            eth,
		chainID:        chainID,
		receiptTimeout: cfg.ReceiptTimeout,
		log:            log.With().Str("component", "chain-client").Logger(),
	}, nil
}

// Close tears down the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// ChainID returns the connected network's chain id.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Backend exposes the underlying bind backend for contract construction.
func (c *Client) Backend() bind.ContractBackend {
	return c.eth
}

// BalanceAt returns the wei balance of the address at the latest block.
func (c *Client) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	return c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
}

// waitMined blocks until the transaction is mined, bounded by the configured
// receipt timeout, and fails on a reverted receipt. Every write is counted
// per contract and method.
func (c *Client) waitMined(ctx context.Context, tx *types.Transaction, contract, method string) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	start := time.Now()
	receipt, err := bind.WaitMined(waitCtx, c.eth, tx)
	metrics.ChainWriteDuration.WithLabelValues(contract, method).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ChainWritesTotal.WithLabelValues(contract, method, "failed").Inc()
		return nil, fmt.Errorf("wait mined %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		metrics.ChainWritesTotal.WithLabelValues(contract, method, "reverted").Inc()
		return nil, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	metrics.ChainWritesTotal.WithLabelValues(contract, method, "mined").Inc()
	return receipt, nil
}
