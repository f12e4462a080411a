// Package ethbackend implements the facilitator's chain capabilities on
// go-ethereum's JSON-RPC client: token balance reads for verification and
// transaction signing, broadcast and receipt polling for settlement.
package ethbackend

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	hyper402 "github.com/waqaswahid1/hyper402"
	"github.com/waqaswahid1/hyper402/internal/eip3009"
)

// defaultPollInterval is how often the receipt wait polls the chain.
const defaultPollInterval = 2 * time.Second

// Backend talks to the chains in a registry through their configured RPC
// endpoints. It satisfies both facilitator.ChainReader and, when
// constructed with a key, facilitator.Wallet. Clients are dialed lazily
// and cached per network.
type Backend struct {
	key     *ecdsa.PrivateKey
	address common.Address
	logger  *slog.Logger

	pollInterval time.Duration

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used by the backend.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// WithPollInterval sets the receipt polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(b *Backend) {
		b.pollInterval = d
	}
}

// New creates a backend that signs settlement transactions with the given
// hex-encoded private key. The derived address pays gas on every chain, so
// it must be funded with each chain's native currency.
func New(privateKeyHex string, opts ...Option) (*Backend, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, hyper402.ErrInvalidKey
	}

	b := newBackend(opts)
	b.key = key
	b.address = crypto.PubkeyToAddress(key.PublicKey)
	return b, nil
}

// NewReadOnly creates a backend without signing material. Balance reads
// work; SendTransaction fails with ErrNoWallet.
func NewReadOnly(opts ...Option) *Backend {
	return newBackend(opts)
}

func newBackend(opts []Option) *Backend {
	b := &Backend{
		logger:       slog.Default(),
		pollInterval: defaultPollInterval,
		clients:      make(map[string]*ethclient.Client),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Address returns the facilitator account address, or the zero address for
// a read-only backend.
func (b *Backend) Address() common.Address {
	return b.address
}

// CanSign reports whether the backend holds signing material.
func (b *Backend) CanSign() bool {
	return b.key != nil
}

// client returns the cached RPC client for a chain, dialing on first use.
func (b *Backend) client(ctx context.Context, chain hyper402.ChainConfig) (*ethclient.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if client, ok := b.clients[chain.Network]; ok {
		return client, nil
	}

	client, err := ethclient.DialContext(ctx, chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", chain.Network, err)
	}
	b.clients[chain.Network] = client
	return client, nil
}

// TokenBalance reads the chain token balance of account via a balanceOf
// eth_call against the latest block.
func (b *Backend) TokenBalance(ctx context.Context, chain hyper402.ChainConfig, account common.Address) (*big.Int, error) {
	client, err := b.client(ctx, chain)
	if err != nil {
		return nil, err
	}

	data, err := eip3009.PackBalanceOf(account)
	if err != nil {
		return nil, err
	}

	token := common.HexToAddress(chain.Token.Address)
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call on %s failed: %w", chain.Network, err)
	}

	return eip3009.UnpackBalanceOf(result)
}

// SendTransaction signs and broadcasts a contract call from the
// facilitator account. The caller is responsible for serializing
// concurrent sends on one chain; the account sequence number is read from
// the node's pending state at send time.
func (b *Backend) SendTransaction(ctx context.Context, chain hyper402.ChainConfig, to common.Address, data []byte) (common.Hash, error) {
	if b.key == nil {
		return common.Hash{}, hyper402.ErrNoWallet
	}

	client, err := b.client(ctx, chain)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := client.PendingNonceAt(ctx, b.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch account nonce: %w", err)
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch gas price: %w", err)
	}

	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: b.address,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas estimation failed: %w", err)
	}
	// Headroom against estimation drift between simulation and inclusion.
	gas += gas / 5

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Data:     data,
	})

	chainID := new(big.Int).SetUint64(chain.ChainID)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), b.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast on %s failed: %w", chain.Network, err)
	}

	b.logger.Debug("transaction broadcast",
		"network", chain.Network, "tx", signed.Hash().Hex(), "nonce", nonce, "gas", gas)

	return signed.Hash(), nil
}

// WaitForReceipt polls for the transaction receipt until it appears or ctx
// expires. Transient RPC errors are retried on the next poll.
func (b *Backend) WaitForReceipt(ctx context.Context, chain hyper402.ChainConfig, txHash common.Hash) (*types.Receipt, error) {
	client, err := b.client(ctx, chain)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if err != ethereum.NotFound {
			b.logger.Debug("receipt poll failed, retrying",
				"network", chain.Network, "tx", txHash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for receipt of %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
