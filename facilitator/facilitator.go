// Package facilitator implements the x402 payment facilitator engine:
// verification of signed EIP-3009 payment authorizations and their
// settlement on-chain from the facilitator's own account.
//
// The engine owns no RPC or key material itself. Chain reads and
// transaction broadcast are injected as capabilities (ChainReader, Wallet)
// so the engine stays testable with fakes and the per-chain broadcast
// serialization can be exercised without a live chain.
package facilitator

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	hyper402 "github.com/waqaswahid1/hyper402"
)

// ChainReader performs read-only chain queries during verification.
type ChainReader interface {
	// TokenBalance returns the chain token balance of account in atomic units.
	TokenBalance(ctx context.Context, chain hyper402.ChainConfig, account common.Address) (*big.Int, error)
}

// Wallet signs and broadcasts settlement transactions from the single
// facilitator-owned account. One account serves every chain; transaction
// ordering on a chain is governed by that account's sequence number, which
// is why the engine serializes broadcasts per chain.
type Wallet interface {
	// Address returns the facilitator account address.
	Address() common.Address

	// SendTransaction signs and broadcasts a transaction to the given
	// contract on the given chain and returns its hash.
	SendTransaction(ctx context.Context, chain hyper402.ChainConfig, to common.Address, data []byte) (common.Hash, error)

	// WaitForReceipt blocks until the transaction is included or ctx expires.
	WaitForReceipt(ctx context.Context, chain hyper402.ChainConfig, txHash common.Hash) (*types.Receipt, error)
}

// Facilitator verifies and settles x402 payments against a chain registry.
// Verification is stateless and safe for arbitrary concurrency; settlement
// is serialized per chain (see Settle).
type Facilitator struct {
	registry *hyper402.Registry
	reader   ChainReader
	wallet   Wallet
	timeouts hyper402.TimeoutConfig
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	chainLocks map[string]*sync.Mutex
}

// Option configures a Facilitator.
type Option func(*Facilitator)

// WithLogger sets the logger used by the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Facilitator) {
		f.logger = logger
	}
}

// WithTimeouts sets the time budgets for chain reads and receipt waits.
func WithTimeouts(timeouts hyper402.TimeoutConfig) Option {
	return func(f *Facilitator) {
		f.timeouts = timeouts
	}
}

// WithClock overrides the time source. Used by tests to pin "now" for the
// authorization validity checks.
func WithClock(now func() time.Time) Option {
	return func(f *Facilitator) {
		f.now = now
	}
}

// New creates a facilitator over the given registry and capabilities.
// wallet may be nil for a verify-only deployment; Settle then fails with a
// structured error response.
func New(registry *hyper402.Registry, reader ChainReader, wallet Wallet, opts ...Option) *Facilitator {
	f := &Facilitator{
		registry:   registry,
		reader:     reader,
		wallet:     wallet,
		timeouts:   hyper402.DefaultTimeouts,
		logger:     slog.Default(),
		now:        time.Now,
		chainLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Supported lists the scheme/network pairs this facilitator settles, one
// per registered chain.
func (f *Facilitator) Supported() *hyper402.SupportedResponse {
	chains := f.registry.All()
	kinds := make([]hyper402.SupportedKind, 0, len(chains))
	for _, chain := range chains {
		kinds = append(kinds, hyper402.SupportedKind{
			X402Version: hyper402.X402Version,
			Scheme:      hyper402.SchemeExact,
			Network:     chain.Network,
		})
	}
	return &hyper402.SupportedResponse{Kinds: kinds}
}

// WalletAddress returns the facilitator account address, or false when the
// engine runs verify-only without a wallet.
func (f *Facilitator) WalletAddress() (common.Address, bool) {
	if f.wallet == nil {
		return common.Address{}, false
	}
	return f.wallet.Address(), true
}

// chainLock returns the broadcast lock for a chain. Locks are scoped to the
// (account, chain) pair; the account is fixed per Facilitator, so the
// network key suffices.
func (f *Facilitator) chainLock(network string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()

	lock, ok := f.chainLocks[network]
	if !ok {
		lock = &sync.Mutex{}
		f.chainLocks[network] = lock
	}
	return lock
}

// VerifyRequest is the request body of POST /verify.
type VerifyRequest struct {
	// X402Version is the protocol version (1).
	X402Version int `json:"x402Version"`

	// PaymentPayload contains the signed payment data from the caller.
	PaymentPayload hyper402.PaymentPayload `json:"paymentPayload"`

	// PaymentRequirements contains the requirement the payment must satisfy.
	PaymentRequirements hyper402.PaymentRequirements `json:"paymentRequirements"`
}

// SettleRequest is the request body of POST /settle.
type SettleRequest struct {
	// X402Version is the protocol version (1).
	X402Version int `json:"x402Version"`

	// PaymentPayload contains the signed payment data from the caller.
	PaymentPayload hyper402.PaymentPayload `json:"paymentPayload"`

	// PaymentRequirements contains the requirement the payment must satisfy.
	PaymentRequirements hyper402.PaymentRequirements `json:"paymentRequirements"`
}
