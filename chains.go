package hyper402

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"
)

// NativeCurrency describes the gas currency of a chain.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// TokenConfig describes the EIP-3009 token settled on a chain. Name and
// Version are the EIP-712 domain fields of the token contract; Address is
// the contract invoked for settlement.
type TokenConfig struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Version  string `json:"version"`
}

// ChainConfig holds the validated configuration for one supported
// chain/token pair. Immutable once loaded into a Registry.
type ChainConfig struct {
	// Network is the x402 network identifier (e.g. "polygon-amoy"), unique
	// across a registry.
	Network string `json:"network"`

	// ChainID is the EVM chain ID used in the EIP-712 domain and for
	// transaction signing.
	ChainID uint64 `json:"chainId"`

	// Name is the human-readable chain name.
	Name string `json:"name"`

	// RPCURL is the JSON-RPC endpoint for the chain.
	RPCURL string `json:"rpcUrl"`

	// BlockExplorer is an optional explorer base URL.
	BlockExplorer string `json:"blockExplorer,omitempty"`

	// FaucetURL is an optional testnet faucet URL.
	FaucetURL string `json:"faucetUrl,omitempty"`

	// NativeCurrency is the gas currency of the chain.
	NativeCurrency NativeCurrency `json:"nativeCurrency"`

	// Token is the EIP-3009 token settled on this chain.
	Token TokenConfig `json:"token"`
}

// DefaultChainConfigs returns the built-in chain set used when CHAIN_CONFIGS
// is absent or unusable. The first entry is the registry default. RPC URLs
// and token addresses honor per-chain environment overrides.
func DefaultChainConfigs() []ChainConfig {
	return []ChainConfig{
		{
			Network: "polygon-amoy",
			ChainID: 80002,
			Name:    "Polygon Amoy",
			RPCURL:  envOr("POLYGON_AMOY_RPC_URL", "https://rpc-amoy.polygon.technology"),
			NativeCurrency: NativeCurrency{
				Name:     "Polygon",
				Symbol:   "POL",
				Decimals: 18,
			},
			BlockExplorer: "https://amoy.polygonscan.com",
			FaucetURL:     "https://faucet.circle.com",
			Token: TokenConfig{
				Address:  envOr("POLYGON_AMOY_USDC_CONTRACT_ADDRESS", "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582"),
				Name:     "USDC",
				Symbol:   "USDC",
				Decimals: 6,
				Version:  "2",
			},
		},
		{
			Network: "hyperevm-testnet",
			ChainID: 998,
			Name:    "HyperEVM Testnet",
			RPCURL:  envOr("HYPEREVM_RPC_URL", "https://rpc.hyperliquid-testnet.xyz/evm"),
			NativeCurrency: NativeCurrency{
				Name:     "HYPE",
				Symbol:   "HYPE",
				Decimals: 18,
			},
			BlockExplorer: "https://testnet.purrsec.com",
			Token: TokenConfig{
				Address:  envOr("USDC_CONTRACT_ADDRESS", "0x2B3370eE501B4a559b57D449569354196457D8Ab"),
				Name:     "USDC",
				Symbol:   "USDC",
				Decimals: 6,
				Version:  "2",
			},
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Registry holds the validated chain configurations for the facilitator.
// It is a pure in-memory lookup with no I/O and is safe for concurrent use.
type Registry struct {
	configs   []ChainConfig
	byNetwork map[string]ChainConfig
}

// NewRegistry validates the given configurations and builds a registry.
// Every entry must have a non-empty unique network key, a syntactically
// valid token address, and a non-zero chain ID. An invalid entry rejects
// the whole set; the registry is never partially populated.
func NewRegistry(configs []ChainConfig) (*Registry, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: empty chain set", ErrInvalidConfig)
	}

	byNetwork := make(map[string]ChainConfig, len(configs))
	for i, config := range configs {
		if config.Network == "" {
			return nil, fmt.Errorf("%w: entry %d has an empty network key", ErrInvalidConfig, i)
		}
		if _, dup := byNetwork[config.Network]; dup {
			return nil, fmt.Errorf("%w: duplicate network key %q", ErrInvalidConfig, config.Network)
		}
		if config.ChainID == 0 {
			return nil, fmt.Errorf("%w: %s has no chain ID", ErrInvalidConfig, config.Network)
		}
		if !common.IsHexAddress(config.Token.Address) {
			return nil, fmt.Errorf("%w: %s has an invalid token address %q", ErrInvalidConfig, config.Network, config.Token.Address)
		}
		byNetwork[config.Network] = config
	}

	return &Registry{
		configs:   append([]ChainConfig(nil), configs...),
		byNetwork: byNetwork,
	}, nil
}

// Lookup returns the chain configuration for a network identifier.
func (r *Registry) Lookup(network string) (ChainConfig, error) {
	config, ok := r.byNetwork[network]
	if !ok {
		return ChainConfig{}, fmt.Errorf("%w: %s", ErrInvalidNetwork, network)
	}
	return config, nil
}

// Default returns the first configured chain.
func (r *Registry) Default() ChainConfig {
	return r.configs[0]
}

// All returns the configured chains in load order. The returned slice is a
// copy; mutating it does not affect the registry.
func (r *Registry) All() []ChainConfig {
	return append([]ChainConfig(nil), r.configs...)
}

// LoadRegistry builds a registry from a raw CHAIN_CONFIGS JSON blob.
// A nil/empty blob loads the built-in defaults. A blob that fails to parse
// or validate falls back to the defaults with a logged warning, so the
// loaded registry is always non-empty and deterministic for a given input.
func LoadRegistry(raw []byte, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	if len(raw) == 0 {
		return mustDefaultRegistry()
	}

	var configs []ChainConfig
	if err := json.Unmarshal(raw, &configs); err != nil {
		logger.Warn("failed to parse CHAIN_CONFIGS, falling back to built-in defaults", "error", err)
		return mustDefaultRegistry()
	}

	registry, err := NewRegistry(configs)
	if err != nil {
		logger.Warn("invalid CHAIN_CONFIGS, falling back to built-in defaults", "error", err)
		return mustDefaultRegistry()
	}

	return registry
}

// mustDefaultRegistry builds the registry from DefaultChainConfigs. The
// built-in set is known valid, so a failure here is a programming error.
func mustDefaultRegistry() *Registry {
	registry, err := NewRegistry(DefaultChainConfigs())
	if err != nil {
		panic(fmt.Sprintf("hyper402: built-in chain configs invalid: %v", err))
	}
	return registry
}
