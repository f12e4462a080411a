package hyper402

// Price is the amount a resource charges per request, in the token's
// smallest unit, with an optional description shown to the payer.
type Price struct {
	// Amount is the required amount as a decimal string in atomic units.
	Amount string

	// Description is an optional human-readable description.
	Description string
}

// DefaultMaxTimeoutSeconds is the authorization validity window offered to
// payers when a requirement does not specify one.
const DefaultMaxTimeoutSeconds = 60

// BuildRequirement derives the PaymentRequirements for a resource from a
// chain configuration, a price and the recipient address. It is a pure
// function with no side effects; the token and chain metadata are copied
// into Extra so a signer or verifier on another machine can reconstruct the
// EIP-712 domain without a second registry lookup.
func BuildRequirement(chain ChainConfig, price Price, payTo, resource string) PaymentRequirements {
	extra := map[string]interface{}{
		// EIP-712 domain fields under the names x402 signers expect.
		"name":    chain.Token.Name,
		"version": chain.Token.Version,

		"tokenName":     chain.Token.Name,
		"tokenVersion":  chain.Token.Version,
		"tokenDecimals": chain.Token.Decimals,
		"chainId":       chain.ChainID,
		"rpcUrl":        chain.RPCURL,
		"nativeCurrency": map[string]interface{}{
			"name":     chain.NativeCurrency.Name,
			"symbol":   chain.NativeCurrency.Symbol,
			"decimals": chain.NativeCurrency.Decimals,
		},
	}
	if chain.BlockExplorer != "" {
		extra["blockExplorer"] = chain.BlockExplorer
	}
	if chain.FaucetURL != "" {
		extra["faucetUrl"] = chain.FaucetURL
	}

	return PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           chain.Network,
		MaxAmountRequired: price.Amount,
		Asset:             chain.Token.Address,
		PayTo:             payTo,
		Resource:          resource,
		Description:       price.Description,
		MimeType:          "application/json",
		MaxTimeoutSeconds: DefaultMaxTimeoutSeconds,
		Extra:             extra,
	}
}
