package facilitator

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	hyper402 "github.com/waqaswahid1/hyper402"
	"github.com/waqaswahid1/hyper402/internal/eip3009"
)

// validBeforeBufferSeconds is the safety margin against clock skew and
// settlement latency: an authorization expiring within this window of "now"
// is rejected even though the token contract would still accept it.
const validBeforeBufferSeconds = 6

// Verify validates a payment payload against a payment requirement through
// an ordered set of checks. The first failing check short-circuits and its
// code becomes InvalidReason; cheap local checks run before on-chain reads.
//
// Verification performs no mutation and no on-chain write. Failures are
// reported as data in the response and never escape as errors, so the
// method is safe to call repeatedly and concurrently for the same payload.
func (f *Facilitator) Verify(ctx context.Context, payload hyper402.PaymentPayload, requirements hyper402.PaymentRequirements) *hyper402.VerifyResponse {
	payer := payload.Payload.Authorization.From

	invalid := func(reason string) *hyper402.VerifyResponse {
		return &hyper402.VerifyResponse{IsValid: false, InvalidReason: reason, Payer: payer}
	}

	// 1. Scheme.
	if payload.Scheme != hyper402.SchemeExact || requirements.Scheme != hyper402.SchemeExact {
		return invalid(hyper402.ReasonUnsupportedScheme)
	}

	// 2. Network: payload and requirement agree, and the chain is registered.
	if payload.Network != requirements.Network {
		return invalid(hyper402.ReasonInvalidNetwork)
	}
	chain, err := f.registry.Lookup(requirements.Network)
	if err != nil {
		return invalid(hyper402.ReasonInvalidNetwork)
	}

	// 3. Asset: the requirement must reference the chain's configured token.
	// Exact normalized address comparison, no symbol heuristics.
	if !common.IsHexAddress(requirements.Asset) ||
		common.HexToAddress(requirements.Asset) != common.HexToAddress(chain.Token.Address) {
		return invalid(hyper402.ReasonInvalidAsset)
	}

	auth, err := parseAuthorization(payload.Payload.Authorization)
	if err != nil {
		f.logger.Warn("malformed authorization", "network", payload.Network, "error", err)
		return invalid(hyper402.ReasonUnexpectedVerifyError)
	}
	required, err := parseAmount(requirements.MaxAmountRequired)
	if err != nil {
		f.logger.Warn("malformed required amount", "network", payload.Network, "error", err)
		return invalid(hyper402.ReasonUnexpectedVerifyError)
	}
	if !common.IsHexAddress(requirements.PayTo) {
		return invalid(hyper402.ReasonUnexpectedVerifyError)
	}

	// 4. EIP-712 signature: the recovered signer must be the payer.
	recovered, err := eip3009.RecoverSigner(
		common.HexToAddress(chain.Token.Address),
		new(big.Int).SetUint64(chain.ChainID),
		auth,
		chain.Token.Name,
		chain.Token.Version,
		payload.Payload.Signature,
	)
	if err != nil || recovered != auth.From {
		return invalid(hyper402.ReasonInvalidSignature)
	}

	// 5. Recipient must match the requirement.
	if auth.To != common.HexToAddress(requirements.PayTo) {
		return invalid(hyper402.ReasonRecipientMismatch)
	}

	// 6. Authorization must outlive the settlement safety buffer.
	now := big.NewInt(f.now().Unix())
	deadline := new(big.Int).Add(now, big.NewInt(validBeforeBufferSeconds))
	if auth.ValidBefore.Cmp(deadline) < 0 {
		return invalid(hyper402.ReasonValidBefore)
	}

	// 7. Authorization must already be valid.
	if auth.ValidAfter.Cmp(now) > 0 {
		return invalid(hyper402.ReasonValidAfter)
	}

	// 8. On-chain balance covers the required amount.
	readCtx := ctx
	if f.timeouts.VerifyTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, f.timeouts.VerifyTimeout)
		defer cancel()
	}
	balance, err := f.reader.TokenBalance(readCtx, chain, auth.From)
	if err != nil {
		f.logger.Warn("balance read failed", "network", chain.Network, "payer", auth.From.Hex(), "error", err)
		return invalid(hyper402.ReasonUnexpectedVerifyError)
	}
	if balance.Cmp(required) < 0 {
		return invalid(hyper402.ReasonInsufficientFunds)
	}

	// 9. Authorized value covers the required amount.
	if auth.Value.Cmp(required) < 0 {
		return invalid(hyper402.ReasonInvalidValue)
	}

	return &hyper402.VerifyResponse{IsValid: true, Payer: auth.From.Hex()}
}

// parseAuthorization converts wire-format authorization fields into their
// typed forms. Amounts and timestamps are arbitrary-precision: values can
// exceed the 53-bit safe integer range of the JSON producers.
func parseAuthorization(auth hyper402.Authorization) (*eip3009.Authorization, error) {
	if !common.IsHexAddress(auth.From) {
		return nil, fmt.Errorf("invalid from address: %q", auth.From)
	}
	if !common.IsHexAddress(auth.To) {
		return nil, fmt.Errorf("invalid to address: %q", auth.To)
	}

	value, err := parseAmount(auth.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %w", err)
	}
	validAfter, err := parseAmount(auth.ValidAfter)
	if err != nil {
		return nil, fmt.Errorf("invalid validAfter: %w", err)
	}
	validBefore, err := parseAmount(auth.ValidBefore)
	if err != nil {
		return nil, fmt.Errorf("invalid validBefore: %w", err)
	}

	nonceBytes, err := hex.DecodeString(strings.TrimPrefix(auth.Nonce, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid nonce encoding: %w", err)
	}
	if len(nonceBytes) != 32 {
		return nil, fmt.Errorf("invalid nonce length: %d", len(nonceBytes))
	}
	var nonce [32]byte
	copy(nonce[:], nonceBytes)

	return &eip3009.Authorization{
		From:        common.HexToAddress(auth.From),
		To:          common.HexToAddress(auth.To),
		Value:       value,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       nonce,
	}, nil
}

// parseAmount parses a non-negative decimal string into a big.Int.
func parseAmount(amount string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", hyper402.ErrInvalidAmount, amount)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative: %q", hyper402.ErrInvalidAmount, amount)
	}
	return value, nil
}
