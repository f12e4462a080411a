package facilitator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	hyper402 "github.com/waqaswahid1/hyper402"
	"github.com/waqaswahid1/hyper402/internal/eip3009"
)

// Settle re-verifies a payment and submits the authorized transfer as a
// transferWithAuthorization call from the facilitator account, paying gas
// in the chain's native currency.
//
// Verification is always re-run in full: a payload verified minutes earlier
// may have expired, been double-spent, or have insufficient funds by
// settlement time. When re-verification fails, nothing is broadcast.
//
// Broadcasts on one chain are serialized: every settlement on a chain is
// sent from the same account, and the chain orders that account's
// transactions by a strictly increasing sequence number, so two concurrent
// submissions would race for the same number. Settlements on different
// chains proceed in parallel.
//
// There is no rollback and no automatic retry: once broadcast the
// transaction is irrevocable, and blind retries of a signing operation risk
// double-submission, so RPC failures surface as a failed result for the
// caller to reconcile. Cancellation is honored only up to the broadcast;
// after that the receipt wait is bounded by SettleTimeout alone.
func (f *Facilitator) Settle(ctx context.Context, payload hyper402.PaymentPayload, requirements hyper402.PaymentRequirements) *hyper402.SettleResponse {
	payer := payload.Payload.Authorization.From

	fail := func(reason string) *hyper402.SettleResponse {
		return &hyper402.SettleResponse{
			Success:     false,
			Network:     payload.Network,
			Payer:       payer,
			ErrorReason: reason,
		}
	}

	if f.wallet == nil {
		return fail(hyper402.ErrNoWallet.Error())
	}

	verifyResp := f.Verify(ctx, payload, requirements)
	if !verifyResp.IsValid {
		f.logger.Info("settlement refused, re-verification failed",
			"network", payload.Network, "payer", payer, "reason", verifyResp.InvalidReason)
		return fail(verifyResp.InvalidReason)
	}

	// The lookups below cannot fail once verification has passed.
	chain, err := f.registry.Lookup(requirements.Network)
	if err != nil {
		return fail(hyper402.ReasonSettlementFailed)
	}
	auth, err := parseAuthorization(payload.Payload.Authorization)
	if err != nil {
		return fail(hyper402.ReasonSettlementFailed)
	}
	signature, err := eip3009.DecodeSignature(payload.Payload.Signature)
	if err != nil {
		return fail(hyper402.ReasonSettlementFailed)
	}

	data, err := eip3009.PackTransferWithAuthorization(auth, signature)
	if err != nil {
		f.logger.Error("failed to encode transferWithAuthorization", "error", err)
		return fail(fmt.Sprintf("%s: %v", hyper402.ReasonSettlementFailed, err))
	}

	f.logger.Info("settling payment",
		"network", chain.Network,
		"payer", auth.From.Hex(),
		"to", auth.To.Hex(),
		"value", auth.Value.String(),
		"token", chain.Token.Address)

	lock := f.chainLock(chain.Network)
	lock.Lock()

	// Last safe point to honor cancellation: nothing is on the wire yet.
	if err := ctx.Err(); err != nil {
		lock.Unlock()
		return fail(fmt.Sprintf("%s: %v", hyper402.ReasonSettlementFailed, err))
	}

	txHash, err := f.wallet.SendTransaction(ctx, chain, common.HexToAddress(chain.Token.Address), data)
	lock.Unlock()
	if err != nil {
		f.logger.Error("broadcast failed", "network", chain.Network, "error", err)
		return fail(fmt.Sprintf("%s: %v", hyper402.ReasonSettlementFailed, err))
	}

	// The transaction is submitted; caller cancellation can no longer undo
	// it, so the receipt wait runs on its own budget.
	waitCtx := context.WithoutCancel(ctx)
	if f.timeouts.SettleTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, f.timeouts.SettleTimeout)
		defer cancel()
	}

	receipt, err := f.wallet.WaitForReceipt(waitCtx, chain, txHash)
	if err != nil {
		f.logger.Error("receipt wait failed", "network", chain.Network, "tx", txHash.Hex(), "error", err)
		resp := fail(fmt.Sprintf("%s: receipt wait: %v", hyper402.ReasonSettlementFailed, err))
		resp.Transaction = txHash.Hex()
		return resp
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		f.logger.Warn("settlement transaction reverted", "network", chain.Network, "tx", txHash.Hex())
		resp := fail(fmt.Sprintf("%s: transaction reverted", hyper402.ReasonSettlementFailed))
		resp.Transaction = txHash.Hex()
		return resp
	}

	f.logger.Info("settlement confirmed", "network", chain.Network, "tx", txHash.Hex(), "payer", auth.From.Hex())

	return &hyper402.SettleResponse{
		Success:     true,
		Transaction: txHash.Hex(),
		Network:     payload.Network,
		Payer:       auth.From.Hex(),
	}
}
