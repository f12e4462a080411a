package facilitator

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	hyper402 "github.com/waqaswahid1/hyper402"
)

func TestSettle_Success(t *testing.T) {
	wallet := newFakeWallet()
	f, _ := newTestFacilitator(t, wallet)
	key := testKey(t)
	chain := testChain()

	payload := signedPayload(t, key, chain, testPayTo, "10000", 0, testNow.Unix()+3600)
	resp := f.Settle(context.Background(), payload, testRequirement(chain, "10000"))

	if !resp.Success {
		t.Fatalf("Settle() failed: %s", resp.ErrorReason)
	}
	if resp.Transaction == "" {
		t.Error("Transaction hash missing from successful settlement")
	}
	if resp.Network != chain.Network {
		t.Errorf("Network = %s, want %s", resp.Network, chain.Network)
	}
	if want := crypto.PubkeyToAddress(key.PublicKey).Hex(); resp.Payer != want {
		t.Errorf("Payer = %s, want %s", resp.Payer, want)
	}
	if wallet.sentCount() != 1 {
		t.Errorf("Broadcast count = %d, want 1", wallet.sentCount())
	}
}

func TestSettle_NoBroadcastWhenReverificationFails(t *testing.T) {
	wallet := newFakeWallet()
	f, _ := newTestFacilitator(t, wallet)
	key := testKey(t)
	chain := testChain()

	// Recipient differs from the requirement's payTo.
	other := crypto.PubkeyToAddress(key.PublicKey)
	payload := signedPayload(t, key, chain, other, "10000", 0, testNow.Unix()+3600)

	resp := f.Settle(context.Background(), payload, testRequirement(chain, "10000"))

	if resp.Success {
		t.Fatal("Settle() succeeded for an invalid payment")
	}
	if resp.ErrorReason != hyper402.ReasonRecipientMismatch {
		t.Errorf("ErrorReason = %s, want %s", resp.ErrorReason, hyper402.ReasonRecipientMismatch)
	}
	if resp.Transaction != "" {
		t.Errorf("Transaction = %s, want empty", resp.Transaction)
	}
	if wallet.sentCount() != 0 {
		t.Errorf("Broadcast count = %d, want 0", wallet.sentCount())
	}
}

func TestSettle_ExpiredAuthorizationNotBroadcast(t *testing.T) {
	wallet := newFakeWallet()
	f, _ := newTestFacilitator(t, wallet)
	key := testKey(t)
	chain := testChain()

	// Valid signature, but the authorization expires inside the buffer by
	// settlement time.
	payload := signedPayload(t, key, chain, testPayTo, "10000", 0, testNow.Unix()+3)

	resp := f.Settle(context.Background(), payload, testRequirement(chain, "10000"))

	if resp.Success {
		t.Fatal("Settle() succeeded for an expired authorization")
	}
	if resp.ErrorReason != hyper402.ReasonValidBefore {
		t.Errorf("ErrorReason = %s, want %s", resp.ErrorReason, hyper402.ReasonValidBefore)
	}
	if wallet.sentCount() != 0 {
		t.Errorf("Broadcast count = %d, want 0", wallet.sentCount())
	}
}

func TestSettle_RevertedTransaction(t *testing.T) {
	wallet := newFakeWallet()
	wallet.receiptStatus = types.ReceiptStatusFailed
	f, _ := newTestFacilitator(t, wallet)
	key := testKey(t)
	chain := testChain()

	payload := signedPayload(t, key, chain, testPayTo, "10000", 0, testNow.Unix()+3600)
	resp := f.Settle(context.Background(), payload, testRequirement(chain, "10000"))

	if resp.Success {
		t.Fatal("Settle() succeeded for a reverted transaction")
	}
	if resp.Transaction == "" {
		t.Error("Transaction hash missing: a reverted-but-mined tx must stay inspectable")
	}
	if resp.ErrorReason == "" {
		t.Error("ErrorReason empty for reverted transaction")
	}
}

func TestSettle_BroadcastError(t *testing.T) {
	wallet := newFakeWallet()
	wallet.sendErr = errBoom
	f, _ := newTestFacilitator(t, wallet)
	key := testKey(t)
	chain := testChain()

	payload := signedPayload(t, key, chain, testPayTo, "10000", 0, testNow.Unix()+3600)
	resp := f.Settle(context.Background(), payload, testRequirement(chain, "10000"))

	if resp.Success {
		t.Fatal("Settle() succeeded despite broadcast error")
	}
	if resp.Transaction != "" {
		t.Errorf("Transaction = %s, want empty when nothing was broadcast", resp.Transaction)
	}
	if !strings.Contains(resp.ErrorReason, hyper402.ReasonSettlementFailed) {
		t.Errorf("ErrorReason = %s, want it to contain %s", resp.ErrorReason, hyper402.ReasonSettlementFailed)
	}
}

func TestSettle_ReceiptWaitError(t *testing.T) {
	wallet := newFakeWallet()
	wallet.receiptErr = errBoom
	f, _ := newTestFacilitator(t, wallet)
	key := testKey(t)
	chain := testChain()

	payload := signedPayload(t, key, chain, testPayTo, "10000", 0, testNow.Unix()+3600)
	resp := f.Settle(context.Background(), payload, testRequirement(chain, "10000"))

	if resp.Success {
		t.Fatal("Settle() succeeded despite receipt error")
	}
	if resp.Transaction == "" {
		t.Error("Transaction hash missing: the tx was broadcast and must stay inspectable")
	}
}

func TestSettle_CancelledBeforeBroadcast(t *testing.T) {
	wallet := newFakeWallet()
	f, _ := newTestFacilitator(t, wallet)
	key := testKey(t)
	chain := testChain()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload := signedPayload(t, key, chain, testPayTo, "10000", 0, testNow.Unix()+3600)
	resp := f.Settle(ctx, payload, testRequirement(chain, "10000"))

	if resp.Success {
		t.Fatal("Settle() succeeded with a cancelled context")
	}
	if wallet.sentCount() != 0 {
		t.Errorf("Broadcast count = %d, want 0 after cancellation", wallet.sentCount())
	}
}

func TestSettle_NoWallet(t *testing.T) {
	f, _ := newTestFacilitator(t, nil)
	key := testKey(t)
	chain := testChain()

	payload := signedPayload(t, key, chain, testPayTo, "10000", 0, testNow.Unix()+3600)
	resp := f.Settle(context.Background(), payload, testRequirement(chain, "10000"))

	if resp.Success {
		t.Fatal("Settle() succeeded without a wallet")
	}
	if resp.ErrorReason == "" {
		t.Error("ErrorReason empty for missing wallet")
	}
}

func TestSettle_SameChainBroadcastsSerialized(t *testing.T) {
	wallet := newFakeWallet()
	f, _ := newTestFacilitator(t, wallet)
	key := testKey(t)
	chain := testChain()

	const settlements = 16

	var wg sync.WaitGroup
	for i := 0; i < settlements; i++ {
		payload := signedPayload(t, key, chain, testPayTo, "10000", 0, testNow.Unix()+3600)
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := f.Settle(context.Background(), payload, testRequirement(chain, "10000"))
			if !resp.Success {
				t.Errorf("Settle() failed: %s", resp.ErrorReason)
			}
		}()
	}
	wg.Wait()

	wallet.mu.Lock()
	issued := append([]uint64(nil), wallet.issued...)
	wallet.mu.Unlock()

	if len(issued) != settlements {
		t.Fatalf("Issued sequence count = %d, want %d", len(issued), settlements)
	}
	for i := 1; i < len(issued); i++ {
		if issued[i] <= issued[i-1] {
			t.Fatalf("Sequence numbers not strictly increasing: %v", issued)
		}
	}
}

func TestSettle_DifferentChainsRunIndependently(t *testing.T) {
	wallet := newFakeWallet()
	f, _ := newTestFacilitator(t, wallet)
	key := testKey(t)

	var wg sync.WaitGroup
	for _, chain := range []hyper402.ChainConfig{testChain(), secondChain()} {
		payload := signedPayload(t, key, chain, testPayTo, "10000", 0, testNow.Unix()+3600)
		requirements := testRequirement(chain, "10000")
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := f.Settle(context.Background(), payload, requirements)
			if !resp.Success {
				t.Errorf("Settle() failed: %s", resp.ErrorReason)
			}
		}()
	}
	wg.Wait()

	if wallet.sentCount() != 2 {
		t.Errorf("Broadcast count = %d, want 2", wallet.sentCount())
	}
}
