package hyper402

import (
	"fmt"
	"time"
)

// TimeoutConfig holds time budgets for facilitator operations. Chain reads
// and receipt waits are always bounded; a timeout surfaces as a failed
// result rather than blocking indefinitely.
type TimeoutConfig struct {
	// VerifyTimeout bounds the on-chain reads performed during verification.
	VerifyTimeout time.Duration

	// SettleTimeout bounds the wait for transaction inclusion during
	// settlement.
	SettleTimeout time.Duration
}

// DefaultTimeouts provides sensible defaults for facilitator operations.
var DefaultTimeouts = TimeoutConfig{
	VerifyTimeout: 5 * time.Second,
	SettleTimeout: 60 * time.Second,
}

// WithVerifyTimeout returns a new TimeoutConfig with updated verify timeout.
func (tc TimeoutConfig) WithVerifyTimeout(d time.Duration) TimeoutConfig {
	tc.VerifyTimeout = d
	return tc
}

// WithSettleTimeout returns a new TimeoutConfig with updated settle timeout.
func (tc TimeoutConfig) WithSettleTimeout(d time.Duration) TimeoutConfig {
	tc.SettleTimeout = d
	return tc
}

// Validate ensures timeout values are reasonable.
func (tc TimeoutConfig) Validate() error {
	if tc.VerifyTimeout <= 0 {
		return fmt.Errorf("verify timeout must be positive, got %v", tc.VerifyTimeout)
	}
	if tc.SettleTimeout <= 0 {
		return fmt.Errorf("settle timeout must be positive, got %v", tc.SettleTimeout)
	}
	if tc.SettleTimeout < tc.VerifyTimeout {
		return fmt.Errorf("settle timeout (%v) should be >= verify timeout (%v)",
			tc.SettleTimeout, tc.VerifyTimeout)
	}
	return nil
}
