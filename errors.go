package hyper402

import "errors"

// Sentinel errors for facilitator operations.
var (
	// ErrInvalidNetwork indicates an unknown or unsupported network identifier.
	ErrInvalidNetwork = errors.New("hyper402: invalid or unsupported network")

	// ErrInvalidAmount indicates a malformed or negative amount string.
	ErrInvalidAmount = errors.New("hyper402: invalid amount")

	// ErrInvalidKey indicates an invalid facilitator private key.
	ErrInvalidKey = errors.New("hyper402: invalid private key")

	// ErrInvalidConfig indicates a chain configuration that failed validation.
	ErrInvalidConfig = errors.New("hyper402: invalid chain configuration")

	// ErrMalformedHeader indicates the X-PAYMENT header could not be decoded.
	ErrMalformedHeader = errors.New("hyper402: malformed payment header")

	// ErrMissingFields indicates a verify/settle request without a payment
	// payload or payment requirements.
	ErrMissingFields = errors.New("hyper402: missing paymentPayload or paymentRequirements")

	// ErrNoWallet indicates settlement was requested but no signing wallet
	// is configured.
	ErrNoWallet = errors.New("hyper402: no facilitator wallet configured")
)

// Invalid-reason codes reported in VerifyResponse.InvalidReason and, on
// failed settlement, in SettleResponse.ErrorReason. These are protocol data,
// not Go errors: verification failures are always folded into the response
// and never propagate past the facilitator boundary.
const (
	// ReasonUnsupportedScheme reports a scheme other than "exact" on the
	// payload or the requirements.
	ReasonUnsupportedScheme = "unsupported_scheme"

	// ReasonInvalidNetwork reports a payload/requirements network mismatch or
	// a network unknown to the chain registry.
	ReasonInvalidNetwork = "invalid_network"

	// ReasonInvalidAsset reports a requirements asset that is not the
	// configured token of the resolved chain.
	ReasonInvalidAsset = "invalid_asset"

	// ReasonInvalidSignature reports a signature whose recovered signer does
	// not match the authorization's from address.
	ReasonInvalidSignature = "invalid_exact_evm_payload_signature"

	// ReasonRecipientMismatch reports an authorization recipient that differs
	// from the requirements payTo address.
	ReasonRecipientMismatch = "invalid_exact_evm_payload_recipient_mismatch"

	// ReasonValidBefore reports an authorization expiring within the
	// settlement safety buffer.
	ReasonValidBefore = "invalid_exact_evm_payload_authorization_valid_before"

	// ReasonValidAfter reports an authorization that is not yet valid.
	ReasonValidAfter = "invalid_exact_evm_payload_authorization_valid_after"

	// ReasonInsufficientFunds reports an on-chain token balance below the
	// required amount.
	ReasonInsufficientFunds = "insufficient_funds"

	// ReasonInvalidValue reports an authorized value below the required amount.
	ReasonInvalidValue = "invalid_exact_evm_payload_authorization_value"

	// ReasonUnexpectedVerifyError reports malformed input or an
	// infrastructure failure during verification.
	ReasonUnexpectedVerifyError = "unexpected_verify_error"

	// ReasonSettlementFailed reports an unexpected failure during settlement.
	ReasonSettlementFailed = "settlement_failed"
)
