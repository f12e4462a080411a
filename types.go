// Package hyper402 implements the x402 payment facilitator protocol for
// EVM chains with EIP-3009 tokens.
//
// The facilitator sits between a resource server and the blockchain: it
// describes what payment a resource requires, verifies signed payment
// authorizations submitted by callers, and settles authorized transfers
// on-chain from its own gas-paying account. Resource servers never touch
// private keys or RPC endpoints themselves.
package hyper402

// X402Version is the x402 protocol version spoken on the wire.
const X402Version = 1

// SchemeExact is the payment scheme where the caller authorizes a fixed
// required amount (or more), as opposed to open-ended or metered schemes.
const SchemeExact = "exact"

// PaymentRequirements describes a single acceptable payment for a resource.
// It is attached to 402 responses inside the "accepts" array and echoed back
// to the facilitator on /verify and /settle.
type PaymentRequirements struct {
	// Scheme is the payment scheme identifier ("exact").
	Scheme string `json:"scheme"`

	// Network is the x402 network identifier (e.g. "polygon-amoy").
	Network string `json:"network"`

	// MaxAmountRequired is the required amount as a decimal string in the
	// token's smallest unit.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Asset is the token contract address invoked for settlement.
	Asset string `json:"asset"`

	// PayTo is the recipient address for the payment.
	PayTo string `json:"payTo"`

	// Resource is the URI of the protected resource.
	Resource string `json:"resource"`

	// Description is an optional human-readable description.
	Description string `json:"description,omitempty"`

	// MimeType is the content type of the protected resource.
	MimeType string `json:"mimeType,omitempty"`

	// MaxTimeoutSeconds is the validity period for the payment authorization.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds,omitempty"`

	// Extra carries token and chain metadata (EIP-712 domain fields, chain ID,
	// RPC URL) so a signer or verifier on another machine can reconstruct the
	// signing domain without a registry lookup.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Authorization contains the EIP-3009 transferWithAuthorization parameters.
// Value, ValidAfter and ValidBefore are decimal strings to avoid numeric
// precision loss; Nonce is a 0x-prefixed 32-byte hex string chosen by the
// caller. Replay protection is enforced on-chain by the token contract,
// keyed on (from, nonce).
type Authorization struct {
	// From is the payer's address.
	From string `json:"from"`

	// To is the recipient's address.
	To string `json:"to"`

	// Value is the payment amount in atomic units.
	Value string `json:"value"`

	// ValidAfter is the unix timestamp after which the authorization is valid.
	ValidAfter string `json:"validAfter"`

	// ValidBefore is the unix timestamp before which the authorization is valid.
	ValidBefore string `json:"validBefore"`

	// Nonce is a unique 32-byte hex string to prevent replay attacks.
	Nonce string `json:"nonce"`
}

// ExactEVMPayload contains the signed EIP-3009 authorization for the
// "exact" scheme on EVM chains.
type ExactEVMPayload struct {
	// Signature is the hex-encoded 65-byte ECDSA signature over the
	// EIP-712 typed authorization.
	Signature string `json:"signature"`

	// Authorization contains the transferWithAuthorization parameters.
	Authorization Authorization `json:"authorization"`
}

// PaymentPayload is the signed payment submitted by a caller, carried in the
// X-PAYMENT header and forwarded to the facilitator by the resource server.
type PaymentPayload struct {
	// X402Version is the protocol version (1).
	X402Version int `json:"x402Version"`

	// Scheme is the payment scheme identifier ("exact").
	Scheme string `json:"scheme"`

	// Network is the x402 network identifier.
	Network string `json:"network"`

	// Payload contains the signature and authorization.
	Payload ExactEVMPayload `json:"payload"`
}

// VerifyResponse is returned by the facilitator /verify endpoint.
type VerifyResponse struct {
	// IsValid indicates whether the payment authorization is valid.
	IsValid bool `json:"isValid"`

	// InvalidReason is a short error code describing the first failed check.
	InvalidReason string `json:"invalidReason,omitempty"`

	// Payer is the address that signed the authorization.
	Payer string `json:"payer,omitempty"`
}

// SettleResponse is returned by the facilitator /settle endpoint.
type SettleResponse struct {
	// Success indicates whether the payment was settled on-chain.
	Success bool `json:"success"`

	// Transaction is the blockchain transaction hash. It is populated even
	// for failed settlements when a hash was obtained, so callers can
	// inspect a failed-but-mined transaction.
	Transaction string `json:"transaction,omitempty"`

	// Network is the x402 network identifier the settlement ran on.
	Network string `json:"network"`

	// Payer is the address that made the payment.
	Payer string `json:"payer,omitempty"`

	// ErrorReason is a short error code or message if settlement failed.
	ErrorReason string `json:"errorReason,omitempty"`
}

// SupportedKind describes a payment type supported by the facilitator.
type SupportedKind struct {
	// X402Version is the protocol version supported.
	X402Version int `json:"x402Version"`

	// Scheme is the payment scheme identifier ("exact").
	Scheme string `json:"scheme"`

	// Network is the x402 network identifier.
	Network string `json:"network"`
}

// SupportedResponse is returned by the facilitator /supported endpoint,
// one kind per registered chain.
type SupportedResponse struct {
	// Kinds lists the payment types supported by the facilitator.
	Kinds []SupportedKind `json:"kinds"`
}

// PaymentRequired is the 402 response body sent by resource servers.
type PaymentRequired struct {
	// Error is an optional human-readable error message.
	Error string `json:"error,omitempty"`

	// Accepts is an array of payment options the server will accept.
	Accepts []PaymentRequirements `json:"accepts"`
}
