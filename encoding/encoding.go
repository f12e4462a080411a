// Package encoding provides the wire codecs for x402 payment headers:
// base64-encoded JSON for the X-PAYMENT request header and the
// X-PAYMENT-RESPONSE settlement header.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	hyper402 "github.com/waqaswahid1/hyper402"
)

// EncodePayment converts a PaymentPayload to a base64-encoded JSON string
// for the X-PAYMENT header.
func EncodePayment(payment hyper402.PaymentPayload) (string, error) {
	paymentJSON, err := json.Marshal(payment)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment: %w", err)
	}
	return base64.StdEncoding.EncodeToString(paymentJSON), nil
}

// DecodePayment converts a base64-encoded JSON string to a PaymentPayload.
func DecodePayment(encoded string) (hyper402.PaymentPayload, error) {
	var payment hyper402.PaymentPayload

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return payment, fmt.Errorf("%w: %v", hyper402.ErrMalformedHeader, err)
	}

	if err := json.Unmarshal(decoded, &payment); err != nil {
		return payment, fmt.Errorf("%w: %v", hyper402.ErrMalformedHeader, err)
	}

	return payment, nil
}

// EncodeSettlement converts a SettleResponse to a base64-encoded JSON
// string for the X-PAYMENT-RESPONSE header.
func EncodeSettlement(settlement hyper402.SettleResponse) (string, error) {
	settlementJSON, err := json.Marshal(settlement)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settlement: %w", err)
	}
	return base64.StdEncoding.EncodeToString(settlementJSON), nil
}

// DecodeSettlement converts a base64-encoded JSON string to a SettleResponse.
func DecodeSettlement(encoded string) (hyper402.SettleResponse, error) {
	var settlement hyper402.SettleResponse

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return settlement, fmt.Errorf("%w: %v", hyper402.ErrMalformedHeader, err)
	}

	if err := json.Unmarshal(decoded, &settlement); err != nil {
		return settlement, fmt.Errorf("%w: %v", hyper402.ErrMalformedHeader, err)
	}

	return settlement, nil
}
