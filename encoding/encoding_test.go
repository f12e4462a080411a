package encoding

import (
	"encoding/base64"
	"errors"
	"testing"

	hyper402 "github.com/waqaswahid1/hyper402"
)

func TestEncodeDecodePayment(t *testing.T) {
	original := hyper402.PaymentPayload{
		X402Version: 1,
		Scheme:      "exact",
		Network:     "polygon-amoy",
		Payload: hyper402.ExactEVMPayload{
			Signature: "0xabcdef",
			Authorization: hyper402.Authorization{
				From:        "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
				To:          "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
				Value:       "10000",
				ValidAfter:  "0",
				ValidBefore: "1700003600",
				Nonce:       "0x0000000000000000000000000000000000000000000000000000000000000001",
			},
		},
	}

	encoded, err := EncodePayment(original)
	if err != nil {
		t.Fatalf("EncodePayment() error = %v", err)
	}
	if _, err := base64.StdEncoding.DecodeString(encoded); err != nil {
		t.Errorf("EncodePayment() result is not valid base64: %v", err)
	}

	decoded, err := DecodePayment(encoded)
	if err != nil {
		t.Fatalf("DecodePayment() error = %v", err)
	}
	if decoded != original {
		t.Errorf("DecodePayment() = %+v; want %+v", decoded, original)
	}
}

func TestDecodePaymentErrors(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"invalid base64", "not-valid-base64!!!"},
		{"valid base64 but invalid JSON", base64.StdEncoding.EncodeToString([]byte("not json"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayment(tt.encoded)
			if !errors.Is(err, hyper402.ErrMalformedHeader) {
				t.Errorf("DecodePayment() error = %v, want ErrMalformedHeader", err)
			}
		})
	}
}

func TestEncodeDecodeSettlement(t *testing.T) {
	original := hyper402.SettleResponse{
		Success:     true,
		Transaction: "0x66cbea6cebbba8b82e4d82153f1480fdcddd0c0cbf10b9b90bbd58966de26b38",
		Network:     "polygon-amoy",
		Payer:       "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
	}

	encoded, err := EncodeSettlement(original)
	if err != nil {
		t.Fatalf("EncodeSettlement() error = %v", err)
	}

	decoded, err := DecodeSettlement(encoded)
	if err != nil {
		t.Fatalf("DecodeSettlement() error = %v", err)
	}
	if decoded != original {
		t.Errorf("DecodeSettlement() = %+v; want %+v", decoded, original)
	}
}
