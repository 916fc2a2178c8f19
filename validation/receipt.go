// Package validation verifies signed settlement receipts offline. It
// depends only on the engine's public key, never on the engine itself,
// so downstream consumers (notification services, loyalty and referral
// processors) can validate a receipt without trusting the transport it
// arrived on.
package validation

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/vicodeox/stackAuc/core"
)

// ReceiptValidationResult collects the outcome of every receipt check.
// A receipt is trustworthy only when all of them passed.
type ReceiptValidationResult struct {
	SignatureValid    bool
	HashValid         bool
	TotalsValid       bool
	Receipt           *core.SettlementReceipt
	ValidationDetails []string
}

// IsValid returns true if all receipt validation checks passed.
func (r *ReceiptValidationResult) IsValid() bool {
	return r.SignatureValid && r.HashValid && r.TotalsValid
}

func (r *ReceiptValidationResult) detail(format string, args ...any) {
	r.ValidationDetails = append(r.ValidationDetails, fmt.Sprintf(format, args...))
}

// VerifyReceipt checks a signed COSE_Sign1 receipt envelope against the
// engine's public key: the ES256 signature, the receipt hash binding
// the nonce to the outcome, and the arithmetic consistency of the
// recorded transfers. The decoded receipt is returned in the result
// even when a check fails, so callers can report what was claimed.
func VerifyReceipt(signed []byte, publicKey *ecdsa.PublicKey) (*ReceiptValidationResult, error) {
	result := &ReceiptValidationResult{}

	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(signed); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1 envelope: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, publicKey)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		result.detail("signature verification failed: %v", err)
	} else {
		result.SignatureValid = true
		result.detail("ES256 signature verified")
	}

	var receipt core.SettlementReceipt
	if err := cbor.Unmarshal(msg.Payload, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt payload: %w", err)
	}
	result.Receipt = &receipt

	expectedHash := core.ComputeReceiptHash(receipt.AuctionID, receipt.Winner, receipt.ClearingPrice, receipt.Nonce)
	if receipt.ReceiptHash == expectedHash {
		result.HashValid = true
		result.detail("receipt hash matches outcome")
	} else {
		result.detail("receipt hash mismatch: claimed %s, computed %s", receipt.ReceiptHash, expectedHash)
	}

	result.TotalsValid = checkTotals(result, &receipt)
	return result, nil
}

// checkTotals re-derives the settlement arithmetic: the platform fee
// must match the stated rate, and the transfers must account for the
// clearing price exactly, fee included.
func checkTotals(result *ReceiptValidationResult, r *core.SettlementReceipt) bool {
	if r.Winner == "" {
		if len(r.Transfers) != 0 || r.ClearingPrice != 0 || r.PlatformFee != 0 {
			result.detail("no-winner receipt records transfers or a price")
			return false
		}
		result.detail("no-winner receipt, nothing to account for")
		return true
	}

	if fee := core.PlatformFee(r.ClearingPrice, r.FeeRateBps); fee != r.PlatformFee {
		result.detail("platform fee %d does not match %d bps of %d (expected %d)",
			r.PlatformFee, r.FeeRateBps, r.ClearingPrice, fee)
		return false
	}

	var total uint64
	for _, tr := range r.Transfers {
		if tr.Purpose == core.TransferPlatformFee && tr.Amount != r.PlatformFee {
			result.detail("fee transfer of %d disagrees with stated fee %d", tr.Amount, r.PlatformFee)
			return false
		}
		total += tr.Amount
	}
	if total != r.ClearingPrice {
		result.detail("transfers total %d, clearing price is %d", total, r.ClearingPrice)
		return false
	}
	result.detail("transfers account for the clearing price exactly")
	return true
}

// ParsePublicKeyPEM decodes a PEM-encoded ECDSA public key as produced
// by the engine's signer.
func ParsePublicKeyPEM(pemData []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	ecdsaKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not ECDSA")
	}
	return ecdsaKey, nil
}
