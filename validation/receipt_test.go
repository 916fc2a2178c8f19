package validation

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/vicodeox/stackAuc/core"
	"github.com/vicodeox/stackAuc/engine"
)

func sampleReceipt() *core.SettlementReceipt {
	r := &core.SettlementReceipt{
		ReceiptID:     "receipt-1",
		AuctionID:     7,
		ItemID:        "item-7",
		Seller:        "alice",
		Winner:        "bob",
		Token:         "USD",
		ClearingPrice: 10_000,
		PlatformFee:   250,
		FeeRateBps:    250,
		Transfers: []core.TransferRecord{
			{Recipient: "platform", Amount: 250, Purpose: core.TransferPlatformFee},
			{Recipient: "fund", Amount: 1950, Purpose: core.TransferCharity},
			{Recipient: "alice", Amount: 7800, Purpose: core.TransferSellerProceeds},
		},
		Tick:  2000,
		Nonce: "d00d",
	}
	r.ReceiptHash = core.ComputeReceiptHash(r.AuctionID, r.Winner, r.ClearingPrice, r.Nonce)
	return r
}

func signReceipt(t *testing.T, signer *engine.ReceiptSigner, r *core.SettlementReceipt) []byte {
	t.Helper()
	payload, err := cbor.Marshal(r)
	assert.NoError(t, err)
	signed, err := signer.Sign(payload)
	assert.NoError(t, err)
	return signed
}

func TestVerifyReceipt_RoundTrip(t *testing.T) {
	signer, err := engine.NewReceiptSigner()
	assert.NoError(t, err)

	signed := signReceipt(t, signer, sampleReceipt())
	result, err := VerifyReceipt(signed, signer.PublicKey)
	assert.NoError(t, err)

	check.True(t, result.SignatureValid)
	check.True(t, result.HashValid)
	check.True(t, result.TotalsValid)
	check.True(t, result.IsValid())
	check.Equal(t, "bob", result.Receipt.Winner)
	check.Equal(t, uint64(10_000), result.Receipt.ClearingPrice)
}

func TestVerifyReceipt_WrongKeyRejected(t *testing.T) {
	signer, err := engine.NewReceiptSigner()
	assert.NoError(t, err)
	otherSigner, err := engine.NewReceiptSigner()
	assert.NoError(t, err)

	signed := signReceipt(t, signer, sampleReceipt())
	result, err := VerifyReceipt(signed, otherSigner.PublicKey)
	assert.NoError(t, err)

	check.False(t, result.SignatureValid)
	check.False(t, result.IsValid())
}

func TestVerifyReceipt_HashMismatchDetected(t *testing.T) {
	signer, err := engine.NewReceiptSigner()
	assert.NoError(t, err)

	r := sampleReceipt()
	r.ReceiptHash = core.ComputeReceiptHash(r.AuctionID, "mallory", r.ClearingPrice, r.Nonce)
	result, err := VerifyReceipt(signReceipt(t, signer, r), signer.PublicKey)
	assert.NoError(t, err)

	check.True(t, result.SignatureValid) // signed, but over a lying hash
	check.False(t, result.HashValid)
	check.False(t, result.IsValid())
}

func TestVerifyReceipt_TotalsChecked(t *testing.T) {
	signer, err := engine.NewReceiptSigner()
	assert.NoError(t, err)

	r := sampleReceipt()
	r.Transfers[2].Amount = 7000 // skims 800 from the seller
	result, err := VerifyReceipt(signReceipt(t, signer, r), signer.PublicKey)
	assert.NoError(t, err)
	check.False(t, result.TotalsValid)
	check.False(t, result.IsValid())

	r = sampleReceipt()
	r.PlatformFee = 1
	r.Transfers[0].Amount = 1
	result, err = VerifyReceipt(signReceipt(t, signer, r), signer.PublicKey)
	assert.NoError(t, err)
	check.False(t, result.TotalsValid)
}

func TestVerifyReceipt_NoWinner(t *testing.T) {
	signer, err := engine.NewReceiptSigner()
	assert.NoError(t, err)

	r := &core.SettlementReceipt{
		ReceiptID: "receipt-2",
		AuctionID: 8,
		ItemID:    "item-8",
		Seller:    "alice",
		Token:     "USD",
		Tick:      2000,
		Nonce:     "beef",
	}
	r.ReceiptHash = core.ComputeReceiptHash(r.AuctionID, "", 0, r.Nonce)

	result, err := VerifyReceipt(signReceipt(t, signer, r), signer.PublicKey)
	assert.NoError(t, err)
	check.True(t, result.IsValid())
}

func TestParsePublicKeyPEM_RoundTrip(t *testing.T) {
	signer, err := engine.NewReceiptSigner()
	assert.NoError(t, err)

	pemStr, err := signer.PublicKeyPEM()
	assert.NoError(t, err)

	key, err := ParsePublicKeyPEM([]byte(pemStr))
	assert.NoError(t, err)
	check.True(t, key.Equal(signer.PublicKey))

	_, err = ParsePublicKeyPEM([]byte("not a key"))
	check.Error(t, err)
}
