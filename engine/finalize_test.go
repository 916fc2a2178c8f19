package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/vicodeox/stackAuc/core"
)

func TestFinalize_DistributesFeeSplitAndRemainder(t *testing.T) {
	env := newTestEngine(t, Config{FeeRateBps: 250})
	ctx := context.Background()

	params := englishParams()
	params.Split = &core.PaymentSplit{
		Charity:        "fund",
		CharityPercent: 20,
	}
	id, err := env.CreateAuction(ctx, "alice", params)
	assert.NoError(t, err)

	env.fund("bob", 10_000)
	_, err = env.PlaceBid(ctx, "bob", id, 10_000)
	assert.NoError(t, err)

	env.clock.Set(2000)
	receipt, err := env.Finalize(ctx, "anyone", id)
	assert.NoError(t, err)
	assert.NotNil(t, receipt)

	// 10000 at 250 bps: fee 250, net 9750, charity 20% = 1950,
	// remainder 7800 to the seller. Custody drains to zero.
	check.Equal(t, uint64(250), env.bank.Balance("platform", "USD"))
	check.Equal(t, uint64(1950), env.bank.Balance("fund", "USD"))
	check.Equal(t, uint64(7800), env.bank.Balance("alice", "USD"))
	check.Equal(t, uint64(0), env.bank.Balance("escrow", "USD"))

	check.Equal(t, "bob", env.owners.Owner("item-1"))

	check.Equal(t, uint64(10_000), receipt.ClearingPrice)
	check.Equal(t, uint64(250), receipt.PlatformFee)
	check.Equal(t, uint64(250), receipt.FeeRateBps)
	check.Equal(t, "bob", receipt.Winner)
	assert.Equal(t, 3, len(receipt.Transfers))
	check.Equal(t, core.TransferPlatformFee, receipt.Transfers[0].Purpose)
	check.Equal(t, core.TransferCharity, receipt.Transfers[1].Purpose)
	check.Equal(t, core.TransferSellerProceeds, receipt.Transfers[2].Purpose)

	// The receipt hash binds the nonce to the outcome.
	check.NotEqual(t, "", receipt.Nonce)
	check.Equal(t, core.ComputeReceiptHash(id, "bob", 10_000, receipt.Nonce), receipt.ReceiptHash)

	status, err := env.GetAuctionStatus(id)
	assert.NoError(t, err)
	check.Equal(t, core.StatusFinalized, status)
}

func TestFinalize_AtMostOnce(t *testing.T) {
	env := newTestEngine(t, Config{FeeRateBps: 250})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)
	env.fund("bob", 1000)
	_, err = env.PlaceBid(ctx, "bob", id, 1000)
	assert.NoError(t, err)

	env.clock.Set(2000)
	_, err = env.Finalize(ctx, "alice", id)
	assert.NoError(t, err)

	_, err = env.Finalize(ctx, "alice", id)
	check.True(t, errors.Is(err, core.ErrAlreadyFinalized))

	// Funds moved exactly once.
	check.Equal(t, uint64(975), env.bank.Balance("alice", "USD"))
}

func TestFinalize_RequiresEndedAuction(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)

	_, err = env.Finalize(ctx, "alice", id)
	check.True(t, errors.Is(err, core.ErrInvalidState))

	// The end tick itself counts as ended; no explicit EndAuction call
	// is needed.
	env.clock.Set(1100)
	_, err = env.Finalize(ctx, "alice", id)
	check.NoError(t, err)
}

func TestFinalize_NoWinnerMovesNothing(t *testing.T) {
	env := newTestEngine(t, Config{FeeRateBps: 250})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)

	env.clock.Set(2000)
	receipt, err := env.Finalize(ctx, "alice", id)
	assert.NoError(t, err)

	check.Equal(t, "", receipt.Winner)
	check.Equal(t, uint64(0), receipt.ClearingPrice)
	check.Equal(t, 0, len(receipt.Transfers))
	check.Equal(t, uint64(0), env.bank.Balance("platform", "USD"))
	check.Equal(t, "", env.owners.Owner("item-1"))

	status, err := env.GetAuctionStatus(id)
	assert.NoError(t, err)
	check.Equal(t, core.StatusFinalized, status)
}

func TestFinalize_ZeroFeeZeroSplitAllToSeller(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)
	env.fund("bob", 500)
	_, err = env.PlaceBid(ctx, "bob", id, 500)
	assert.NoError(t, err)

	env.clock.Set(2000)
	receipt, err := env.Finalize(ctx, "bob", id)
	assert.NoError(t, err)

	check.Equal(t, uint64(0), receipt.PlatformFee)
	check.Equal(t, uint64(500), env.bank.Balance("alice", "USD"))
	assert.Equal(t, 1, len(receipt.Transfers))
	check.Equal(t, core.TransferSellerProceeds, receipt.Transfers[0].Purpose)
}

// failToTransfers rejects transfers to the named recipients and passes
// everything else through to the wrapped bank.
type failToTransfers struct {
	bank   *MemoryBank
	failTo map[string]bool
}

func (f *failToTransfers) Transfer(ctx context.Context, token string, amount uint64, from, to string) error {
	if f.failTo[to] {
		return errors.New("recipient rejected")
	}
	return f.bank.Transfer(ctx, token, amount, from, to)
}

func TestFinalize_TransferFailureLeavesUnfinalized(t *testing.T) {
	transfers := &failToTransfers{failTo: map[string]bool{"platform": true}}
	env := newTestEngineWith(t, Config{FeeRateBps: 250}, func(d *Deps) {
		transfers.bank = d.Transfers.(*MemoryBank)
		d.Transfers = transfers
	})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)
	env.fund("bob", 1000)
	_, err = env.PlaceBid(ctx, "bob", id, 1000)
	assert.NoError(t, err)

	env.clock.Set(2000)
	_, err = env.Finalize(ctx, "alice", id)
	check.True(t, errors.Is(err, core.ErrTransferFailed))

	// The fee is the first instruction, so nothing was released and
	// the finalized flag stayed unset: the call is retryable.
	a, err := env.GetAuction(id)
	assert.NoError(t, err)
	check.False(t, a.Finalized)
	check.Equal(t, uint64(1000), env.bank.Balance("escrow", "USD"))

	transfers.failTo = nil
	receipt, err := env.Finalize(ctx, "alice", id)
	assert.NoError(t, err)
	check.Equal(t, uint64(25), receipt.PlatformFee)
	check.Equal(t, uint64(975), env.bank.Balance("alice", "USD"))
}

func TestFinalize_SignedReceiptStored(t *testing.T) {
	env := newTestEngine(t, Config{FeeRateBps: 250})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)
	env.fund("bob", 1000)
	_, err = env.PlaceBid(ctx, "bob", id, 1000)
	assert.NoError(t, err)

	env.clock.Set(2000)
	_, err = env.Finalize(ctx, "alice", id)
	assert.NoError(t, err)

	stored, signed, err := env.GetSettlementReceipt(id)
	assert.NoError(t, err)
	check.Equal(t, id, stored.AuctionID)
	check.Equal(t, "bob", stored.Winner)
	check.True(t, len(signed) > 0)
}

func TestSetPaymentSplit_FrozenAfterFirstBid(t *testing.T) {
	env := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := env.CreateAuction(ctx, "alice", englishParams())
	assert.NoError(t, err)

	split := &core.PaymentSplit{Charity: "fund", CharityPercent: 10}
	err = env.SetPaymentSplit(ctx, "bob", id, split)
	check.True(t, errors.Is(err, core.ErrUnauthorized))

	assert.NoError(t, env.SetPaymentSplit(ctx, "alice", id, split))

	got, err := env.GetPaymentSplit(id)
	assert.NoError(t, err)
	check.Equal(t, uint64(10), got.CharityPercent)

	env.fund("bob", 1000)
	_, err = env.PlaceBid(ctx, "bob", id, 100)
	assert.NoError(t, err)

	err = env.SetPaymentSplit(ctx, "alice", id, split)
	check.True(t, errors.Is(err, core.ErrInvalidState))
}
