package engine

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vicodeox/stackAuc/core"
)

// Finalize settles an ended auction, exactly once.
//
// Without a winner it only marks the auction Finalized: no funds move
// and item ownership is unchanged. With a winner the full settlement
// plan is computed and validated before any transfer, then executed in
// fixed order: platform fee, split recipients, seller remainder, item
// ownership. Any failure is fatal to the call and leaves the finalized
// flag unset, so the settlement stays retryable, but transfers completed
// before the failure are not reversed (see the package documentation for
// this accepted limitation).
func (e *Engine) Finalize(ctx context.Context, caller string, auctionID uint64) (*core.SettlementReceipt, error) {
	release, err := e.guard(LockFinalize)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := e.checkGuards(caller); err != nil {
		return nil, err
	}
	a, err := e.loadAuction(auctionID)
	if err != nil {
		return nil, err
	}
	tick := e.clock.CurrentTick()
	resolved := core.ResolveStatus(a, tick)
	if a.Finalized {
		return nil, fmt.Errorf("%w: auction %d", core.ErrAlreadyFinalized, auctionID)
	}
	if resolved != core.StatusEnded {
		return nil, fmt.Errorf("%w: auction %d is %s, not ended", core.ErrInvalidState, auctionID, resolved)
	}

	feeRateBps := e.currentFeeRate()
	receipt := &core.SettlementReceipt{
		ReceiptID:  uuid.NewString(),
		AuctionID:  a.ID,
		ItemID:     a.ItemID,
		Seller:     a.Seller,
		Winner:     a.HighestBidder,
		Token:      a.Token,
		FeeRateBps: feeRateBps,
		Tick:       tick,
	}

	if a.HighestBidder == "" {
		// No winner: mark finalized, nothing else.
		a.Status = core.StatusFinalized
		a.Finalized = true
		if err := e.store.PutAuction(a); err != nil {
			return nil, fmt.Errorf("persist auction: %w", err)
		}
	} else {
		split, err := e.store.GetSplit(auctionID)
		if err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("payment split for auction %d: %w", auctionID, err)
		}
		plan, err := core.ComputeSettlementPlan(a, split, feeRateBps, e.feeRecipient)
		if err != nil {
			return nil, err
		}
		bal, err := e.store.GetEscrow(a.ID, a.HighestBidder)
		if err != nil {
			return nil, fmt.Errorf("winner escrow for auction %d: %w", auctionID, err)
		}
		if bal.Refunded || bal.Amount < plan.ClearingPrice {
			return nil, fmt.Errorf("%w: winner escrow holds %d of clearing price %d", core.ErrInvalidState, bal.Amount, plan.ClearingPrice)
		}

		// Fixed execution order; the first failure aborts the call with
		// the finalized flag unset. Earlier releases stay executed.
		for _, inst := range plan.Instructions {
			if err := e.releaseEscrow(ctx, bal, inst.Recipient, inst.Amount); err != nil {
				e.log.Error("settlement release failed",
					zap.Uint64("auction_id", auctionID),
					zap.String("recipient", inst.Recipient),
					zap.Uint64("amount", inst.Amount),
					zap.Error(err))
				return nil, err
			}
		}
		if err := e.owners.SetOwner(ctx, a.ItemID, a.HighestBidder); err != nil {
			return nil, fmt.Errorf("%w: item ownership transfer for %s: %v", core.ErrTransferFailed, a.ItemID, err)
		}

		a.Status = core.StatusFinalized
		a.Finalized = true
		if err := e.store.PutAuction(a); err != nil {
			return nil, fmt.Errorf("persist auction: %w", err)
		}

		receipt.ClearingPrice = plan.ClearingPrice
		receipt.PlatformFee = plan.PlatformFee
		for _, inst := range plan.Instructions {
			receipt.Transfers = append(receipt.Transfers, core.TransferRecord(inst))
		}
	}

	signed, err := e.sealReceipt(receipt)
	if err != nil {
		// Settlement already happened; a receipt failure must not undo
		// it. Surface it through the log and return the unsigned
		// receipt.
		e.log.Error("settlement receipt not sealed", zap.Uint64("auction_id", auctionID), zap.Error(err))
	} else if err := e.store.PutReceipt(receipt, signed); err != nil {
		e.log.Error("settlement receipt not persisted", zap.Uint64("auction_id", auctionID), zap.Error(err))
	}

	e.recordEvent("auction-finalized", caller, tick,
		fmt.Sprintf("auction=%d winner=%s price=%d fee=%d", auctionID, receipt.Winner, receipt.ClearingPrice, receipt.PlatformFee))
	e.publisher.Publish(Event{Type: EventAuctionFinalized, AuctionID: auctionID, Actor: caller, Amount: receipt.ClearingPrice, Tick: tick})
	e.log.Info("auction finalized",
		zap.Uint64("auction_id", auctionID),
		zap.String("winner", receipt.Winner),
		zap.Uint64("clearing_price", receipt.ClearingPrice),
		zap.Uint64("platform_fee", receipt.PlatformFee))
	return receipt, nil
}

// sealReceipt stamps the receipt with a fresh nonce and its hash, then
// CBOR-encodes and COSE-signs it.
func (e *Engine) sealReceipt(r *core.SettlementReceipt) ([]byte, error) {
	nonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("generate receipt nonce: %w", err)
	}
	r.Nonce = nonce
	r.ReceiptHash = core.ComputeReceiptHash(r.AuctionID, r.Winner, r.ClearingPrice, nonce)

	payload, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode receipt: %w", err)
	}
	return e.signer.Sign(payload)
}
