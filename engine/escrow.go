package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vicodeox/stackAuc/core"
)

// depositEscrow moves funds from the bidder into custody and records the
// balance. The external transfer happens first: when it fails, nothing
// is written and the caller's operation must also fail, so a bid whose
// deposit failed is never recorded.
//
// A bidder raising their own bid tops the balance up by the difference;
// a balance that was already refunded is reopened with the fresh amount
// (conceptually a new custody under the same key).
func (e *Engine) depositEscrow(ctx context.Context, a *core.Auction, bidder string, amount uint64) (*core.EscrowBalance, error) {
	bal, err := e.store.GetEscrow(a.ID, bidder)
	switch {
	case errors.Is(err, core.ErrNotFound):
		bal = &core.EscrowBalance{AuctionID: a.ID, Bidder: bidder, Token: a.Token}
	case err != nil:
		return nil, fmt.Errorf("escrow lookup: %w", err)
	case bal.Refunded:
		bal = &core.EscrowBalance{AuctionID: a.ID, Bidder: bidder, Token: a.Token}
	}

	var deposit uint64
	if amount > bal.Amount {
		deposit = amount - bal.Amount
	}
	if deposit > 0 {
		if err := e.transfers.Transfer(ctx, a.Token, deposit, bidder, e.custodyAccount); err != nil {
			return nil, fmt.Errorf("%w: escrow deposit of %d for auction %d: %v", core.ErrTransferFailed, deposit, a.ID, err)
		}
	}
	bal.Amount += deposit
	if err := e.store.PutEscrow(bal); err != nil {
		return nil, fmt.Errorf("persist escrow balance: %w", err)
	}
	return bal, nil
}

// refundBalance returns the full custodied amount to the bidder and sets
// the refunded flag. The flag is only set after a successful transfer,
// so a transient transfer failure leaves the balance refundable (the
// no-lost-funds invariant). force skips the leader check; it is used by
// cancellation, which refunds the leader before the status flips.
func (e *Engine) refundBalance(ctx context.Context, a *core.Auction, bidder string, force bool) error {
	bal, err := e.store.GetEscrow(a.ID, bidder)
	if err != nil {
		return fmt.Errorf("escrow for auction %d bidder %s: %w", a.ID, bidder, err)
	}
	if bal.Refunded {
		return fmt.Errorf("%w: auction %d bidder %s", core.ErrAlreadyRefunded, a.ID, bidder)
	}
	if !force && bidder == a.HighestBidder && !a.Status.Terminal() {
		return fmt.Errorf("%w: auction %d bidder %s", core.ErrStillLeading, a.ID, bidder)
	}

	if bal.Amount > 0 {
		if err := e.transfers.Transfer(ctx, bal.Token, bal.Amount, e.custodyAccount, bidder); err != nil {
			return fmt.Errorf("%w: escrow refund of %d for auction %d: %v", core.ErrTransferFailed, bal.Amount, a.ID, err)
		}
	}
	refunded := bal.Amount
	bal.Amount = 0
	bal.Refunded = true
	if err := e.store.PutEscrow(bal); err != nil {
		return fmt.Errorf("persist escrow balance: %w", err)
	}
	e.publisher.Publish(Event{
		Type:      EventEscrowRefunded,
		AuctionID: a.ID,
		Actor:     bidder,
		Amount:    refunded,
		Tick:      e.clock.CurrentTick(),
	})
	e.log.Info("escrow refunded",
		zap.Uint64("auction_id", a.ID),
		zap.String("bidder", bidder),
		zap.Uint64("amount", refunded))
	return nil
}

// releaseEscrow moves custodied funds to a settlement recipient. This is
// a distinct path from refund: released funds are not returned to the
// original depositor, so the refunded flag is untouched.
func (e *Engine) releaseEscrow(ctx context.Context, bal *core.EscrowBalance, recipient string, amount uint64) error {
	if amount > bal.Amount {
		return fmt.Errorf("%w: release of %d exceeds custodied %d", core.ErrInvalidParameters, amount, bal.Amount)
	}
	if err := e.transfers.Transfer(ctx, bal.Token, amount, e.custodyAccount, recipient); err != nil {
		return fmt.Errorf("%w: release of %d to %s: %v", core.ErrTransferFailed, amount, recipient, err)
	}
	bal.Amount -= amount
	if err := e.store.PutEscrow(bal); err != nil {
		return fmt.Errorf("persist escrow balance: %w", err)
	}
	return nil
}

// RefundEscrow returns an outbid (or cancelled-auction) balance to its
// bidder. Callable by the bidder themselves or by a moderator on their
// behalf; the current highest bidder of a live auction is never
// refundable this way.
func (e *Engine) RefundEscrow(ctx context.Context, caller string, auctionID uint64, bidder string) error {
	release, err := e.guard(LockRefundEscrow)
	if err != nil {
		return err
	}
	defer release()

	if err := e.checkGuards(caller); err != nil {
		return err
	}
	if caller != bidder && !e.access.IsModerator(caller) {
		return fmt.Errorf("%w: %s may not refund escrow of %s", core.ErrUnauthorized, caller, bidder)
	}
	a, err := e.loadAuction(auctionID)
	if err != nil {
		return err
	}
	// Resolve lazily so a lapsed-but-untouched auction still blocks the
	// leader's refund (it must go through finalize).
	resolved := core.ResolveStatus(a, e.clock.CurrentTick())
	if bidder == a.HighestBidder && !resolved.Terminal() {
		return fmt.Errorf("%w: auction %d bidder %s", core.ErrStillLeading, auctionID, bidder)
	}
	if err := e.refundBalance(ctx, a, bidder, resolved.Terminal()); err != nil {
		return err
	}
	e.recordEvent("escrow-refunded", caller, e.clock.CurrentTick(), fmt.Sprintf("auction=%d bidder=%s", auctionID, bidder))
	return nil
}
