package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vicodeox/stackAuc/core"
)

// BidResult describes an accepted bid.
type BidResult struct {
	AuctionID  uint64 `json:"auction_id"`
	Bidder     string `json:"bidder"`
	Amount     uint64 `json:"amount"`
	EndTick    uint64 `json:"end_tick"`
	Extended   bool   `json:"extended"`    // anti-snipe extension applied
	InstantWin bool   `json:"instant_win"` // Dutch: bid accepted the decayed price
}

// PlaceBid submits a bid. The auction must resolve to Active at the
// current tick; the amount must beat the current highest bid (ascending)
// or meet the decayed price (Dutch, in which case the bid wins at the
// decayed price, surplus untouched, and the auction ends). The deposit into escrow precedes any bid recording, so
// a failed transfer leaves no partial state. A displaced leader's
// balance becomes refund-eligible but is not auto-refunded.
func (e *Engine) PlaceBid(ctx context.Context, bidder string, auctionID uint64, amount uint64) (*BidResult, error) {
	release, err := e.guard(LockPlaceBid)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := e.checkGuards(bidder); err != nil {
		return nil, err
	}
	a, err := e.loadAuction(auctionID)
	if err != nil {
		return nil, err
	}
	if bidder == a.Seller {
		return nil, fmt.Errorf("%w: the seller may not bid", core.ErrInvalidParameters)
	}

	tick := e.clock.CurrentTick()
	resolved := core.ResolveStatus(a, tick)
	if resolved != core.StatusActive {
		return nil, fmt.Errorf("%w: auction %d is %s, not active", core.ErrInvalidState, auctionID, resolved)
	}
	if err := core.ValidateBid(a, amount, tick); err != nil {
		return nil, err
	}
	if a.Kind == core.AuctionDutch {
		// The sale clears at the decayed price. An overbid's surplus is
		// never taken into custody.
		amount = core.DutchPrice(a.StartPrice, a.EndPrice, a.StartTick, a.Duration, tick)
	}

	// Funds first: no bid is recorded unless custody holds its amount.
	if _, err := e.depositEscrow(ctx, a, bidder, amount); err != nil {
		return nil, err
	}

	previousLeader := a.HighestBidder
	a.HighestBid = amount
	a.HighestBidder = bidder

	result := &BidResult{AuctionID: auctionID, Bidder: bidder, Amount: amount}
	if a.Kind == core.AuctionDutch {
		// First valid bid accepts the decayed price and ends the
		// auction immediately.
		a.Status = core.StatusEnded
		a.EndTick = tick
		result.InstantWin = true
	} else {
		a.Status = core.StatusActive
		result.Extended = core.ExtendForSnipe(a, tick)
	}
	result.EndTick = a.EndTick

	if err := e.store.PutAuction(a); err != nil {
		return nil, fmt.Errorf("persist auction: %w", err)
	}

	e.recordEvent("bid-placed", bidder, tick, fmt.Sprintf("auction=%d amount=%d", auctionID, amount))
	e.publisher.Publish(Event{Type: EventBidPlaced, AuctionID: auctionID, Actor: bidder, Amount: amount, Tick: tick})
	if previousLeader != "" && previousLeader != bidder {
		// The outbid balance is now refund-eligible; consumers may
		// prompt the bidder to reclaim it.
		e.publisher.Publish(Event{Type: EventBidOutbid, AuctionID: auctionID, Actor: previousLeader, Tick: tick})
	}
	if result.InstantWin {
		e.publisher.Publish(Event{Type: EventAuctionEnded, AuctionID: auctionID, Actor: bidder, Tick: tick})
	}

	e.log.Info("bid accepted",
		zap.Uint64("auction_id", auctionID),
		zap.String("bidder", bidder),
		zap.Uint64("amount", amount),
		zap.Bool("extended", result.Extended),
		zap.Bool("instant_win", result.InstantWin))
	return result, nil
}
