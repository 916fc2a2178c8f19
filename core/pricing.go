package core

import (
	"fmt"
	"math"
	"math/big"
)

// DutchPrice computes the linearly decayed price of a descending auction
// at tick t.
//
// Formula: for start tick s, duration d, start price P0 and end price P1:
//
//	t <  s      →  P0
//	t >= s + d  →  P1
//	otherwise   →  P0 − ⌊(P0−P1)·(t−s)/d⌋
//
// The result is monotonically non-increasing in t and exact at both
// endpoints. The intermediate product is computed with math/big so large
// prices multiplied by long elapsed windows cannot overflow.
func DutchPrice(startPrice, endPrice, startTick, duration, tick uint64) uint64 {
	if tick < startTick {
		return startPrice
	}
	if duration == 0 || tick >= startTick+duration {
		return endPrice
	}
	drop := new(big.Int).Mul(
		new(big.Int).SetUint64(startPrice-endPrice),
		new(big.Int).SetUint64(tick-startTick),
	)
	drop.Quo(drop, new(big.Int).SetUint64(duration))
	return startPrice - drop.Uint64()
}

// CurrentPrice returns the price a new bid is measured against at the
// given tick: the decayed price for Dutch auctions, otherwise the highest
// accepted bid (or the start price while no bid has been accepted).
func CurrentPrice(a *Auction, tick uint64) uint64 {
	if a.Kind == AuctionDutch {
		return DutchPrice(a.StartPrice, a.EndPrice, a.StartTick, a.Duration, tick)
	}
	if a.HighestBidder == "" {
		return a.StartPrice
	}
	return a.HighestBid
}

// ValidateBid checks a bid amount against the auction's pricing rules at
// the given tick. It assumes the caller already resolved the status to
// Active; only price constraints are enforced here.
func ValidateBid(a *Auction, amount, tick uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: bid amount must be positive", ErrInvalidParameters)
	}
	if a.HasReserve() && amount < a.ReservePrice {
		return fmt.Errorf("%w: bid %d below reserve %d", ErrBelowReserve, amount, a.ReservePrice)
	}
	switch a.Kind {
	case AuctionDutch:
		price := DutchPrice(a.StartPrice, a.EndPrice, a.StartTick, a.Duration, tick)
		if amount < price {
			return fmt.Errorf("%w: bid %d below current price %d", ErrBidTooLow, amount, price)
		}
	default:
		// Ascending: the first bid must meet the start price, every
		// later bid must strictly exceed the current leader.
		if a.HighestBidder == "" {
			if amount < a.StartPrice {
				return fmt.Errorf("%w: bid %d below start price %d", ErrBidTooLow, amount, a.StartPrice)
			}
		} else if amount <= a.HighestBid {
			return fmt.Errorf("%w: bid %d does not exceed highest bid %d", ErrBidTooLow, amount, a.HighestBid)
		}
	}
	return nil
}

// ExtendForSnipe applies the anti-snipe rule at the given tick: when the
// remaining window is shorter than AntiSnipeWindow, the end tick is
// pushed out by ExtensionTicks. Extensions compound across near-end bids;
// no cap is imposed. Returns true when the end tick changed.
func ExtendForSnipe(a *Auction, tick uint64) bool {
	if a.AntiSnipeWindow == 0 || a.ExtensionTicks == 0 {
		return false
	}
	if tick >= a.EndTick {
		return false
	}
	if a.EndTick-tick < a.AntiSnipeWindow {
		// Extensions compound, so the end tick can creep toward the top
		// of the range; never let it wrap back behind the current tick.
		if a.EndTick > math.MaxUint64-a.ExtensionTicks {
			return false
		}
		a.EndTick += a.ExtensionTicks
		return true
	}
	return false
}
