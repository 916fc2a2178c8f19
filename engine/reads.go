package engine

import (
	"fmt"

	"github.com/vicodeox/stackAuc/core"
)

// GetAuction returns the stored auction row as-is. The Status field
// reflects the last persisted transition; callers that need the
// tick-resolved view should use GetAuctionStatus.
func (e *Engine) GetAuction(auctionID uint64) (*core.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadAuction(auctionID)
}

// GetAuctionStatus resolves the auction's status against the current
// tick without persisting the transition.
func (e *Engine) GetAuctionStatus(auctionID uint64) (core.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	auction, err := e.loadAuction(auctionID)
	if err != nil {
		return "", err
	}
	return core.ResolveStatus(auction, e.clock.CurrentTick()), nil
}

// GetCurrentPrice returns the price a bid must meet right now. For
// Dutch auctions this is the decayed price at the current tick; for
// ascending auctions it is the highest bid, or the start price when no
// bid has been placed.
func (e *Engine) GetCurrentPrice(auctionID uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	auction, err := e.loadAuction(auctionID)
	if err != nil {
		return 0, err
	}
	return core.CurrentPrice(auction, e.clock.CurrentTick()), nil
}

// GetEscrowBalance returns the custody record for a bidder on an
// auction. A bidder with no history gets a zero balance rather than an
// error.
func (e *Engine) GetEscrowBalance(auctionID uint64, bidder string) (*core.EscrowBalance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.loadAuction(auctionID); err != nil {
		return nil, err
	}
	bal, err := e.store.GetEscrow(auctionID, bidder)
	if err != nil {
		if isNotFound(err) {
			return &core.EscrowBalance{AuctionID: auctionID, Bidder: bidder}, nil
		}
		return nil, fmt.Errorf("load escrow balance: %w", err)
	}
	return bal, nil
}

// GetPaymentSplit returns the split configured for an auction, or
// core.ErrNotFound when the auction settles entirely to the seller.
func (e *Engine) GetPaymentSplit(auctionID uint64) (*core.PaymentSplit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.loadAuction(auctionID); err != nil {
		return nil, err
	}
	return e.store.GetSplit(auctionID)
}

// GetSecurityEvent returns a single audit log entry by sequence number.
func (e *Engine) GetSecurityEvent(eventID uint64) (*core.SecurityEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.GetSecurityEvent(eventID)
}

// GetSettlementReceipt returns the decoded receipt and its signed
// COSE_Sign1 envelope for a finalized auction.
func (e *Engine) GetSettlementReceipt(auctionID uint64) (*core.SettlementReceipt, []byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.GetReceipt(auctionID)
}

// IsFunctionLocked reports whether the named operation lock is
// currently held. Intended for diagnostics.
func (e *Engine) IsFunctionLocked(name string) bool {
	return e.locks.IsLocked(name)
}
