package engine

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/vicodeox/stackAuc/core"
)

// CreateAuctionParams are the caller-supplied settings for a new
// auction. StartTick zero means "start now".
type CreateAuctionParams struct {
	ItemID          string
	Kind            core.AuctionKind
	Token           string
	StartPrice      uint64
	ReservePrice    uint64
	EndPrice        uint64 // Dutch only
	StartTick       uint64
	Duration        uint64
	AntiSnipeWindow uint64
	ExtensionTicks  uint64
	Split           *core.PaymentSplit
}

func (p *CreateAuctionParams) validate(tick uint64) error {
	if p.ItemID == "" {
		return fmt.Errorf("%w: item id is required", core.ErrInvalidParameters)
	}
	if p.Token == "" {
		return fmt.Errorf("%w: token is required", core.ErrInvalidParameters)
	}
	if p.StartPrice == 0 {
		return fmt.Errorf("%w: start price must be positive", core.ErrInvalidParameters)
	}
	if p.Duration == 0 {
		return fmt.Errorf("%w: duration must be positive", core.ErrInvalidParameters)
	}
	if p.StartTick > 0 && p.StartTick < tick {
		return fmt.Errorf("%w: start tick %d is in the past", core.ErrInvalidParameters, p.StartTick)
	}
	start := p.StartTick
	if start == 0 {
		start = tick
	}
	if start > math.MaxUint64-p.Duration {
		return fmt.Errorf("%w: start tick %d plus duration %d overflows the tick range", core.ErrInvalidParameters, start, p.Duration)
	}
	switch p.Kind {
	case core.AuctionEnglish:
		if p.EndPrice != 0 {
			return fmt.Errorf("%w: end price is a Dutch-auction setting", core.ErrInvalidParameters)
		}
	case core.AuctionDutch:
		if p.EndPrice >= p.StartPrice {
			return fmt.Errorf("%w: end price %d must be below start price %d", core.ErrInvalidParameters, p.EndPrice, p.StartPrice)
		}
	default:
		return fmt.Errorf("%w: unknown auction kind %q", core.ErrInvalidParameters, p.Kind)
	}
	if (p.AntiSnipeWindow == 0) != (p.ExtensionTicks == 0) {
		return fmt.Errorf("%w: anti-snipe window and extension must be set together", core.ErrInvalidParameters)
	}
	return core.ValidateSplit(p.Split)
}

// CreateAuction registers a new auction owned by the caller and returns
// its sequential id.
func (e *Engine) CreateAuction(ctx context.Context, caller string, params CreateAuctionParams) (uint64, error) {
	release, err := e.guard(LockCreateAuction)
	if err != nil {
		return 0, err
	}
	defer release()

	if err := e.checkGuards(caller); err != nil {
		return 0, err
	}
	tick := e.clock.CurrentTick()
	if err := params.validate(tick); err != nil {
		return 0, err
	}

	startTick := params.StartTick
	if startTick == 0 {
		startTick = tick
	}

	id, err := e.store.NextAuctionID()
	if err != nil {
		return 0, fmt.Errorf("allocate auction id: %w", err)
	}
	a := &core.Auction{
		ID:              id,
		Seller:          caller,
		ItemID:          params.ItemID,
		Kind:            params.Kind,
		Token:           params.Token,
		StartPrice:      params.StartPrice,
		ReservePrice:    params.ReservePrice,
		EndPrice:        params.EndPrice,
		StartTick:       startTick,
		Duration:        params.Duration,
		EndTick:         startTick + params.Duration,
		AntiSnipeWindow: params.AntiSnipeWindow,
		ExtensionTicks:  params.ExtensionTicks,
		Status:          core.StatusPending,
	}
	if err := e.store.PutAuction(a); err != nil {
		return 0, fmt.Errorf("persist auction: %w", err)
	}
	if params.Split != nil {
		split := *params.Split
		split.AuctionID = id
		if err := e.store.PutSplit(&split); err != nil {
			return 0, fmt.Errorf("persist payment split: %w", err)
		}
	}

	e.recordEvent("auction-created", caller, tick, fmt.Sprintf("auction=%d item=%s kind=%s", id, a.ItemID, a.Kind))
	e.publisher.Publish(Event{Type: EventAuctionCreated, AuctionID: id, Actor: caller, Tick: tick})
	e.log.Info("auction created",
		zap.Uint64("auction_id", id),
		zap.String("seller", caller),
		zap.String("kind", string(a.Kind)))
	return id, nil
}

// SetPaymentSplit configures (or replaces) the payment split of an
// auction. Creator only, and only while no bid has been accepted.
func (e *Engine) SetPaymentSplit(ctx context.Context, caller string, auctionID uint64, split *core.PaymentSplit) error {
	release, err := e.guard(LockSetSplit)
	if err != nil {
		return err
	}
	defer release()

	if err := e.checkGuards(caller); err != nil {
		return err
	}
	a, err := e.loadAuction(auctionID)
	if err != nil {
		return err
	}
	if a.Seller != caller {
		return fmt.Errorf("%w: only the creator may configure the split", core.ErrUnauthorized)
	}
	if a.HighestBidder != "" || a.Status.Terminal() || a.Status == core.StatusEnded {
		return fmt.Errorf("%w: split is frozen once bidding or settlement has begun", core.ErrInvalidState)
	}
	if split == nil {
		return fmt.Errorf("%w: split is required", core.ErrInvalidParameters)
	}
	if err := core.ValidateSplit(split); err != nil {
		return err
	}
	cp := *split
	cp.AuctionID = auctionID
	if err := e.store.PutSplit(&cp); err != nil {
		return fmt.Errorf("persist payment split: %w", err)
	}
	e.recordEvent("payment-split-set", caller, e.clock.CurrentTick(), fmt.Sprintf("auction=%d total=%d%%", auctionID, cp.TotalPercent()))
	return nil
}

// PauseAuction suspends an active auction. Creator only.
func (e *Engine) PauseAuction(ctx context.Context, caller string, auctionID uint64) error {
	return e.lifecycleTransition(caller, auctionID, LockPauseAuction, EventAuctionPaused, "auction-paused",
		func(a *core.Auction, resolved core.Status) error {
			if resolved != core.StatusActive {
				return fmt.Errorf("%w: cannot pause auction in status %s", core.ErrInvalidState, resolved)
			}
			a.Status = core.StatusPaused
			return nil
		})
}

// ResumeAuction reactivates a paused auction. Creator only. If the
// auction's window lapsed while paused, it resolves to Ended on the next
// operation.
func (e *Engine) ResumeAuction(ctx context.Context, caller string, auctionID uint64) error {
	return e.lifecycleTransition(caller, auctionID, LockResumeAuction, EventAuctionResumed, "auction-resumed",
		func(a *core.Auction, resolved core.Status) error {
			if resolved != core.StatusPaused {
				return fmt.Errorf("%w: cannot resume auction in status %s", core.ErrInvalidState, resolved)
			}
			a.Status = core.StatusActive
			return nil
		})
}

// EndAuction explicitly ends an active auction before its end tick.
// Creator only.
func (e *Engine) EndAuction(ctx context.Context, caller string, auctionID uint64) error {
	return e.lifecycleTransition(caller, auctionID, LockEndAuction, EventAuctionEnded, "auction-ended",
		func(a *core.Auction, resolved core.Status) error {
			if resolved != core.StatusActive {
				return fmt.Errorf("%w: cannot end auction in status %s", core.ErrInvalidState, resolved)
			}
			a.Status = core.StatusEnded
			return nil
		})
}

// lifecycleTransition is the shared skeleton of the explicit pause,
// resume and end transitions: guard, resolve lazily, apply, persist,
// audit.
func (e *Engine) lifecycleTransition(caller string, auctionID uint64, lock, event, auditType string, apply func(*core.Auction, core.Status) error) error {
	release, err := e.guard(lock)
	if err != nil {
		return err
	}
	defer release()

	if err := e.checkGuards(caller); err != nil {
		return err
	}
	a, err := e.loadAuction(auctionID)
	if err != nil {
		return err
	}
	if a.Seller != caller {
		return fmt.Errorf("%w: only the creator may change auction lifecycle", core.ErrUnauthorized)
	}
	tick := e.clock.CurrentTick()
	if err := apply(a, core.ResolveStatus(a, tick)); err != nil {
		return err
	}
	if err := e.store.PutAuction(a); err != nil {
		return fmt.Errorf("persist auction: %w", err)
	}
	e.recordEvent(auditType, caller, tick, fmt.Sprintf("auction=%d", auctionID))
	e.publisher.Publish(Event{Type: event, AuctionID: auctionID, Actor: caller, Tick: tick})
	return nil
}

// CancelAuction aborts an auction that has not ended, refunding the
// current highest bidder through the escrow ledger before the status
// flips to Cancelled. Creator only.
func (e *Engine) CancelAuction(ctx context.Context, caller string, auctionID uint64) error {
	release, err := e.guard(LockCancelAuction)
	if err != nil {
		return err
	}
	defer release()

	if err := e.checkGuards(caller); err != nil {
		return err
	}
	a, err := e.loadAuction(auctionID)
	if err != nil {
		return err
	}
	if a.Seller != caller {
		return fmt.Errorf("%w: only the creator may cancel", core.ErrUnauthorized)
	}
	tick := e.clock.CurrentTick()
	switch core.ResolveStatus(a, tick) {
	case core.StatusPending, core.StatusActive, core.StatusPaused:
		// cancellable
	default:
		return fmt.Errorf("%w: auction %d already ended", core.ErrInvalidState, auctionID)
	}

	// Refund the leader before any status change: a failed transfer
	// aborts the cancel with no partial state.
	if a.HighestBidder != "" {
		if err := e.refundBalance(ctx, a, a.HighestBidder, true); err != nil {
			return err
		}
	}
	a.Status = core.StatusCancelled
	if err := e.store.PutAuction(a); err != nil {
		return fmt.Errorf("persist auction: %w", err)
	}
	e.recordEvent("auction-cancelled", caller, tick, fmt.Sprintf("auction=%d", auctionID))
	e.publisher.Publish(Event{Type: EventAuctionCancelled, AuctionID: auctionID, Actor: caller, Tick: tick})
	e.log.Info("auction cancelled", zap.Uint64("auction_id", auctionID), zap.String("caller", caller))
	return nil
}
