// Package engine implements the auction settlement and escrow engine: it
// custodies bidder funds, drives the bid/time state machine and performs
// the at-most-once settlement of ended auctions. All time-dependent
// transitions are evaluated lazily against an injected tick source; no
// background process mutates auction state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vicodeox/stackAuc/core"
)

// Store persists the four logical tables (auctions, escrow balances,
// payment splits, security events) plus settlement receipts. Lookups for
// missing records fail with core.ErrNotFound.
type Store interface {
	NextAuctionID() (uint64, error)
	GetAuction(id uint64) (*core.Auction, error)
	PutAuction(a *core.Auction) error

	GetEscrow(auctionID uint64, bidder string) (*core.EscrowBalance, error)
	PutEscrow(b *core.EscrowBalance) error

	GetSplit(auctionID uint64) (*core.PaymentSplit, error)
	PutSplit(s *core.PaymentSplit) error

	AppendSecurityEvent(ev *core.SecurityEvent) (uint64, error)
	GetSecurityEvent(id uint64) (*core.SecurityEvent, error)

	PutReceipt(r *core.SettlementReceipt, signed []byte) error
	GetReceipt(auctionID uint64) (*core.SettlementReceipt, []byte, error)
}

// TransferService is the external value-transfer capability. Transfers
// are invoked with exact amounts, never negative, never exceeding the
// custodied balance.
type TransferService interface {
	Transfer(ctx context.Context, token string, amount uint64, from, to string) error
}

// OwnerRegistry is the external item-ownership capability, invoked once
// by a winning finalize.
type OwnerRegistry interface {
	SetOwner(ctx context.Context, itemID, newOwner string) error
}

// EligibilityChecker is the external KYC/whitelist capability consulted
// when whitelist enforcement is enabled. A nil checker means only the
// engine's own whitelist set is consulted.
type EligibilityChecker interface {
	IsEligible(principal string) bool
}

// Config carries the engine's platform-level settings. FeeRateBps and
// EmergencyStop are mutable afterwards through admin operations.
type Config struct {
	Owner             string
	CustodyAccount    string // principal holding escrowed funds, default "escrow"
	FeeRateBps        uint64
	FeeRecipient      string
	WhitelistRequired bool
}

// Deps are the engine's collaborators. Store, Clock, Transfers and
// Owners are required; Eligibility, Publisher, Signer and Logger default
// to no-op or freshly generated implementations.
type Deps struct {
	Store       Store
	Clock       Clock
	Transfers   TransferService
	Owners      OwnerRegistry
	Eligibility EligibilityChecker
	Publisher   Publisher
	Signer      *ReceiptSigner
	Logger      *zap.Logger
}

// Engine is the settlement engine. Mutating operations execute one at a
// time, matching the single-operation execution model; the named-lock
// table is checked before the mutex, with a shared engine-wide name
// held alongside each operation's own, so a reentrant call into ANY
// guarded function fails with ErrReentrancy instead of deadlocking.
type Engine struct {
	mu sync.Mutex

	store       Store
	clock       Clock
	transfers   TransferService
	owners      OwnerRegistry
	eligibility EligibilityChecker
	publisher   Publisher
	signer      *ReceiptSigner
	log         *zap.Logger

	access *AccessState
	locks  *FunctionLocks

	custodyAccount string
	feeRecipient   string

	// feeRateBps has its own lock so SetFeeRate stays callable while a
	// guarded operation holds the engine mutex.
	feeMu      sync.RWMutex
	feeRateBps uint64
}

// New validates the configuration and assembles an engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	if cfg.Owner == "" {
		return nil, fmt.Errorf("%w: owner principal is required", core.ErrInvalidParameters)
	}
	if cfg.FeeRateBps > core.BasisPointDenominator {
		return nil, fmt.Errorf("%w: fee rate %d exceeds %d bps", core.ErrInvalidParameters, cfg.FeeRateBps, core.BasisPointDenominator)
	}
	if deps.Store == nil || deps.Clock == nil || deps.Transfers == nil || deps.Owners == nil {
		return nil, fmt.Errorf("%w: store, clock, transfers and owners are required", core.ErrInvalidParameters)
	}
	if cfg.CustodyAccount == "" {
		cfg.CustodyAccount = "escrow"
	}
	if deps.Publisher == nil {
		deps.Publisher = NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Signer == nil {
		signer, err := NewReceiptSigner()
		if err != nil {
			return nil, fmt.Errorf("generate receipt signer: %w", err)
		}
		deps.Signer = signer
	}

	return &Engine{
		store:          deps.Store,
		clock:          deps.Clock,
		transfers:      deps.Transfers,
		owners:         deps.Owners,
		eligibility:    deps.Eligibility,
		publisher:      deps.Publisher,
		signer:         deps.Signer,
		log:            deps.Logger,
		access:         NewAccessState(cfg.Owner, cfg.WhitelistRequired),
		locks:          NewFunctionLocks(),
		custodyAccount: cfg.CustodyAccount,
		feeRateBps:     cfg.FeeRateBps,
		feeRecipient:   cfg.FeeRecipient,
	}, nil
}

// Access exposes the role/whitelist state for read-only inspection.
func (e *Engine) Access() *AccessState { return e.access }

func (e *Engine) currentFeeRate() uint64 {
	e.feeMu.RLock()
	defer e.feeMu.RUnlock()
	return e.feeRateBps
}

// SignerPublicKeyPEM returns the PEM-encoded public key that verifies
// settlement receipts produced by this engine instance.
func (e *Engine) SignerPublicKeyPEM() (string, error) {
	return e.signer.PublicKeyPEM()
}

// guard enters a guarded mutating operation: it try-acquires the
// operation's own lock name, then LockEngine, then takes the engine
// mutex. A failed acquire at either name means a guarded operation is
// already in flight, so the call fails with ErrReentrancy without ever
// blocking; only the holder of both names reaches the mutex. The
// returned release must run on every exit path.
func (e *Engine) guard(name string) (func(), error) {
	if err := e.locks.Acquire(name); err != nil {
		return nil, err
	}
	if err := e.locks.Acquire(LockEngine); err != nil {
		e.locks.Release(name)
		return nil, err
	}
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		e.locks.Release(LockEngine)
		e.locks.Release(name)
	}, nil
}

// checkGuards runs the entry checks shared by every guarded mutating
// operation: emergency stop first, then whitelist eligibility. Guards
// run before any write, so a failure leaves no partial state.
func (e *Engine) checkGuards(caller string) error {
	if caller == "" {
		return fmt.Errorf("%w: caller principal is required", core.ErrInvalidParameters)
	}
	if e.access.EmergencyStopped() {
		return core.ErrEmergencyStop
	}
	if !e.access.WhitelistRequired() || e.access.IsOwner(caller) {
		return nil
	}
	if e.access.IsWhitelisted(caller) {
		return nil
	}
	if e.eligibility != nil && e.eligibility.IsEligible(caller) {
		return nil
	}
	return fmt.Errorf("%w: %s", core.ErrNotWhitelisted, caller)
}

// recordEvent appends a security event after a successful privileged
// mutation. The log records intent, so a failure to persist it is
// reported but never rolls back the mutation it describes.
func (e *Engine) recordEvent(eventType, actor string, tick uint64, detail string) {
	_, err := e.store.AppendSecurityEvent(&core.SecurityEvent{
		Type:   eventType,
		Actor:  actor,
		Tick:   tick,
		Detail: detail,
	})
	if err != nil {
		e.log.Warn("security event not persisted",
			zap.String("type", eventType),
			zap.String("actor", actor),
			zap.Error(err))
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

func (e *Engine) loadAuction(id uint64) (*core.Auction, error) {
	a, err := e.store.GetAuction(id)
	if err != nil {
		return nil, fmt.Errorf("auction %d: %w", id, err)
	}
	return a, nil
}
