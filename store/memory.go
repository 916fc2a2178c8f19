// Package store provides the persistence backends for the settlement
// engine: an in-memory store for tests and single-process deployments,
// and a GORM/MySQL store for durable operation. Both satisfy
// engine.Store.
package store

import (
	"fmt"
	"sync"

	"github.com/vicodeox/stackAuc/core"
)

type escrowKey struct {
	auctionID uint64
	bidder    string
}

// Memory is a map-backed store. All records are copied on the way in and
// out so callers never share mutable state with the store.
type Memory struct {
	mu sync.Mutex

	nextAuctionID uint64
	nextEventID   uint64

	auctions map[uint64]core.Auction
	escrow   map[escrowKey]core.EscrowBalance
	splits   map[uint64]core.PaymentSplit
	events   map[uint64]core.SecurityEvent
	receipts map[uint64]storedReceipt
}

type storedReceipt struct {
	receipt core.SettlementReceipt
	signed  []byte
}

func NewMemory() *Memory {
	return &Memory{
		nextAuctionID: 1,
		nextEventID:   1,
		auctions:      make(map[uint64]core.Auction),
		escrow:        make(map[escrowKey]core.EscrowBalance),
		splits:        make(map[uint64]core.PaymentSplit),
		events:        make(map[uint64]core.SecurityEvent),
		receipts:      make(map[uint64]storedReceipt),
	}
}

func (m *Memory) NextAuctionID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextAuctionID
	m.nextAuctionID++
	return id, nil
}

func (m *Memory) GetAuction(id uint64) (*core.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[id]
	if !ok {
		return nil, fmt.Errorf("%w: auction %d", core.ErrNotFound, id)
	}
	return &a, nil
}

func (m *Memory) PutAuction(a *core.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auctions[a.ID] = *a
	return nil
}

func (m *Memory) GetEscrow(auctionID uint64, bidder string) (*core.EscrowBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.escrow[escrowKey{auctionID, bidder}]
	if !ok {
		return nil, fmt.Errorf("%w: escrow for bidder %s on auction %d", core.ErrNotFound, bidder, auctionID)
	}
	return &b, nil
}

func (m *Memory) PutEscrow(b *core.EscrowBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escrow[escrowKey{b.AuctionID, b.Bidder}] = *b
	return nil
}

func (m *Memory) GetSplit(auctionID uint64) (*core.PaymentSplit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.splits[auctionID]
	if !ok {
		return nil, fmt.Errorf("%w: payment split for auction %d", core.ErrNotFound, auctionID)
	}
	out := s
	out.Recipients = append([]core.SplitRecipient(nil), s.Recipients...)
	return &out, nil
}

func (m *Memory) PutSplit(s *core.PaymentSplit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in := *s
	in.Recipients = append([]core.SplitRecipient(nil), s.Recipients...)
	m.splits[s.AuctionID] = in
	return nil
}

// AppendSecurityEvent assigns the next sequential ID and stores the
// entry. The log is append-only; there is no delete or update path.
func (m *Memory) AppendSecurityEvent(ev *core.SecurityEvent) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextEventID
	m.nextEventID++
	stored := *ev
	stored.ID = id
	m.events[id] = stored
	return id, nil
}

func (m *Memory) GetSecurityEvent(id uint64) (*core.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: security event %d", core.ErrNotFound, id)
	}
	return &ev, nil
}

func (m *Memory) PutReceipt(r *core.SettlementReceipt, signed []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[r.AuctionID] = storedReceipt{
		receipt: *r,
		signed:  append([]byte(nil), signed...),
	}
	return nil
}

func (m *Memory) GetReceipt(auctionID uint64) (*core.SettlementReceipt, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sr, ok := m.receipts[auctionID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: receipt for auction %d", core.ErrNotFound, auctionID)
	}
	r := sr.receipt
	r.Transfers = append([]core.TransferRecord(nil), sr.receipt.Transfers...)
	return &r, append([]byte(nil), sr.signed...), nil
}
