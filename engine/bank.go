package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/vicodeox/stackAuc/core"
)

// MemoryBank is an in-process TransferService keeping per-principal,
// per-token balances. It backs the standalone server when no external
// payment rail is configured, and the engine tests.
type MemoryBank struct {
	mu       sync.Mutex
	balances map[string]map[string]uint64 // principal -> token -> amount
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{balances: make(map[string]map[string]uint64)}
}

// Credit mints amount of token to a principal, creating the account on
// first use.
func (b *MemoryBank) Credit(principal, token string, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct := b.balances[principal]
	if acct == nil {
		acct = make(map[string]uint64)
		b.balances[principal] = acct
	}
	acct[token] += amount
}

// Balance returns the principal's holding of token, zero if unknown.
func (b *MemoryBank) Balance(principal, token string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[principal][token]
}

// Transfer moves amount of token between principals. Insufficient funds
// fail with core.ErrTransferFailed and no balance changes.
func (b *MemoryBank) Transfer(ctx context.Context, token string, amount uint64, from, to string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransferFailed, err)
	}
	if amount == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.balances[from][token] < amount {
		return fmt.Errorf("%w: %s holds %d %s, needs %d",
			core.ErrTransferFailed, from, b.balances[from][token], token, amount)
	}
	b.balances[from][token] -= amount

	acct := b.balances[to]
	if acct == nil {
		acct = make(map[string]uint64)
		b.balances[to] = acct
	}
	acct[token] += amount
	return nil
}

// MemoryOwnerRegistry is an in-process OwnerRegistry mapping item IDs to
// their current owner.
type MemoryOwnerRegistry struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewMemoryOwnerRegistry() *MemoryOwnerRegistry {
	return &MemoryOwnerRegistry{owners: make(map[string]string)}
}

func (r *MemoryOwnerRegistry) SetOwner(ctx context.Context, itemID, newOwner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[itemID] = newOwner
	return nil
}

// Owner returns the recorded owner of itemID, empty if never assigned.
func (r *MemoryOwnerRegistry) Owner(itemID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owners[itemID]
}
