package engine

import (
	"fmt"
	"sync"

	"github.com/vicodeox/stackAuc/core"
)

// Lock names for every externally callable mutating operation.
const (
	// LockEngine is held by every guarded operation for its full
	// duration, in addition to the operation's own name. A synchronous
	// callback re-entering the engine through any operation, not just
	// the one in flight, fails this try-acquire instead of blocking on
	// the engine mutex its caller holds.
	LockEngine = "engine"

	LockCreateAuction = "create-auction"
	LockPlaceBid      = "place-bid"
	LockPauseAuction  = "pause-auction"
	LockResumeAuction = "resume-auction"
	LockCancelAuction = "cancel-auction"
	LockEndAuction    = "end-auction"
	LockFinalize      = "finalize"
	LockRefundEscrow  = "refund-escrow"
	LockSetSplit      = "set-payment-split"
)

// FunctionLocks is the named-lock table guarding against reentrant
// invocation. Acquire is a try-acquire: it fails immediately when the
// name is already held, it never blocks. Release is unconditional and
// must run on every exit path of the guarded operation.
type FunctionLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewFunctionLocks() *FunctionLocks {
	return &FunctionLocks{held: make(map[string]bool)}
}

// Acquire takes the named lock, failing with ErrReentrancy when it is
// already held.
func (l *FunctionLocks) Acquire(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return fmt.Errorf("%w: %s", core.ErrReentrancy, name)
	}
	l.held[name] = true
	return nil
}

// Release frees the named lock. Releasing a lock that is not held is a
// no-op.
func (l *FunctionLocks) Release(name string) {
	l.mu.Lock()
	delete(l.held, name)
	l.mu.Unlock()
}

// IsLocked reports whether the named lock is currently held.
func (l *FunctionLocks) IsLocked(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[name]
}
