package engine

import (
	"sync"
	"time"
)

// Clock exposes the monotonically increasing logical counter all time
// comparisons use. The engine never advances it; it reflects the
// progress of an external ordering authority.
type Clock interface {
	CurrentTick() uint64
}

// ManualClock is a hand-advanced clock for tests and for deployments
// where an external feed (for example a block-height watcher) drives
// engine time.
type ManualClock struct {
	mu   sync.RWMutex
	tick uint64
}

// NewManualClock starts a manual clock at the given tick.
func NewManualClock(tick uint64) *ManualClock {
	return &ManualClock{tick: tick}
}

func (c *ManualClock) CurrentTick() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tick
}

// Advance moves the clock forward by delta ticks.
func (c *ManualClock) Advance(delta uint64) {
	c.mu.Lock()
	c.tick += delta
	c.mu.Unlock()
}

// Set moves the clock to the given tick. Moving backwards is ignored;
// the counter is monotone.
func (c *ManualClock) Set(tick uint64) {
	c.mu.Lock()
	if tick > c.tick {
		c.tick = tick
	}
	c.mu.Unlock()
}

// IntervalClock derives ticks from wall time: one tick per interval
// elapsed since the epoch. Useful for standalone deployments without an
// external ordering feed.
type IntervalClock struct {
	epoch    time.Time
	interval time.Duration
}

// NewIntervalClock creates a clock ticking once per interval, starting
// at tick 0 now.
func NewIntervalClock(interval time.Duration) *IntervalClock {
	if interval <= 0 {
		interval = time.Second
	}
	return &IntervalClock{epoch: time.Now(), interval: interval}
}

func (c *IntervalClock) CurrentTick() uint64 {
	elapsed := time.Since(c.epoch)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / c.interval)
}
