package core

// ResolveStatus computes the effective status of an auction at the given
// tick. Time-based transitions are never applied by a background process;
// every operation calls this at its start and acts on the result.
//
// Lazy transitions:
//   - Pending → Active once tick ≥ StartTick
//   - Pending/Active → Ended once tick ≥ EndTick
//
// Paused, Cancelled and Finalized are sticky: they only change through
// explicit operations. A paused auction does not stop the tick clock; if
// its window lapses while paused it ends on resume.
func ResolveStatus(a *Auction, tick uint64) Status {
	switch a.Status {
	case StatusPending:
		if tick >= a.EndTick {
			return StatusEnded
		}
		if tick >= a.StartTick {
			return StatusActive
		}
		return StatusPending
	case StatusActive:
		if tick >= a.EndTick {
			return StatusEnded
		}
		return StatusActive
	default:
		return a.Status
	}
}
