package engine

import (
	"fmt"
	"sync"

	"github.com/vicodeox/stackAuc/core"
)

// AccessState holds the process-wide role and whitelist configuration.
// It is initialized once at engine start and mutated only through the
// owner/admin operations below; every mutating auction operation reads
// it. Roles form a strict hierarchy: owner ⊇ admin ⊇ moderator.
type AccessState struct {
	mu                sync.RWMutex
	owner             string
	admins            map[string]bool
	moderators        map[string]bool
	whitelist         map[string]bool
	emergencyStop     bool
	whitelistRequired bool
}

func NewAccessState(owner string, whitelistRequired bool) *AccessState {
	return &AccessState{
		owner:             owner,
		admins:            make(map[string]bool),
		moderators:        make(map[string]bool),
		whitelist:         make(map[string]bool),
		whitelistRequired: whitelistRequired,
	}
}

func (s *AccessState) IsOwner(p string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return p == s.owner
}

// IsAdmin passes for the owner and configured admins.
func (s *AccessState) IsAdmin(p string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return p == s.owner || s.admins[p]
}

// IsModerator passes for the owner, admins and configured moderators.
func (s *AccessState) IsModerator(p string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return p == s.owner || s.admins[p] || s.moderators[p]
}

func (s *AccessState) IsWhitelisted(p string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.whitelist[p]
}

func (s *AccessState) EmergencyStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emergencyStop
}

func (s *AccessState) WhitelistRequired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.whitelistRequired
}

func (s *AccessState) setRole(set map[string]bool, p string, member bool) {
	s.mu.Lock()
	if member {
		set[p] = true
	} else {
		delete(set, p)
	}
	s.mu.Unlock()
}

// --- Admin operations -------------------------------------------------

// AddAdmin grants the admin role. Owner only.
func (e *Engine) AddAdmin(caller, principal string) error {
	return e.adminMutation(caller, principal, "admin-added", e.access.IsOwner, func() {
		e.access.setRole(e.access.admins, principal, true)
	})
}

// RemoveAdmin revokes the admin role. Owner only.
func (e *Engine) RemoveAdmin(caller, principal string) error {
	return e.adminMutation(caller, principal, "admin-removed", e.access.IsOwner, func() {
		e.access.setRole(e.access.admins, principal, false)
	})
}

// AddModerator grants the moderator role. Admin or above.
func (e *Engine) AddModerator(caller, principal string) error {
	return e.adminMutation(caller, principal, "moderator-added", e.access.IsAdmin, func() {
		e.access.setRole(e.access.moderators, principal, true)
	})
}

// RemoveModerator revokes the moderator role. Admin or above.
func (e *Engine) RemoveModerator(caller, principal string) error {
	return e.adminMutation(caller, principal, "moderator-removed", e.access.IsAdmin, func() {
		e.access.setRole(e.access.moderators, principal, false)
	})
}

// AddToWhitelist adds a principal to the whitelist. Moderator or above.
func (e *Engine) AddToWhitelist(caller, principal string) error {
	return e.adminMutation(caller, principal, "whitelist-added", e.access.IsModerator, func() {
		e.access.setRole(e.access.whitelist, principal, true)
	})
}

// RemoveFromWhitelist removes a principal from the whitelist. Moderator
// or above.
func (e *Engine) RemoveFromWhitelist(caller, principal string) error {
	return e.adminMutation(caller, principal, "whitelist-removed", e.access.IsModerator, func() {
		e.access.setRole(e.access.whitelist, principal, false)
	})
}

// SetWhitelistRequired toggles whitelist enforcement. Admin or above.
func (e *Engine) SetWhitelistRequired(caller string, required bool) error {
	return e.adminMutation(caller, fmt.Sprintf("required=%t", required), "whitelist-required-set", e.access.IsAdmin, func() {
		e.access.mu.Lock()
		e.access.whitelistRequired = required
		e.access.mu.Unlock()
	})
}

// adminMutation applies one guarded access-state mutation: emergency
// stop first, then the role check, then the mutation, then the audit
// event.
func (e *Engine) adminMutation(caller, detail, eventType string, authorized func(string) bool, apply func()) error {
	if e.access.EmergencyStopped() {
		return core.ErrEmergencyStop
	}
	if !authorized(caller) {
		return fmt.Errorf("%w: %s", core.ErrUnauthorized, caller)
	}
	apply()
	e.recordEvent(eventType, caller, e.clock.CurrentTick(), detail)
	return nil
}

// SetEmergencyStop toggles the emergency-stop flag. Setting it requires
// admin or above; while it is set every guarded operation fails, and
// only the owner may clear it.
func (e *Engine) SetEmergencyStop(caller string, stop bool) error {
	if stop {
		if e.access.EmergencyStopped() {
			return core.ErrEmergencyStop
		}
		if !e.access.IsAdmin(caller) {
			return fmt.Errorf("%w: %s", core.ErrUnauthorized, caller)
		}
	} else if !e.access.IsOwner(caller) {
		return fmt.Errorf("%w: only the owner may clear the emergency stop", core.ErrUnauthorized)
	}
	e.access.mu.Lock()
	e.access.emergencyStop = stop
	e.access.mu.Unlock()
	e.recordEvent("emergency-stop-set", caller, e.clock.CurrentTick(), fmt.Sprintf("stop=%t", stop))
	return nil
}

// SetFeeRate reconfigures the platform fee rate in basis points. Owner
// only; applies to finalizations after the change.
func (e *Engine) SetFeeRate(caller string, feeRateBps uint64) error {
	if e.access.EmergencyStopped() {
		return core.ErrEmergencyStop
	}
	if !e.access.IsOwner(caller) {
		return fmt.Errorf("%w: %s", core.ErrUnauthorized, caller)
	}
	if feeRateBps > core.BasisPointDenominator {
		return fmt.Errorf("%w: fee rate %d exceeds %d bps", core.ErrInvalidParameters, feeRateBps, core.BasisPointDenominator)
	}
	e.feeMu.Lock()
	e.feeRateBps = feeRateBps
	e.feeMu.Unlock()
	e.recordEvent("fee-rate-set", caller, e.clock.CurrentTick(), fmt.Sprintf("bps=%d", feeRateBps))
	return nil
}
