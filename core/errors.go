package core

import "errors"

// The settlement error taxonomy. Every mutating operation fails with one
// of these sentinels (possibly wrapped with context); callers classify
// with errors.Is. Guards run before any write, so a returned error means
// no partial state was left behind.
var (
	// ErrUnauthorized means a role or ownership check failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotWhitelisted means the caller failed the eligibility check
	// while whitelist enforcement is enabled.
	ErrNotWhitelisted = errors.New("not whitelisted")

	// ErrEmergencyStop means the emergency-stop flag is set and the
	// operation is not the owner clearing it.
	ErrEmergencyStop = errors.New("emergency stop active")

	// ErrReentrancy means the named function lock was already held when
	// the operation tried to acquire it.
	ErrReentrancy = errors.New("reentrancy detected")

	// ErrInvalidState means the operation is not valid for the auction's
	// current (lazily resolved) status.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrNotFound means the referenced auction, escrow balance, receipt
	// or security event does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParameters means a malformed amount, price, duration,
	// percentage or fee rate was supplied.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrBidTooLow means the bid does not exceed the current highest bid
	// (ascending) or does not meet the current decayed price (Dutch).
	ErrBidTooLow = errors.New("bid too low")

	// ErrBelowReserve means a reserve price is configured and the bid is
	// below it.
	ErrBelowReserve = errors.New("bid below reserve price")

	// ErrAlreadyRefunded means the escrow balance was already returned
	// to the bidder.
	ErrAlreadyRefunded = errors.New("escrow already refunded")

	// ErrStillLeading means the balance belongs to the current highest
	// bidder of an auction that is not yet finalized or cancelled.
	ErrStillLeading = errors.New("bidder is still the highest bidder")

	// ErrAlreadyFinalized means the finalized flag is already set.
	ErrAlreadyFinalized = errors.New("auction already finalized")

	// ErrTransferFailed means the external value-transfer capability
	// reported a failure.
	ErrTransferFailed = errors.New("transfer failed")
)
