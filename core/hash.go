package core

import (
	"crypto/sha256"
	"fmt"
)

// ComputeReceiptHash computes the settlement receipt hash.
// This is used by both the engine (to generate receipts) and validation
// (to verify receipts).
//
// Formula: SHA256(auction_id + "|" + winner + "|" + clearing_price + "|" + nonce)
//
// The integer fields are formatted in base 10 so the hash is independent
// of in-memory representation.
func ComputeReceiptHash(auctionID uint64, winner string, clearingPrice uint64, nonce string) string {
	data := fmt.Sprintf("%d|%s|%d|%s", auctionID, winner, clearingPrice, nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeEventHash computes the integrity hash of a security event for
// export to external audit consumers.
//
// Formula: SHA256(event_id + "|" + type + "|" + actor + "|" + tick + "|" + detail)
func ComputeEventHash(ev *SecurityEvent) string {
	data := fmt.Sprintf("%d|%s|%s|%d|%s", ev.ID, ev.Type, ev.Actor, ev.Tick, ev.Detail)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
