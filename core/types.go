package core

// AuctionKind selects the pricing direction of an auction.
type AuctionKind string

const (
	// AuctionEnglish is the ascending variant: each accepted bid must
	// strictly exceed the current highest bid.
	AuctionEnglish AuctionKind = "english"

	// AuctionDutch is the descending variant: the price decays linearly
	// from StartPrice to EndPrice and the first valid bid wins.
	AuctionDutch AuctionKind = "dutch"
)

// Status is the lifecycle state of an auction. Transitions into Ended may
// happen lazily (see ResolveStatus); all other transitions are explicit.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusEnded     Status = "ended"
	StatusFinalized Status = "finalized"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further lifecycle transition is possible.
func (s Status) Terminal() bool {
	return s == StatusFinalized || s == StatusCancelled
}

// Auction is the persistent record of a single auction. Records are never
// deleted; they only transition into a terminal status.
type Auction struct {
	ID     uint64      `json:"id"`
	Seller string      `json:"seller"`
	ItemID string      `json:"item_id"`
	Kind   AuctionKind `json:"kind"`
	Token  string      `json:"token"`

	StartPrice   uint64 `json:"start_price"`
	ReservePrice uint64 `json:"reserve_price,omitempty"` // 0 = no reserve
	EndPrice     uint64 `json:"end_price,omitempty"`     // Dutch only

	StartTick       uint64 `json:"start_tick"`
	Duration        uint64 `json:"duration"`
	EndTick         uint64 `json:"end_tick"`
	AntiSnipeWindow uint64 `json:"anti_snipe_window,omitempty"`
	ExtensionTicks  uint64 `json:"extension_ticks,omitempty"`

	Status        Status `json:"status"`
	HighestBid    uint64 `json:"highest_bid"`
	HighestBidder string `json:"highest_bidder,omitempty"`
	Finalized     bool   `json:"finalized"`
}

// HasReserve reports whether a reserve price is configured.
func (a *Auction) HasReserve() bool {
	return a.ReservePrice > 0
}

// EscrowBalance tracks funds custodied for one bidder in one auction.
// The (AuctionID, Bidder) pair is unique. Refunded flips false→true when
// the custodied amount is returned to the bidder; a later accepted bid by
// the same bidder conceptually opens a fresh balance under the same key.
type EscrowBalance struct {
	AuctionID uint64 `json:"auction_id"`
	Bidder    string `json:"bidder"`
	Amount    uint64 `json:"amount"`
	Token     string `json:"token"`
	Refunded  bool   `json:"refunded"`
}

// SplitRecipient is one (recipient, percentage) pair of a payment split.
type SplitRecipient struct {
	Recipient string `json:"recipient"`
	Percent   uint64 `json:"percent"`
}

// PaymentSplit configures how the post-fee proceeds of an auction are
// divided. The remainder after all recipients accrues to the seller.
type PaymentSplit struct {
	AuctionID      uint64           `json:"auction_id"`
	Recipients     []SplitRecipient `json:"recipients,omitempty"`
	Charity        string           `json:"charity,omitempty"`
	CharityPercent uint64           `json:"charity_percent,omitempty"`
}

// TotalPercent returns the sum of all configured percentages, charity
// included.
func (p *PaymentSplit) TotalPercent() uint64 {
	total := p.CharityPercent
	for _, r := range p.Recipients {
		total += r.Percent
	}
	return total
}

// SecurityEvent is one append-only audit log entry. IDs are assigned
// sequentially by the store; entries are never mutated or deleted.
type SecurityEvent struct {
	ID     uint64 `json:"id"`
	Type   string `json:"type"`
	Actor  string `json:"actor"`
	Tick   uint64 `json:"tick"`
	Detail string `json:"detail,omitempty"`
}

// Transfer purposes used in settlement plans and receipts.
const (
	TransferPlatformFee    = "platform_fee"
	TransferSplit          = "split"
	TransferCharity        = "charity"
	TransferSellerProceeds = "seller_proceeds"
)

// TransferInstruction is one planned movement of custodied funds. Plans
// are computed in full and validated before any transfer is performed.
type TransferInstruction struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Purpose   string `json:"purpose"`
}

// SettlementPlan is the deterministic outcome of finalizing an auction
// with a winner: the platform fee, the per-recipient split amounts and
// the seller remainder, in the exact order they must be executed.
type SettlementPlan struct {
	AuctionID     uint64                `json:"auction_id"`
	Winner        string                `json:"winner"`
	ClearingPrice uint64                `json:"clearing_price"`
	PlatformFee   uint64                `json:"platform_fee"`
	Instructions  []TransferInstruction `json:"instructions"`
}

// TransferRecord is one executed transfer as recorded in a receipt.
type TransferRecord struct {
	Recipient string `json:"recipient" cbor:"recipient"`
	Amount    uint64 `json:"amount" cbor:"amount"`
	Purpose   string `json:"purpose" cbor:"purpose"`
}

// SettlementReceipt is the signed evidence produced by a finalize call.
// Consumers outside the engine (notifications, loyalty, referral) verify
// it with the engine's public key instead of trusting the transport.
type SettlementReceipt struct {
	ReceiptID     string           `json:"receipt_id" cbor:"receipt_id"`
	AuctionID     uint64           `json:"auction_id" cbor:"auction_id"`
	ItemID        string           `json:"item_id" cbor:"item_id"`
	Seller        string           `json:"seller" cbor:"seller"`
	Winner        string           `json:"winner,omitempty" cbor:"winner"`
	Token         string           `json:"token" cbor:"token"`
	ClearingPrice uint64           `json:"clearing_price" cbor:"clearing_price"`
	PlatformFee   uint64           `json:"platform_fee" cbor:"platform_fee"`
	FeeRateBps    uint64           `json:"fee_rate_bps" cbor:"fee_rate_bps"`
	Transfers     []TransferRecord `json:"transfers,omitempty" cbor:"transfers"`
	Tick          uint64           `json:"tick" cbor:"tick"`
	Nonce         string           `json:"nonce" cbor:"nonce"`
	ReceiptHash   string           `json:"receipt_hash" cbor:"receipt_hash"`
}
