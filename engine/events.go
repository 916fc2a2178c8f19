package engine

// Event types published for out-of-scope consumers (notifications,
// loyalty points, referral bonuses). Consumers never gate settlement
// correctness; publication is strictly after the state change it
// describes.
const (
	EventAuctionCreated   = "auction.created"
	EventBidPlaced        = "bid.placed"
	EventBidOutbid        = "bid.outbid"
	EventAuctionPaused    = "auction.paused"
	EventAuctionResumed   = "auction.resumed"
	EventAuctionEnded     = "auction.ended"
	EventAuctionCancelled = "auction.cancelled"
	EventAuctionFinalized = "auction.finalized"
	EventEscrowRefunded   = "escrow.refunded"
)

// Event is one engine occurrence delivered to the configured Publisher.
type Event struct {
	Type      string `json:"type"`
	AuctionID uint64 `json:"auction_id"`
	Actor     string `json:"actor,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`
	Tick      uint64 `json:"tick"`
	Detail    string `json:"detail,omitempty"`
}

// Publisher delivers engine events. Implementations must not call back
// into the engine.
type Publisher interface {
	Publish(ev Event)
}

// NopPublisher drops every event; the default when no broker is wired.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
