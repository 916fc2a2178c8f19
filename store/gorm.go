package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/vicodeox/stackAuc/core"
)

// auctionRow is the GORM mapping of core.Auction. Auction IDs are
// assigned by the engine, not by the database, so the primary key does
// not auto-increment.
type auctionRow struct {
	ID     uint64 `gorm:"column:id;primaryKey;autoIncrement:false"`
	Seller string `gorm:"column:seller;index"`
	ItemID string `gorm:"column:item_id"`
	Kind   string `gorm:"column:kind"`
	Token  string `gorm:"column:token"`

	StartPrice   uint64 `gorm:"column:start_price"`
	ReservePrice uint64 `gorm:"column:reserve_price"`
	EndPrice     uint64 `gorm:"column:end_price"`

	StartTick       uint64 `gorm:"column:start_tick"`
	Duration        uint64 `gorm:"column:duration"`
	EndTick         uint64 `gorm:"column:end_tick"`
	AntiSnipeWindow uint64 `gorm:"column:anti_snipe_window"`
	ExtensionTicks  uint64 `gorm:"column:extension_ticks"`

	Status        string `gorm:"column:status;index"`
	HighestBid    uint64 `gorm:"column:highest_bid"`
	HighestBidder string `gorm:"column:highest_bidder"`
	Finalized     bool   `gorm:"column:finalized"`
}

func (auctionRow) TableName() string { return "auctions" }

type escrowRow struct {
	AuctionID uint64 `gorm:"column:auction_id;primaryKey;autoIncrement:false"`
	Bidder    string `gorm:"column:bidder;primaryKey"`
	Amount    uint64 `gorm:"column:amount"`
	Token     string `gorm:"column:token"`
	Refunded  bool   `gorm:"column:refunded"`
}

func (escrowRow) TableName() string { return "escrow_balances" }

// splitRow stores the recipient list as a JSON blob; splits are written
// whole and read whole, never queried by recipient.
type splitRow struct {
	AuctionID      uint64 `gorm:"column:auction_id;primaryKey;autoIncrement:false"`
	Recipients     string `gorm:"column:recipients;type:text"`
	Charity        string `gorm:"column:charity"`
	CharityPercent uint64 `gorm:"column:charity_percent"`
}

func (splitRow) TableName() string { return "payment_splits" }

type securityEventRow struct {
	ID     uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Type   string `gorm:"column:type;index"`
	Actor  string `gorm:"column:actor;index"`
	Tick   uint64 `gorm:"column:tick"`
	Detail string `gorm:"column:detail;type:text"`
}

func (securityEventRow) TableName() string { return "security_events" }

type receiptRow struct {
	AuctionID uint64 `gorm:"column:auction_id;primaryKey;autoIncrement:false"`
	ReceiptID string `gorm:"column:receipt_id;uniqueIndex"`
	Payload   string `gorm:"column:payload;type:text"`
	Signed    []byte `gorm:"column:signed;type:blob"`
}

func (receiptRow) TableName() string { return "settlement_receipts" }

// counterRow holds the auction ID sequence. The engine needs IDs before
// the row exists, so they cannot come from the auctions table's own
// auto-increment.
type counterRow struct {
	Name string `gorm:"column:name;primaryKey"`
	Next uint64 `gorm:"column:next"`
}

func (counterRow) TableName() string { return "counters" }

// Gorm is the MySQL-backed store.
type Gorm struct {
	db *gorm.DB
}

// Open connects to MySQL, migrates the schema and returns the store.
func Open(dsn string) (*Gorm, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to MySQL: %w", err)
	}
	return NewGorm(db)
}

// NewGorm wraps an existing GORM handle, migrating the schema first.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	err := db.AutoMigrate(
		&auctionRow{},
		&escrowRow{},
		&splitRow{},
		&securityEventRow{},
		&receiptRow{},
		&counterRow{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Gorm{db: db}, nil
}

// NextAuctionID atomically claims the next auction ID.
func (g *Gorm) NextAuctionID() (uint64, error) {
	var id uint64
	err := g.db.Transaction(func(tx *gorm.DB) error {
		var c counterRow
		err := tx.Where("name = ?", "auction_id").First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c = counterRow{Name: "auction_id", Next: 1}
			if err := tx.Create(&c).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		id = c.Next
		return tx.Model(&counterRow{}).
			Where("name = ?", "auction_id").
			Update("next", c.Next+1).Error
	})
	if err != nil {
		return 0, fmt.Errorf("claim auction id: %w", err)
	}
	return id, nil
}

func (g *Gorm) GetAuction(id uint64) (*core.Auction, error) {
	var row auctionRow
	if err := g.db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: auction %d", core.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load auction %d: %w", id, err)
	}
	return auctionFromRow(&row), nil
}

func (g *Gorm) PutAuction(a *core.Auction) error {
	row := auctionToRow(a)
	if err := g.db.Save(row).Error; err != nil {
		return fmt.Errorf("save auction %d: %w", a.ID, err)
	}
	return nil
}

func (g *Gorm) GetEscrow(auctionID uint64, bidder string) (*core.EscrowBalance, error) {
	var row escrowRow
	err := g.db.Where("auction_id = ? AND bidder = ?", auctionID, bidder).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: escrow for bidder %s on auction %d", core.ErrNotFound, bidder, auctionID)
		}
		return nil, fmt.Errorf("load escrow balance: %w", err)
	}
	return &core.EscrowBalance{
		AuctionID: row.AuctionID,
		Bidder:    row.Bidder,
		Amount:    row.Amount,
		Token:     row.Token,
		Refunded:  row.Refunded,
	}, nil
}

func (g *Gorm) PutEscrow(b *core.EscrowBalance) error {
	row := escrowRow{
		AuctionID: b.AuctionID,
		Bidder:    b.Bidder,
		Amount:    b.Amount,
		Token:     b.Token,
		Refunded:  b.Refunded,
	}
	if err := g.db.Save(&row).Error; err != nil {
		return fmt.Errorf("save escrow balance: %w", err)
	}
	return nil
}

func (g *Gorm) GetSplit(auctionID uint64) (*core.PaymentSplit, error) {
	var row splitRow
	if err := g.db.Where("auction_id = ?", auctionID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: payment split for auction %d", core.ErrNotFound, auctionID)
		}
		return nil, fmt.Errorf("load payment split: %w", err)
	}
	split := &core.PaymentSplit{
		AuctionID:      row.AuctionID,
		Charity:        row.Charity,
		CharityPercent: row.CharityPercent,
	}
	if row.Recipients != "" {
		if err := json.Unmarshal([]byte(row.Recipients), &split.Recipients); err != nil {
			return nil, fmt.Errorf("decode split recipients: %w", err)
		}
	}
	return split, nil
}

func (g *Gorm) PutSplit(s *core.PaymentSplit) error {
	recipients, err := json.Marshal(s.Recipients)
	if err != nil {
		return fmt.Errorf("encode split recipients: %w", err)
	}
	row := splitRow{
		AuctionID:      s.AuctionID,
		Recipients:     string(recipients),
		Charity:        s.Charity,
		CharityPercent: s.CharityPercent,
	}
	if err := g.db.Save(&row).Error; err != nil {
		return fmt.Errorf("save payment split: %w", err)
	}
	return nil
}

func (g *Gorm) AppendSecurityEvent(ev *core.SecurityEvent) (uint64, error) {
	row := securityEventRow{
		Type:   ev.Type,
		Actor:  ev.Actor,
		Tick:   ev.Tick,
		Detail: ev.Detail,
	}
	if err := g.db.Create(&row).Error; err != nil {
		return 0, fmt.Errorf("append security event: %w", err)
	}
	return row.ID, nil
}

func (g *Gorm) GetSecurityEvent(id uint64) (*core.SecurityEvent, error) {
	var row securityEventRow
	if err := g.db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: security event %d", core.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load security event %d: %w", id, err)
	}
	return &core.SecurityEvent{
		ID:     row.ID,
		Type:   row.Type,
		Actor:  row.Actor,
		Tick:   row.Tick,
		Detail: row.Detail,
	}, nil
}

func (g *Gorm) PutReceipt(r *core.SettlementReceipt, signed []byte) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	row := receiptRow{
		AuctionID: r.AuctionID,
		ReceiptID: r.ReceiptID,
		Payload:   string(payload),
		Signed:    signed,
	}
	if err := g.db.Save(&row).Error; err != nil {
		return fmt.Errorf("save receipt: %w", err)
	}
	return nil
}

func (g *Gorm) GetReceipt(auctionID uint64) (*core.SettlementReceipt, []byte, error) {
	var row receiptRow
	if err := g.db.Where("auction_id = ?", auctionID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: receipt for auction %d", core.ErrNotFound, auctionID)
		}
		return nil, nil, fmt.Errorf("load receipt: %w", err)
	}
	var receipt core.SettlementReceipt
	if err := json.Unmarshal([]byte(row.Payload), &receipt); err != nil {
		return nil, nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &receipt, row.Signed, nil
}

func auctionToRow(a *core.Auction) *auctionRow {
	return &auctionRow{
		ID:              a.ID,
		Seller:          a.Seller,
		ItemID:          a.ItemID,
		Kind:            string(a.Kind),
		Token:           a.Token,
		StartPrice:      a.StartPrice,
		ReservePrice:    a.ReservePrice,
		EndPrice:        a.EndPrice,
		StartTick:       a.StartTick,
		Duration:        a.Duration,
		EndTick:         a.EndTick,
		AntiSnipeWindow: a.AntiSnipeWindow,
		ExtensionTicks:  a.ExtensionTicks,
		Status:          string(a.Status),
		HighestBid:      a.HighestBid,
		HighestBidder:   a.HighestBidder,
		Finalized:       a.Finalized,
	}
}

func auctionFromRow(row *auctionRow) *core.Auction {
	return &core.Auction{
		ID:              row.ID,
		Seller:          row.Seller,
		ItemID:          row.ItemID,
		Kind:            core.AuctionKind(row.Kind),
		Token:           row.Token,
		StartPrice:      row.StartPrice,
		ReservePrice:    row.ReservePrice,
		EndPrice:        row.EndPrice,
		StartTick:       row.StartTick,
		Duration:        row.Duration,
		EndTick:         row.EndTick,
		AntiSnipeWindow: row.AntiSnipeWindow,
		ExtensionTicks:  row.ExtensionTicks,
		Status:          core.Status(row.Status),
		HighestBid:      row.HighestBid,
		HighestBidder:   row.HighestBidder,
		Finalized:       row.Finalized,
	}
}
