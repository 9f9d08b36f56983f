package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Order lifecycle states as recorded locally. The venue owns the real
// state machine; this journal only tracks what we submitted and the
// immediate outcome.
const (
	OrderStatusPlaced   = "placed"
	OrderStatusRejected = "rejected"
	OrderStatusFailed   = "failed"
)

// OrderRecord journals one order submission attempt.
type OrderRecord struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	ChatID   int64  `gorm:"index" json:"chat_id"`
	MarketID string `gorm:"size:128;index" json:"market_id"`
	Slug     string `gorm:"size:256" json:"slug"`
	Question string `gorm:"size:512" json:"question"`
	TokenID  string `gorm:"size:128" json:"token_id"`
	Side     string `gorm:"size:8" json:"side"`
	Outcome  string `gorm:"size:32" json:"outcome"`

	Price decimal.Decimal `gorm:"type:decimal(20,8)" json:"price"`
	Size  decimal.Decimal `gorm:"type:decimal(20,8)" json:"size"`

	Status         string         `gorm:"size:16;index" json:"status"`
	VenueOrderID   string         `gorm:"size:128" json:"venue_order_id"`
	RetriedWithMin bool           `json:"retried_with_min"`
	ErrorText      string         `gorm:"size:1024" json:"error_text"`
	RawResponse    datatypes.JSON `json:"raw_response"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OrderRecord) TableName() string { return "order_records" }
