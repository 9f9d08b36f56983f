package models

import "time"

// ChatSettings holds the per-chat scan parameters. One row per chat;
// chats that never changed anything have no row and run on defaults.
type ChatSettings struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	ChatID         int64   `gorm:"uniqueIndex;not null" json:"chat_id"`
	PriceThreshold float64 `gorm:"not null" json:"price_threshold"`
	OrderSize      float64 `gorm:"not null" json:"order_size"`
	SellTarget     float64 `gorm:"not null" json:"sell_target"`
	AutoPlace      bool    `gorm:"not null" json:"auto_place"`
	IntervalSec    int     `gorm:"not null" json:"interval_sec"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ChatSettings) TableName() string { return "chat_settings" }
