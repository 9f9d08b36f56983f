package settings

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"polyscout/internal/config"
	"polyscout/internal/models"
	"polyscout/internal/repository"
)

// Settings are the effective per-chat scan parameters after merging the
// stored row over the configured defaults.
type Settings struct {
	PriceThreshold float64
	OrderSize      float64
	SellTarget     float64
	AutoPlace      bool
	Interval       time.Duration
}

// Patch carries partial updates; nil fields are left untouched.
type Patch struct {
	PriceThreshold *float64
	OrderSize      *float64
	SellTarget     *float64
	AutoPlace      *bool
	Interval       *time.Duration
}

// Store reads and writes per-chat settings. Every mutation is persisted
// immediately so a restart never loses an adjustment.
type Store struct {
	Repo     repository.Repository
	Logger   *zap.Logger
	Defaults config.ScanConfig
}

// Get returns the effective settings for a chat. Chats with no stored
// row run on the configured defaults.
func (s *Store) Get(ctx context.Context, chatID int64) (Settings, error) {
	out := s.defaults()
	row, err := s.Repo.GetChatSettings(ctx, chatID)
	if err != nil {
		return out, fmt.Errorf("settings: load chat %d: %w", chatID, err)
	}
	if row == nil {
		return out, nil
	}
	if row.PriceThreshold > 0 {
		out.PriceThreshold = row.PriceThreshold
	}
	if row.OrderSize > 0 {
		out.OrderSize = row.OrderSize
	}
	if row.SellTarget > 0 {
		out.SellTarget = row.SellTarget
	}
	out.AutoPlace = row.AutoPlace
	if row.IntervalSec > 0 {
		out.Interval = time.Duration(row.IntervalSec) * time.Second
	}
	return out, nil
}

// Apply merges a patch over the chat's current settings and persists the
// result. It returns the effective settings after the write.
func (s *Store) Apply(ctx context.Context, chatID int64, p Patch) (Settings, error) {
	cur, err := s.Get(ctx, chatID)
	if err != nil {
		return cur, err
	}
	if p.PriceThreshold != nil {
		cur.PriceThreshold = *p.PriceThreshold
	}
	if p.OrderSize != nil {
		cur.OrderSize = *p.OrderSize
	}
	if p.SellTarget != nil {
		cur.SellTarget = *p.SellTarget
	}
	if p.AutoPlace != nil {
		cur.AutoPlace = *p.AutoPlace
	}
	if p.Interval != nil {
		cur.Interval = *p.Interval
	}
	if err := s.save(ctx, chatID, cur); err != nil {
		return cur, err
	}
	return cur, nil
}

// IncrementOrderSize adds delta to the chat's order size, flooring the
// result at 1 share, and persists the change.
func (s *Store) IncrementOrderSize(ctx context.Context, chatID int64, delta float64) (Settings, error) {
	cur, err := s.Get(ctx, chatID)
	if err != nil {
		return cur, err
	}
	cur.OrderSize += delta
	if cur.OrderSize < 1 {
		cur.OrderSize = 1
	}
	if err := s.save(ctx, chatID, cur); err != nil {
		return cur, err
	}
	return cur, nil
}

func (s *Store) save(ctx context.Context, chatID int64, v Settings) error {
	row := &models.ChatSettings{
		ChatID:         chatID,
		PriceThreshold: v.PriceThreshold,
		OrderSize:      v.OrderSize,
		SellTarget:     v.SellTarget,
		AutoPlace:      v.AutoPlace,
		IntervalSec:    int(v.Interval / time.Second),
	}
	if err := s.Repo.UpsertChatSettings(ctx, row); err != nil {
		return fmt.Errorf("settings: save chat %d: %w", chatID, err)
	}
	if s.Logger != nil {
		s.Logger.Debug("settings saved",
			zap.Int64("chat_id", chatID),
			zap.Float64("price_threshold", v.PriceThreshold),
			zap.Float64("order_size", v.OrderSize),
			zap.Bool("auto_place", v.AutoPlace))
	}
	return nil
}

func (s *Store) defaults() Settings {
	d := Settings{
		PriceThreshold: s.Defaults.PriceThreshold,
		OrderSize:      float64(s.Defaults.OrderSize),
		SellTarget:     s.Defaults.SellTarget,
		AutoPlace:      s.Defaults.AutoPlace,
		Interval:       s.Defaults.Interval,
	}
	if d.PriceThreshold <= 0 {
		d.PriceThreshold = 0.01
	}
	if d.OrderSize <= 0 {
		d.OrderSize = 100
	}
	if d.SellTarget <= 0 {
		d.SellTarget = 0.05
	}
	if d.Interval <= 0 {
		d.Interval = time.Minute
	}
	return d
}
