package gormrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"polyscout/internal/models"
	"polyscout/internal/repository"
)

type repo struct {
	db *gorm.DB
}

// New returns a Repository backed by gorm.
func New(db *gorm.DB) repository.Repository {
	return &repo{db: db}
}

func (r *repo) GetChatSettings(ctx context.Context, chatID int64) (*models.ChatSettings, error) {
	var row models.ChatSettings
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repo) UpsertChatSettings(ctx context.Context, s *models.ChatSettings) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price_threshold", "order_size", "sell_target",
			"auto_place", "interval_sec", "updated_at",
		}),
	}).Create(s).Error
}

func (r *repo) CreateOrderRecord(ctx context.Context, rec *models.OrderRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *repo) ListOrderRecords(ctx context.Context, chatID int64, limit int) ([]models.OrderRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.OrderRecord
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
