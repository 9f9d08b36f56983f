package repository

import (
	"context"

	"polyscout/internal/models"
)

// Repository is the persistence surface the services depend on.
type Repository interface {
	// GetChatSettings returns the stored settings row for a chat, or
	// (nil, nil) when the chat never saved anything.
	GetChatSettings(ctx context.Context, chatID int64) (*models.ChatSettings, error)
	// UpsertChatSettings inserts or updates the row keyed by ChatID.
	UpsertChatSettings(ctx context.Context, s *models.ChatSettings) error

	// CreateOrderRecord journals one order submission attempt.
	CreateOrderRecord(ctx context.Context, rec *models.OrderRecord) error
	// ListOrderRecords returns the most recent records for a chat,
	// newest first.
	ListOrderRecords(ctx context.Context, chatID int64, limit int) ([]models.OrderRecord, error)
}
