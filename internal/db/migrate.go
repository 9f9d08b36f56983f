package db

import (
	"fmt"

	"gorm.io/gorm"

	"polyscout/internal/models"
)

// AutoMigrate creates or updates the tables this service owns.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&models.ChatSettings{},
		&models.OrderRecord{},
	); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}
