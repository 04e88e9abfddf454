package db

import (
	"fmt"

	"github.com/skylith/reoffer/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all persisted models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if err := conn.AutoMigrate(
		&models.Offer{},
		&models.AuditEvent{},
	); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}
