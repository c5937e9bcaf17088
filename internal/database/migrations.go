package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
)

// Models lists every table managed by AutoMigrate.
func Models() []any {
	return []any{
		&models.ServiceRequest{},
		&models.RequestMessage{},
		&models.Notification{},
		&models.BusinessClaim{},
		&models.RequestReadState{},
		&models.AuditLog{},
		&models.CacheEntry{},
	}
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
