package db

import (
	"fmt"

	"github.com/amsel-crm/memberportal/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the service owns.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	// Rows written before permissions became NOT NULL must be filled before the column is altered.
	migrator := conn.Migrator()
	if migrator.HasTable(&models.Admin{}) && migrator.HasColumn(&models.Admin{}, "Permissions") {
		if errBackfill := conn.Exec(`UPDATE admins SET permissions = '[]' WHERE permissions IS NULL`).Error; errBackfill != nil {
			return fmt.Errorf("db: backfill admin permissions: %w", errBackfill)
		}
	}

	if errMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.Setting{},
		&models.Receipt{},
		&models.MemberSnapshot{},
		&models.PointsAward{},
	); errMigrate != nil {
		return fmt.Errorf("db: auto migrate: %w", errMigrate)
	}
	return nil
}
