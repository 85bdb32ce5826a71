package models

import (
	"time"

	"gorm.io/datatypes"
)

// Admin represents a back-office account.
type Admin struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username    string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Password    string `gorm:"type:text;not null"`             // bcrypt hash.
	DisplayName string `gorm:"type:text"`                      // Name shown on reviewed receipts.

	Active       bool `gorm:"not null;default:true"`  // Whether the admin can sign in.
	IsSuperAdmin bool `gorm:"not null;default:false"` // Grants all permissions when true.

	Permissions datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // "METHOD /path" keys.

	TOTPSecret string `gorm:"type:text"` // Confirmed TOTP secret; empty when MFA is off.

	LastLoginAt *time.Time // Last successful sign-in.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
