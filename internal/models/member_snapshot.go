package models

import "time"

// MemberSnapshot mirrors the last profile seen from the loyalty backend for the CRM screens.
type MemberSnapshot struct {
	LineUserID string `gorm:"type:varchar(64);primaryKey"` // LINE user ID.

	DisplayName string `gorm:"type:text"`        // LINE display name.
	FullName    string `gorm:"type:text;index"`  // Title, first and last name.
	Email       string `gorm:"type:text"`        // Email, when known.
	Phone       string `gorm:"type:varchar(16)"` // Digits only.

	Tier              string `gorm:"type:varchar(16);not null;default:'SILVER';index"` // Derived tier.
	Points            int64  `gorm:"not null;default:0"`                               // Redeemable balance.
	AccumulatedPoints int64  `gorm:"not null;default:0"`                               // Lifetime total.

	LastSeenAt time.Time `gorm:"not null"`                // Last profile fetch.
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"` // First seen.
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
