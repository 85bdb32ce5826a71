package models

import "time"

// PointsAward records points granted for an approved receipt.
type PointsAward struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ReceiptID  uint64 `gorm:"not null;uniqueIndex"`            // One award per receipt.
	LineUserID string `gorm:"type:varchar(64);not null;index"` // Credited member.

	Amount       float64 `gorm:"type:decimal(14,2);not null"` // Receipt total used.
	BahtPerPoint int64   `gorm:"not null"`                    // Rate at approval time.
	Points       int64   `gorm:"not null"`                    // floor(Amount / BahtPerPoint).

	AdminID   uint64    `gorm:"not null;index"`          // Approving admin.
	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Award timestamp.
}
