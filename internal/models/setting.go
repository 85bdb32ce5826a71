package models

import (
	"encoding/json"
	"time"
)

// Setting is one admin-editable runtime value.
type Setting struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"`                      // Setting key, e.g. BAHT_PER_POINT.
	Value     json.RawMessage `gorm:"type:jsonb"`                                        // JSON-encoded value.
	UpdatedBy *uint64         `gorm:"index"`                                             // Admin who last changed it.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}
