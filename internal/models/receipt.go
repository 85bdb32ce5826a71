package models

import (
	"time"

	"gorm.io/datatypes"
)

// ReceiptStatus is the review state of a receipt.
type ReceiptStatus string

// Receipt review states.
const (
	ReceiptPending  ReceiptStatus = "pending"
	ReceiptApproved ReceiptStatus = "approved"
	ReceiptRejected ReceiptStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ReceiptStatus) Valid() bool {
	switch s {
	case ReceiptPending, ReceiptApproved, ReceiptRejected:
		return true
	}
	return false
}

// Receipt is a member's proof of purchase awaiting or past review.
type Receipt struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`              // Primary key.
	PublicID string `gorm:"type:varchar(36);not null;uniqueIndex"` // UUID exposed to members.

	LineUserID string `gorm:"type:varchar(64);not null;index"` // Submitting member.
	MemberName string `gorm:"type:text"`                       // Name at submission time.

	Shop         string  `gorm:"type:text;not null"`                                   // Shop as chosen on the form.
	ReceiptNo    string  `gorm:"type:text;not null"`                                   // Receipt number as typed.
	ReceiptNoKey string  `gorm:"type:varchar(128);not null;index:idx_receipts_dedupe"` // Normalized number for duplicate checks.
	ShopKey      string  `gorm:"type:varchar(255);not null;index:idx_receipts_dedupe"` // Normalized shop for duplicate checks.
	TotalAmount  float64 `gorm:"type:decimal(14,2);not null"`                          // Purchase total in baht.

	ImageKey         string `gorm:"type:text;not null"`              // Object key in the image store.
	ImageSHA256      string `gorm:"type:varchar(64);not null;index"` // Content hash for duplicate checks.
	ImageContentType string `gorm:"type:varchar(64)"`                // MIME type.
	ImageSize        int64  `gorm:"not null;default:0"`              // Bytes.

	Status        ReceiptStatus `gorm:"type:varchar(16);not null;default:'pending';index"` // Review state.
	Duplicate     bool          `gorm:"not null;default:false;index"`                      // Flagged at submission.
	DuplicateOfID *uint64       `gorm:"index"`                                             // Earlier receipt it collides with.

	PointsAwarded int64  `gorm:"not null;default:0"` // Points granted on approval.
	RejectReason  string `gorm:"type:text"`          // Reason shown to the member.

	ReviewedBy *uint64    `gorm:"index"` // Admin who approved or rejected.
	ReviewedAt *time.Time // Review timestamp.

	Metadata datatypes.JSON `gorm:"type:jsonb"` // Client hints such as user agent.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Submission timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}
