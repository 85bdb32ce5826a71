package receipt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amsel-crm/memberportal/internal/db"
	"github.com/amsel-crm/memberportal/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter narrows the approvals queue.
type Filter struct {
	Status    models.ReceiptStatus // Empty means any status.
	Query     string               // Member name or receipt number.
	Duplicate *bool
	Page      int
	PageSize  int
}

// Page is one page of receipts.
type Page struct {
	Items    []models.Receipt
	Total    int64
	Page     int
	PageSize int
}

func (f Filter) bounds() (page, size int) {
	page, size = f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

// List returns receipts matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	page, size := f.bounds()
	q := s.db.WithContext(ctx).Model(&models.Receipt{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Duplicate != nil {
		q = q.Where("duplicate = ?", *f.Duplicate)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		pattern := db.ContainsPattern(s.db, term)
		q = q.Where(
			fmt.Sprintf("(%s OR %s OR %s)",
				db.CaseInsensitiveLikeExpr(s.db, "member_name"),
				db.CaseInsensitiveLikeExpr(s.db, "receipt_no"),
				db.CaseInsensitiveLikeExpr(s.db, "shop")),
			pattern, pattern, pattern,
		)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, fmt.Errorf("receipt: count: %w", errCount)
	}
	var items []models.Receipt
	if errFind := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&items).Error; errFind != nil {
		return nil, fmt.Errorf("receipt: list: %w", errFind)
	}
	return &Page{Items: items, Total: total, Page: page, PageSize: size}, nil
}

// Approve marks a pending receipt approved and records the points award.
// Flagged duplicates are only approved with force.
func (s *Service) Approve(ctx context.Context, id, adminID uint64, force bool) (*models.Receipt, *models.PointsAward, error) {
	var (
		rec   models.Receipt
		award models.PointsAward
	)
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&rec, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return errFind
		}
		if rec.Status != models.ReceiptPending {
			return ErrNotPending
		}
		if rec.Duplicate && !force {
			return ErrDuplicate
		}

		rate := s.bahtPerPoint()
		points := PointsFor(rec.TotalAmount, rate)
		now := s.now()
		res := tx.Model(&models.Receipt{}).
			Where("id = ? AND status = ?", rec.ID, models.ReceiptPending).
			Updates(map[string]any{
				"status":         models.ReceiptApproved,
				"points_awarded": points,
				"reviewed_by":    adminID,
				"reviewed_at":    now,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotPending
		}

		award = models.PointsAward{
			ReceiptID:    rec.ID,
			LineUserID:   rec.LineUserID,
			Amount:       rec.TotalAmount,
			BahtPerPoint: rate,
			Points:       points,
			AdminID:      adminID,
			CreatedAt:    now,
		}
		if errCreate := tx.Create(&award).Error; errCreate != nil {
			return errCreate
		}

		rec.Status = models.ReceiptApproved
		rec.PointsAwarded = points
		rec.ReviewedBy = &adminID
		rec.ReviewedAt = &now
		rec.UpdatedAt = now
		return nil
	})
	if errTx != nil {
		if isReviewError(errTx) {
			return nil, nil, errTx
		}
		return nil, nil, fmt.Errorf("receipt: approve %d: %w", id, errTx)
	}

	log.WithFields(log.Fields{
		"receipt": rec.PublicID,
		"admin":   adminID,
		"points":  award.Points,
		"forced":  force && rec.Duplicate,
	}).Info("receipt approved")
	return &rec, &award, nil
}

// Reject marks a pending receipt rejected with a member-facing reason.
func (s *Service) Reject(ctx context.Context, id, adminID uint64, reason string) (*models.Receipt, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var rec models.Receipt
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&rec, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return errFind
		}
		if rec.Status != models.ReceiptPending {
			return ErrNotPending
		}
		now := s.now()
		res := tx.Model(&models.Receipt{}).
			Where("id = ? AND status = ?", rec.ID, models.ReceiptPending).
			Updates(map[string]any{
				"status":        models.ReceiptRejected,
				"reject_reason": reason,
				"reviewed_by":   adminID,
				"reviewed_at":   now,
				"updated_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotPending
		}
		rec.Status = models.ReceiptRejected
		rec.RejectReason = reason
		rec.ReviewedBy = &adminID
		rec.ReviewedAt = &now
		rec.UpdatedAt = now
		return nil
	})
	if errTx != nil {
		if isReviewError(errTx) {
			return nil, errTx
		}
		return nil, fmt.Errorf("receipt: reject %d: %w", id, errTx)
	}

	log.WithFields(log.Fields{"receipt": rec.PublicID, "admin": adminID}).Info("receipt rejected")
	return &rec, nil
}

func isReviewError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotPending) || errors.Is(err, ErrDuplicate)
}

// Stats summarizes the back office for the dashboard.
type Stats struct {
	TotalMembers      int64            `json:"total_members"`
	PendingReceipts   int64            `json:"pending_receipts"`
	DuplicatesPending int64            `json:"duplicates_pending"`
	ApprovedReceipts  int64            `json:"approved_receipts"`
	RejectedReceipts  int64            `json:"rejected_receipts"`
	PointsAwarded     int64            `json:"points_awarded"`
	TierDistribution  map[string]int64 `json:"tier_distribution"`
}

// Stats computes dashboard counters.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	conn := s.db.WithContext(ctx)
	out := &Stats{TierDistribution: map[string]int64{}}

	if errCount := conn.Model(&models.MemberSnapshot{}).Count(&out.TotalMembers).Error; errCount != nil {
		return nil, fmt.Errorf("receipt: count members: %w", errCount)
	}

	var byStatus []struct {
		Status    models.ReceiptStatus
		Duplicate bool
		Count     int64
	}
	if errGroup := conn.Model(&models.Receipt{}).
		Select("status, duplicate, COUNT(*) AS count").
		Group("status, duplicate").
		Scan(&byStatus).Error; errGroup != nil {
		return nil, fmt.Errorf("receipt: count receipts: %w", errGroup)
	}
	for _, row := range byStatus {
		switch row.Status {
		case models.ReceiptPending:
			out.PendingReceipts += row.Count
			if row.Duplicate {
				out.DuplicatesPending += row.Count
			}
		case models.ReceiptApproved:
			out.ApprovedReceipts += row.Count
		case models.ReceiptRejected:
			out.RejectedReceipts += row.Count
		}
	}

	var points struct{ Total int64 }
	if errSum := conn.Model(&models.PointsAward{}).
		Select("COALESCE(SUM(points), 0) AS total").
		Scan(&points).Error; errSum != nil {
		return nil, fmt.Errorf("receipt: sum points: %w", errSum)
	}
	out.PointsAwarded = points.Total

	var tiers []struct {
		Tier  string
		Count int64
	}
	if errTier := conn.Model(&models.MemberSnapshot{}).
		Select("tier, COUNT(*) AS count").
		Group("tier").
		Scan(&tiers).Error; errTier != nil {
		return nil, fmt.Errorf("receipt: tier distribution: %w", errTier)
	}
	for _, row := range tiers {
		out.TierDistribution[row.Tier] = row.Count
	}
	return out, nil
}
