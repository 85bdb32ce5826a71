// Package members keeps the CRM copy of member profiles seen through the portal.
package members

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amsel-crm/memberportal/internal/backend"
	"github.com/amsel-crm/memberportal/internal/db"
	"github.com/amsel-crm/memberportal/internal/loyalty"
	"github.com/amsel-crm/memberportal/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record upserts the snapshot for member as observed at now.
func Record(ctx context.Context, conn *gorm.DB, displayName string, member *backend.Member, now time.Time) error {
	if member == nil || strings.TrimSpace(member.LineUserID) == "" {
		return nil
	}
	tier := member.Tier
	if standing, errStanding := member.Standing(); errStanding == nil {
		tier = standing.Tier
	}
	if !tier.Valid() {
		tier = loyalty.TierSilver
	}
	snap := models.MemberSnapshot{
		LineUserID:        member.LineUserID,
		DisplayName:       strings.TrimSpace(displayName),
		FullName:          member.FullName(""),
		Email:             deref(member.Email),
		Phone:             loyalty.DigitsOnly(deref(member.PhoneNumber)),
		Tier:              string(tier),
		Points:            member.Points,
		AccumulatedPoints: member.TierPoints(),
		LastSeenAt:        now,
	}
	errUpsert := conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "line_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "full_name", "email", "phone", "tier",
			"points", "accumulated_points", "last_seen_at", "updated_at",
		}),
	}).Create(&snap).Error
	if errUpsert != nil {
		return fmt.Errorf("members: record %s: %w", member.LineUserID, errUpsert)
	}
	return nil
}

// Filter narrows the CRM list.
type Filter struct {
	Query    string
	Tier     loyalty.Tier
	Page     int
	PageSize int
}

// Page is one page of snapshots.
type Page struct {
	Items    []models.MemberSnapshot
	Total    int64
	Page     int
	PageSize int
}

// List returns snapshots, most recently seen first.
func List(ctx context.Context, conn *gorm.DB, f Filter) (*Page, error) {
	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	q := conn.WithContext(ctx).Model(&models.MemberSnapshot{})
	if f.Tier != "" {
		q = q.Where("tier = ?", string(f.Tier))
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		pattern := db.ContainsPattern(conn, term)
		q = q.Where(
			fmt.Sprintf("(%s OR %s OR %s OR %s)",
				db.CaseInsensitiveLikeExpr(conn, "full_name"),
				db.CaseInsensitiveLikeExpr(conn, "display_name"),
				db.CaseInsensitiveLikeExpr(conn, "email"),
				db.CaseInsensitiveLikeExpr(conn, "phone")),
			pattern, pattern, pattern, pattern,
		)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, fmt.Errorf("members: count: %w", errCount)
	}
	var items []models.MemberSnapshot
	if errFind := q.Order("last_seen_at DESC").Offset((page - 1) * size).Limit(size).Find(&items).Error; errFind != nil {
		return nil, fmt.Errorf("members: list: %w", errFind)
	}
	return &Page{Items: items, Total: total, Page: page, PageSize: size}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
