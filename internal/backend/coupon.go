package backend

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/amsel-crm/memberportal/internal/loyalty"
)

// Coupon is the canonical coupon.
type Coupon struct {
	ID                string             `json:"id"`
	Code              string             `json:"code"`
	Description       string             `json:"description,omitempty"`
	Type              loyalty.CouponType `json:"type"`
	Discount          string             `json:"discount"`
	MinPurchaseAmount float64            `json:"min_purchase_amount"`
	ValidFrom         *time.Time         `json:"valid_from,omitempty"`
	ValidUntil        *time.Time         `json:"valid_until,omitempty"`
	IsActive          bool               `json:"is_active"`
}

// CouponPage is one page of GET /api/coupons.
type CouponPage struct {
	Coupons    []Coupon `json:"coupons"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"total_pages"`
}

type rawCoupon struct {
	ID                json.RawMessage `json:"id"`
	Code              string          `json:"code"`
	Description       string          `json:"description"`
	Type              string          `json:"type"`
	Discount          flexNumber      `json:"discount"`
	MinPurchaseAmount flexNumber      `json:"minPurchaseAmount"`
	ValidFrom         *string         `json:"validFrom"`
	ValidUntil        *string         `json:"validUntil"`
	IsActive          *bool           `json:"isActive"`
}

type rawCouponPage struct {
	Coupons    []rawCoupon `json:"coupons"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"totalPages"`
}

func (r rawCoupon) normalize() Coupon {
	c := Coupon{
		ID:                rawID(r.ID),
		Code:              strings.TrimSpace(r.Code),
		Description:       strings.TrimSpace(r.Description),
		Type:              loyalty.CouponType(strings.ToUpper(strings.TrimSpace(r.Type))),
		Discount:          r.Discount.String(),
		MinPurchaseAmount: r.MinPurchaseAmount.Float64(),
		ValidFrom:         parseTimestamp(r.ValidFrom),
		ValidUntil:        parseTimestamp(r.ValidUntil),
		IsActive:          r.IsActive == nil || *r.IsActive,
	}
	if c.Discount == "" {
		c.Discount = "0"
	}
	return c
}

func (r rawCouponPage) normalize() CouponPage {
	page := CouponPage{
		Coupons:    make([]Coupon, 0, len(r.Coupons)),
		Total:      r.Total,
		Page:       r.Page,
		Limit:      r.Limit,
		TotalPages: r.TotalPages,
	}
	for _, c := range r.Coupons {
		page.Coupons = append(page.Coupons, c.normalize())
	}
	return page
}

func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func parseTimestamp(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	v := strings.TrimSpace(*raw)
	if v == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return &t
	}
	if t, err := time.ParseInLocation("2006-01-02", v, loyalty.Bangkok()); err == nil {
		return &t
	}
	return nil
}
