package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/amsel-crm/memberportal/internal/backend"
	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/amsel-crm/memberportal/internal/loyalty"
	"github.com/gin-gonic/gin"
)

const (
	defaultCouponLimit = 20
	maxCouponLimit     = 100
)

// couponView is a coupon with its member-facing labels.
type couponView struct {
	backend.Coupon
	DiscountLabel  string `json:"discount_label"`
	ConditionLabel string `json:"condition_label"`
	ExpiresLabel   string `json:"expires_label"`
	ExpiresSoon    bool   `json:"expires_soon"`
}

// CouponHandler lists the member's usable coupons.
type CouponHandler struct {
	backend MemberBackend
	now     func() time.Time
}

// NewCouponHandler constructs a CouponHandler.
func NewCouponHandler(backend MemberBackend, now func() time.Time) *CouponHandler {
	if now == nil {
		now = time.Now
	}
	return &CouponHandler{backend: backend, now: now}
}

// List returns one backend page, keeping only coupons usable right now.
func (h *CouponHandler) List(c *gin.Context) {
	page := queryInt(c, "page", 1, 1, 1<<20)
	limit := queryInt(c, "limit", defaultCouponLimit, 1, maxCouponLimit)

	result, errList := h.backend.ListCoupons(c.Request.Context(), c.GetString(ContextAccessToken), page, limit)
	if errList != nil {
		respondBackendError(c, errList, apphttp.CodeNotRegistered)
		return
	}

	now := h.now()
	out := make([]couponView, 0, len(result.Coupons))
	for _, coupon := range result.Coupons {
		if !loyalty.Usable(coupon.IsActive, coupon.ValidFrom, coupon.ValidUntil, now) {
			continue
		}
		out = append(out, couponView{
			Coupon:         coupon,
			DiscountLabel:  loyalty.FormatDiscount(coupon.Type, coupon.Discount),
			ConditionLabel: loyalty.FormatCondition(coupon.MinPurchaseAmount),
			ExpiresLabel:   expiresLabel(coupon.ValidUntil, now),
			ExpiresSoon:    loyalty.ExpiresSoon(coupon.ValidUntil, now),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"coupons":     out,
		"page":        result.Page,
		"limit":       result.Limit,
		"total":       result.Total,
		"total_pages": result.TotalPages,
	})
}

// expiresLabel renders the expiry date, or a same-day notice.
func expiresLabel(validUntil *time.Time, now time.Time) string {
	if validUntil == nil {
		return "ไม่มีวันหมดอายุ"
	}
	loc := loyalty.Bangkok()
	if validUntil.In(loc).Format("2006-01-02") == now.In(loc).Format("2006-01-02") {
		return "หมดเขตวันนี้"
	}
	return loyalty.FormatThaiDate(*validUntil)
}

// queryInt parses an integer query parameter, clamping it into [lo, hi].
func queryInt(c *gin.Context, key string, fallback, lo, hi int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
