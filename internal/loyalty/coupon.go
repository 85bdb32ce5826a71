package loyalty

import (
	"strings"
	"time"
)

// CouponType is the discount kind of a coupon.
type CouponType string

// Coupon types as sent by the backend.
const (
	CouponFixedAmount  CouponType = "FIXED_AMOUNT"
	CouponPercentage   CouponType = "PERCENTAGE"
	CouponFreeShipping CouponType = "FREE_SHIPPING"
)

// ExpiryWarningWindow is how close to validUntil a coupon is flagged as expiring soon.
const ExpiryWarningWindow = 72 * time.Hour

// FormatDiscount renders the discount headline for a coupon.
func FormatDiscount(kind CouponType, discount string) string {
	switch CouponType(strings.ToUpper(strings.TrimSpace(string(kind)))) {
	case CouponFreeShipping:
		return "ฟรีค่าส่ง"
	case CouponPercentage:
		return "ลด " + discountText(discount) + "%"
	case CouponFixedAmount:
		return "ลด " + discountText(discount) + " บาท"
	default:
		return "ลด " + discountText(discount)
	}
}

// discountText normalizes "20.00" to "20" and groups thousands; unparsable input is echoed trimmed.
func discountText(discount string) string {
	v, err := ParseDecimal(discount)
	if err != nil {
		return strings.TrimSpace(discount)
	}
	return FormatDecimal(v)
}

// FormatCondition renders the minimum-purchase condition, or "" when there is none.
func FormatCondition(minPurchaseAmount float64) string {
	if minPurchaseAmount <= 0 {
		return ""
	}
	return "เมื่อซื้อครบ " + FormatDecimal(minPurchaseAmount) + " บาท"
}

// ExpiresSoon reports whether validUntil is within the warning window from now.
func ExpiresSoon(validUntil *time.Time, now time.Time) bool {
	if validUntil == nil {
		return false
	}
	return validUntil.Sub(now) <= ExpiryWarningWindow
}

// Usable reports whether a coupon can be shown to the member at now.
func Usable(isActive bool, validFrom, validUntil *time.Time, now time.Time) bool {
	if !isActive {
		return false
	}
	if validFrom != nil && now.Before(*validFrom) {
		return false
	}
	if validUntil != nil && !now.Before(*validUntil) {
		return false
	}
	return true
}
