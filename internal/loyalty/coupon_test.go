package loyalty

import (
	"testing"
	"time"
)

func TestFormatDiscount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind     CouponType
		discount string
		want     string
	}{
		{kind: CouponPercentage, discount: "20", want: "ลด 20%"},
		{kind: CouponPercentage, discount: "12.50", want: "ลด 12.5%"},
		{kind: CouponFixedAmount, discount: "100.00", want: "ลด 100 บาท"},
		{kind: CouponFixedAmount, discount: "1500", want: "ลด 1,500 บาท"},
		{kind: CouponFreeShipping, discount: "0", want: "ฟรีค่าส่ง"},
		{kind: "percentage", discount: "5", want: "ลด 5%"},
	}
	for _, tc := range cases {
		if got := FormatDiscount(tc.kind, tc.discount); got != tc.want {
			t.Fatalf("FormatDiscount(%s, %q) = %q, want %q", tc.kind, tc.discount, got, tc.want)
		}
	}
}

func TestFormatCondition(t *testing.T) {
	t.Parallel()

	if got := FormatCondition(0); got != "" {
		t.Fatalf("FormatCondition(0) = %q, want empty", got)
	}
	if got := FormatCondition(1500); got != "เมื่อซื้อครบ 1,500 บาท" {
		t.Fatalf("FormatCondition(1500) = %q", got)
	}
}

func TestExpiresSoon(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 11, 27, 12, 0, 0, 0, time.UTC)
	within := now.Add(72 * time.Hour)
	after := now.Add(72*time.Hour + time.Minute)

	if !ExpiresSoon(&within, now) {
		t.Fatalf("coupon expiring in exactly 72h should be flagged")
	}
	if ExpiresSoon(&after, now) {
		t.Fatalf("coupon expiring after 72h should not be flagged")
	}
	if ExpiresSoon(nil, now) {
		t.Fatalf("coupon without expiry should not be flagged")
	}
}

func TestUsable(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 11, 27, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if Usable(false, nil, nil, now) {
		t.Fatalf("inactive coupon should not be usable")
	}
	if !Usable(true, &past, &future, now) {
		t.Fatalf("coupon inside its window should be usable")
	}
	if Usable(true, &future, nil, now) {
		t.Fatalf("coupon not yet valid should not be usable")
	}
	if Usable(true, nil, &past, now) {
		t.Fatalf("expired coupon should not be usable")
	}
}

func TestFormatThaiDate(t *testing.T) {
	t.Parallel()

	date := time.Date(2025, 11, 30, 3, 0, 0, 0, time.UTC)
	if got := FormatThaiDate(date); got != "30 พ.ย. 2568" {
		t.Fatalf("FormatThaiDate = %q, want %q", got, "30 พ.ย. 2568")
	}
}

func TestOffers(t *testing.T) {
	t.Parallel()

	offers := Offers(450)
	if len(offers) != len(RewardCatalog) {
		t.Fatalf("len(offers) = %d, want %d", len(offers), len(RewardCatalog))
	}
	for _, offer := range offers {
		want := offer.Price <= 450
		if offer.Affordable != want {
			t.Fatalf("offer %d affordable = %v, want %v", offer.ID, offer.Affordable, want)
		}
		if !want && offer.Shortfall != offer.Price-450 {
			t.Fatalf("offer %d shortfall = %d", offer.ID, offer.Shortfall)
		}
	}
}

func TestResolveShop(t *testing.T) {
	t.Parallel()

	if got, ok := ResolveShop("ร้าน Boots", "ignored"); !ok || got != "ร้าน Boots" {
		t.Fatalf("ResolveShop(Boots) = %q, %v", got, ok)
	}
	if got, ok := ResolveShop(OtherShop, " Tops Market "); !ok || got != "Tops Market" {
		t.Fatalf("ResolveShop(other) = %q, %v", got, ok)
	}
	if _, ok := ResolveShop(OtherShop, ""); ok {
		t.Fatalf("ResolveShop(other) without name should fail")
	}
	if _, ok := ResolveShop("Unknown", ""); ok {
		t.Fatalf("ResolveShop(unknown) should fail")
	}
}
