package loyalty

import (
	"errors"
	"testing"
)

func TestClassifyThresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		points       int64
		tier         Tier
		progress     float64
		pointsToNext int64
		next         Tier
	}{
		{points: 0, tier: TierSilver, progress: 0, pointsToNext: 2000, next: TierGold},
		{points: 1999, tier: TierSilver, progress: 99.95, pointsToNext: 1, next: TierGold},
		{points: 2000, tier: TierGold, progress: 0, pointsToNext: 3000, next: TierPlatinum},
		{points: 3800, tier: TierGold, progress: 60, pointsToNext: 1200, next: TierPlatinum},
		{points: 4999, tier: TierGold, progress: 2999.0 / 3000 * 100, pointsToNext: 1, next: TierPlatinum},
		{points: 5000, tier: TierPlatinum, progress: 100},
		{points: 1000000, tier: TierPlatinum, progress: 100},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.tier), func(t *testing.T) {
			t.Parallel()
			got, errClassify := Classify(tc.points)
			if errClassify != nil {
				t.Fatalf("Classify(%d) error: %v", tc.points, errClassify)
			}
			if got.Tier != tc.tier {
				t.Fatalf("Classify(%d).Tier = %s, want %s", tc.points, got.Tier, tc.tier)
			}
			if got.PointsToNext != tc.pointsToNext {
				t.Fatalf("Classify(%d).PointsToNext = %d, want %d", tc.points, got.PointsToNext, tc.pointsToNext)
			}
			if !near(got.Progress, tc.progress) {
				t.Fatalf("Classify(%d).Progress = %v, want %v", tc.points, got.Progress, tc.progress)
			}
			if tc.next == "" {
				if got.NextTier != nil {
					t.Fatalf("Classify(%d).NextTier = %s, want nil", tc.points, *got.NextTier)
				}
				return
			}
			if got.NextTier == nil || *got.NextTier != tc.next {
				t.Fatalf("Classify(%d).NextTier = %v, want %s", tc.points, got.NextTier, tc.next)
			}
		})
	}
}

func TestClassifyProgressStaysInRange(t *testing.T) {
	t.Parallel()

	for _, points := range []int64{0, 1, 1999, 2000, 4999, 5000, 99999} {
		got, errClassify := Classify(points)
		if errClassify != nil {
			t.Fatalf("Classify(%d) error: %v", points, errClassify)
		}
		if got.Progress < 0 || got.Progress > 100 {
			t.Fatalf("Classify(%d).Progress = %v, out of [0,100]", points, got.Progress)
		}
	}
}

func TestClassifyIsMonotone(t *testing.T) {
	t.Parallel()

	prev := -1
	for points := int64(0); points <= 6000; points += 50 {
		got, errClassify := Classify(points)
		if errClassify != nil {
			t.Fatalf("Classify(%d) error: %v", points, errClassify)
		}
		rank := got.Tier.Rank()
		if rank < prev {
			t.Fatalf("tier rank decreased at %d points: %d < %d", points, rank, prev)
		}
		prev = rank
	}
}

func TestClassifyRejectsNegativePoints(t *testing.T) {
	t.Parallel()

	if _, errClassify := Classify(-1); !errors.Is(errClassify, ErrNegativePoints) {
		t.Fatalf("Classify(-1) error = %v, want ErrNegativePoints", errClassify)
	}
}

func TestParseTier(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]Tier{"gold": TierGold, " Platinum ": TierPlatinum, "SILVER": TierSilver} {
		got, ok := ParseTier(raw)
		if !ok || got != want {
			t.Fatalf("ParseTier(%q) = %s, %v; want %s", raw, got, ok, want)
		}
	}
	if _, ok := ParseTier("bronze"); ok {
		t.Fatalf("ParseTier(bronze) should fail")
	}
}

func TestCardsForGoldMember(t *testing.T) {
	t.Parallel()

	cards, errCards := Cards(3800)
	if errCards != nil {
		t.Fatalf("Cards error: %v", errCards)
	}
	if len(cards) != 3 {
		t.Fatalf("len(cards) = %d, want 3", len(cards))
	}

	if cards[0].State != CardAchieved || cards[0].BarWidth != 100 || cards[0].Message != "คุณบรรลุ Tier นี้แล้ว" {
		t.Fatalf("silver card = %+v", cards[0])
	}
	if cards[1].State != CardCurrent || cards[1].Remaining != 1200 {
		t.Fatalf("gold card = %+v", cards[1])
	}
	if cards[1].Message != "ซื้ออีก 1,200 บาท เพื่อไป Platinum" {
		t.Fatalf("gold message = %q", cards[1].Message)
	}
	if cards[2].State != CardLocked || cards[2].BarWidth != 0 || cards[2].Message != "ขาดอีก 1,200 บาท" {
		t.Fatalf("platinum card = %+v", cards[2])
	}
}

func TestCardsForSilverNamesNextTier(t *testing.T) {
	t.Parallel()

	cards, errCards := Cards(500)
	if errCards != nil {
		t.Fatalf("Cards error: %v", errCards)
	}
	if cards[0].Message != "ซื้ออีก 1,500 บาท เพื่อไป Gold" {
		t.Fatalf("silver message = %q", cards[0].Message)
	}
	if cards[2].Remaining != 4500 {
		t.Fatalf("platinum remaining = %d, want 4500", cards[2].Remaining)
	}
}

func TestCardsForTopTier(t *testing.T) {
	t.Parallel()

	cards, errCards := Cards(7200)
	if errCards != nil {
		t.Fatalf("Cards error: %v", errCards)
	}
	top := cards[len(cards)-1]
	if top.State != CardCurrent || top.BarWidth != 100 || top.Message != "ยินดีด้วย! คุณอยู่ Tier สูงสุด" {
		t.Fatalf("platinum card = %+v", top)
	}
}

func near(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
