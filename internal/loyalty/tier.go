package loyalty

import (
	"errors"
	"math"
	"strings"
)

// ErrNegativePoints indicates a points value below zero.
var ErrNegativePoints = errors.New("loyalty: negative points")

// Tier is a loyalty rank derived from accumulated points.
type Tier string

// Supported tiers in ascending order.
const (
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

// unbounded marks the open upper edge of the highest band.
const unbounded int64 = -1

// Band is one tier with its inclusive lower and exclusive upper point bound.
type Band struct {
	Tier        Tier   // Tier name.
	DisplayName string // Human readable name, e.g. "Gold".
	Min         int64  // Inclusive lower bound.
	Max         int64  // Exclusive upper bound, unbounded for the top tier.
}

// Unbounded reports whether the band has no upper limit.
func (b Band) Unbounded() bool { return b.Max == unbounded }

// Contains reports whether points fall inside the band.
func (b Band) Contains(points int64) bool {
	if points < b.Min {
		return false
	}
	return b.Unbounded() || points < b.Max
}

// Tiers lists the fixed thresholds, lowest first.
var Tiers = []Band{
	{Tier: TierSilver, DisplayName: "Silver", Min: 0, Max: 2000},
	{Tier: TierGold, DisplayName: "Gold", Min: 2000, Max: 5000},
	{Tier: TierPlatinum, DisplayName: "Platinum", Min: 5000, Max: unbounded},
}

// Rank returns the position of the tier in ascending order, or -1 when unknown.
func (t Tier) Rank() int {
	for i, band := range Tiers {
		if band.Tier == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool { return t.Rank() >= 0 }

// DisplayName returns the short human name of the tier.
func (t Tier) DisplayName() string {
	if idx := t.Rank(); idx >= 0 {
		return Tiers[idx].DisplayName
	}
	return string(t)
}

// ParseTier accepts any casing ("gold", "Gold", "GOLD").
func ParseTier(raw string) (Tier, bool) {
	candidate := Tier(strings.ToUpper(strings.TrimSpace(raw)))
	if !candidate.Valid() {
		return "", false
	}
	return candidate, true
}

// Standing is the result of classifying a points balance.
type Standing struct {
	Tier            Tier    `json:"tier"`
	Progress        float64 `json:"progress"` // Percent toward the next tier, 0-100.
	PointsToNext    int64   `json:"points_to_next_tier"`
	NextTier        *Tier   `json:"next_tier,omitempty"`
	AccumulatedUsed int64   `json:"accumulated_points"`
}

// Classify maps accumulated points onto a tier and its progress.
func Classify(points int64) (Standing, error) {
	if points < 0 {
		return Standing{}, ErrNegativePoints
	}
	idx := bandIndex(points)
	band := Tiers[idx]
	out := Standing{Tier: band.Tier, AccumulatedUsed: points}
	if band.Unbounded() {
		out.Progress = 100
		return out, nil
	}
	out.Progress = progressPercent(points, band)
	out.PointsToNext = band.Max - points
	next := Tiers[idx+1].Tier
	out.NextTier = &next
	return out, nil
}

// bandIndex returns the index of the band containing points (points >= 0).
func bandIndex(points int64) int {
	for i, band := range Tiers {
		if band.Contains(points) {
			return i
		}
	}
	return len(Tiers) - 1
}

func progressPercent(points int64, band Band) float64 {
	if band.Unbounded() {
		return 100
	}
	span := float64(band.Max - band.Min)
	fraction := float64(points-band.Min) / span
	fraction = math.Max(0, math.Min(1, fraction))
	return fraction * 100
}

// CardState describes a tier card relative to the member.
type CardState string

// Card states.
const (
	CardAchieved CardState = "achieved"
	CardCurrent  CardState = "current"
	CardLocked   CardState = "locked"
)

// TierCard is the per-tier view shown on the member card carousel.
type TierCard struct {
	Tier      Tier      `json:"tier"`
	Name      string    `json:"name"`
	State     CardState `json:"state"`
	BarWidth  float64   `json:"bar_width"`
	Remaining int64     `json:"remaining"`
	Message   string    `json:"message"`
}

// Cards builds one card per tier for the given accumulated points.
func Cards(points int64) ([]TierCard, error) {
	standing, err := Classify(points)
	if err != nil {
		return nil, err
	}
	current := standing.Tier.Rank()
	cards := make([]TierCard, 0, len(Tiers))
	for i, band := range Tiers {
		card := TierCard{Tier: band.Tier, Name: band.DisplayName}
		switch {
		case i < current:
			card.State = CardAchieved
			card.BarWidth = 100
			card.Message = "คุณบรรลุ Tier นี้แล้ว"
		case i == current:
			card.State = CardCurrent
			card.BarWidth = standing.Progress
			if band.Unbounded() {
				card.Message = "ยินดีด้วย! คุณอยู่ Tier สูงสุด"
			} else {
				card.Remaining = standing.PointsToNext
				card.Message = "ซื้ออีก " + FormatNumber(card.Remaining) + " บาท เพื่อไป " + Tiers[i+1].DisplayName
			}
		default:
			card.State = CardLocked
			card.Remaining = band.Min - points
			card.Message = "ขาดอีก " + FormatNumber(card.Remaining) + " บาท"
		}
		cards = append(cards, card)
	}
	return cards, nil
}
