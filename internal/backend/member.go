package backend

import (
	"strings"
	"time"

	"github.com/amsel-crm/memberportal/internal/loyalty"
)

// Member is the canonical member profile. Fields the backend may omit are pointers.
type Member struct {
	LineUserID        string       `json:"line_user_id,omitempty"`
	Title             string       `json:"title"`
	FirstName         string       `json:"first_name"`
	LastName          string       `json:"last_name"`
	Email             *string      `json:"email,omitempty"`
	PhoneNumber       *string      `json:"phone_number,omitempty"`
	BirthDate         *string      `json:"birth_date,omitempty"` // YYYY-MM-DD, Bangkok calendar day.
	Points            int64        `json:"points"`
	AccumulatedPoints *int64       `json:"accumulated_points,omitempty"`
	Tier              loyalty.Tier `json:"backend_tier,omitempty"`
}

// rawMember accepts every field spelling seen from the backend.
type rawMember struct {
	LineUserID        string     `json:"lineUserId"`
	Title             string     `json:"title"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Email             *string    `json:"email"`
	Phone             *string    `json:"phone"`
	PhoneNumber       *string    `json:"phoneNumber"`
	Birthdate         *string    `json:"birthdate"`
	BirthDate         *string    `json:"birthDate"`
	Points            flexNumber `json:"points"`
	AccumulatedPoints flexNumber `json:"accumulatedPoints"`
	Tier              string     `json:"tier"`
}

func (r rawMember) normalize() Member {
	m := Member{
		LineUserID: strings.TrimSpace(r.LineUserID),
		Title:      strings.TrimSpace(r.Title),
		FirstName:  strings.TrimSpace(r.FirstName),
		LastName:   strings.TrimSpace(r.LastName),
		Email:      nonEmpty(r.Email),
		Points:     r.Points.Int64(),
	}
	if phone := firstNonEmpty(r.PhoneNumber, r.Phone); phone != nil {
		digits := loyalty.DigitsOnly(*phone)
		m.PhoneNumber = &digits
	}
	if birth := firstNonEmpty(r.BirthDate, r.Birthdate); birth != nil {
		if day, ok := calendarDay(*birth); ok {
			m.BirthDate = &day
		}
	}
	if r.AccumulatedPoints.Present() {
		acc := r.AccumulatedPoints.Int64()
		m.AccumulatedPoints = &acc
	}
	if tier, ok := loyalty.ParseTier(r.Tier); ok {
		m.Tier = tier
	}
	return m
}

// FullName is the display name used across member screens.
func (m Member) FullName(fallback string) string {
	return loyalty.FullName(m.Title, m.FirstName, m.LastName, fallback)
}

// Standing derives the member's tier. Accumulated points win; without them the
// backend tier is honored and points are clamped into its band; otherwise points are used.
// The clamp only drives tier and progress; AccumulatedUsed keeps the reported balance.
func (m Member) Standing() (loyalty.Standing, error) {
	standing, err := loyalty.Classify(m.RankingPoints())
	if err != nil {
		return standing, err
	}
	if m.AccumulatedPoints == nil {
		standing.AccumulatedUsed = max(m.Points, 0)
	}
	return standing, nil
}

// RankingPoints is the value tier bands and cards are computed from.
func (m Member) RankingPoints() int64 {
	if m.AccumulatedPoints != nil {
		return *m.AccumulatedPoints
	}
	points := max(m.Points, 0)
	if idx := m.Tier.Rank(); idx >= 0 {
		band := loyalty.Tiers[idx]
		if points < band.Min {
			points = band.Min
		}
		if !band.Unbounded() && points >= band.Max {
			points = band.Max - 1
		}
	}
	return points
}

// TierPoints is the accumulated balance as reported, falling back to points.
func (m Member) TierPoints() int64 {
	if m.AccumulatedPoints != nil {
		return *m.AccumulatedPoints
	}
	return m.Points
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func firstNonEmpty(values ...*string) *string {
	for _, v := range values {
		if out := nonEmpty(v); out != nil {
			return out
		}
	}
	return nil
}

// calendarDay accepts "2006-01-02" or an RFC 3339 timestamp and returns the Bangkok date.
func calendarDay(raw string) (string, bool) {
	if t, err := time.ParseInLocation("2006-01-02", raw, loyalty.Bangkok()); err == nil {
		return t.Format("2006-01-02"), true
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.In(loyalty.Bangkok()).Format("2006-01-02"), true
	}
	return "", false
}

// ProfileUpdate is the editable subset sent on PUT /api/users/profile.
type ProfileUpdate struct {
	Title     string `json:"title"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Birthdate string `json:"birthdate"`
}

// Registration is the body of POST /api/users/register.
type Registration struct {
	Title       string  `json:"title"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
	BirthDate   *string `json:"birthDate"` // RFC 3339.
}

// RegistrationFromForm builds the register payload; empty optional fields become null.
func RegistrationFromForm(form loyalty.ProfileForm) (Registration, error) {
	form = form.Normalize()
	reg := Registration{
		Title:     form.Title,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     nonEmpty(&form.Email),
	}
	reg.PhoneNumber = nonEmpty(&form.Phone)
	birth, err := loyalty.ParseBirthDate(form.BirthDate)
	if err != nil {
		return Registration{}, err
	}
	if birth != nil {
		iso := birth.UTC().Format(time.RFC3339)
		reg.BirthDate = &iso
	}
	return reg, nil
}

// ProfileUpdateFromForm builds the edit payload with the phone reduced to digits.
func ProfileUpdateFromForm(form loyalty.ProfileForm) ProfileUpdate {
	form = form.Normalize()
	return ProfileUpdate{
		Title:     form.Title,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Phone:     form.Phone,
		Birthdate: form.BirthDate,
	}
}
