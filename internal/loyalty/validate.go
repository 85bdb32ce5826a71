package loyalty

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	phonePattern    = regexp.MustCompile(`^0[6-9][0-9]{8}$`)
	nonDigitPattern = regexp.MustCompile(`\D`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Titles accepted on the profile form.
var Titles = []string{"นาย", "นาง", "นางสาว"}

// birthDateLayout is the form date format (HTML date input).
const birthDateLayout = "2006-01-02"

// DigitsOnly strips every non-digit character.
func DigitsOnly(raw string) string {
	return nonDigitPattern.ReplaceAllString(raw, "")
}

// ValidPhone reports whether raw is a Thai mobile number: 10 digits starting with 06-09.
// Separators such as dashes and spaces are ignored.
func ValidPhone(raw string) bool {
	return phonePattern.MatchString(DigitsOnly(raw))
}

// ValidEmail applies the same loose shape check as the member form.
func ValidEmail(raw string) bool {
	return emailPattern.MatchString(raw)
}

// ValidationErrors maps form fields to a member-facing message.
type ValidationErrors map[string]string

// Error implements error with a stable field order.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// ProfileForm is the editable member profile as submitted by a form.
type ProfileForm struct {
	Title     string `json:"title"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phoneNumber"`
	BirthDate string `json:"birthDate"`
}

// Normalize trims every field and reduces the phone number to digits.
func (f ProfileForm) Normalize() ProfileForm {
	return ProfileForm{
		Title:     strings.TrimSpace(f.Title),
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Email:     strings.TrimSpace(f.Email),
		Phone:     DigitsOnly(f.Phone),
		BirthDate: strings.TrimSpace(f.BirthDate),
	}
}

// ValidationMode selects which fields are mandatory.
type ValidationMode int

const (
	// ModeEdit requires every field, title included, as on the edit-profile screen.
	ModeEdit ValidationMode = iota
	// ModeRegister leaves title, email, phone and birth date optional but still checks their shape.
	ModeRegister
)

// Validate checks the form against the rules of the member screens. now decides "today".
func (f ProfileForm) Validate(mode ValidationMode, now time.Time) ValidationErrors {
	f = f.Normalize()
	errs := ValidationErrors{}
	strict := mode == ModeEdit

	switch {
	case f.Title == "" && strict:
		errs["title"] = "กรุณาเลือกคำนำหน้า"
	case f.Title != "" && !validTitle(f.Title):
		errs["title"] = "คำนำหน้าไม่ถูกต้อง"
	}
	if f.FirstName == "" {
		errs["firstName"] = "กรุณากรอกชื่อจริง"
	}
	if f.LastName == "" {
		errs["lastName"] = "กรุณากรอกนามสกุล"
	}

	switch {
	case f.Email == "" && strict:
		errs["email"] = "กรุณากรอกอีเมล"
	case f.Email != "" && !ValidEmail(f.Email):
		errs["email"] = "รูปแบบอีเมลไม่ถูกต้อง"
	}

	switch {
	case f.Phone == "" && strict:
		errs["phoneNumber"] = "กรุณากรอกเบอร์โทรศัพท์"
	case f.Phone != "" && !ValidPhone(f.Phone):
		errs["phoneNumber"] = "เบอร์โทรศัพท์ต้องเป็น 10 หลัก เริ่มต้นด้วย 06-09"
	}

	switch {
	case f.BirthDate == "" && strict:
		errs["birthDate"] = "กรุณาเลือกวันเกิด"
	case f.BirthDate != "":
		birth, err := time.ParseInLocation(birthDateLayout, f.BirthDate, bangkok)
		if err != nil {
			errs["birthDate"] = "รูปแบบวันเกิดไม่ถูกต้อง"
			break
		}
		today := now.In(bangkok).Format(birthDateLayout)
		if birth.Format(birthDateLayout) > today {
			errs["birthDate"] = "วันเกิดต้องไม่เกินวันปัจจุบัน"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ParseBirthDate parses the form date in Bangkok time. Empty input yields nil.
func ParseBirthDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(birthDateLayout, raw, bangkok)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func validTitle(title string) bool {
	for _, candidate := range Titles {
		if candidate == title {
			return true
		}
	}
	return false
}
