package loyalty

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// numberPrinter groups thousands with commas, matching the member UI.
var numberPrinter = message.NewPrinter(language.English)

// thaiMonthsShort holds abbreviated Thai month names, January first.
var thaiMonthsShort = [12]string{
	"ม.ค.", "ก.พ.", "มี.ค.", "เม.ย.", "พ.ค.", "มิ.ย.",
	"ก.ค.", "ส.ค.", "ก.ย.", "ต.ค.", "พ.ย.", "ธ.ค.",
}

// buddhistEraOffset converts a Gregorian year into the Thai solar calendar.
const buddhistEraOffset = 543

// bangkok is the display timezone; falls back to a fixed +07:00 zone.
var bangkok = loadBangkok()

func loadBangkok() *time.Location {
	if loc, err := time.LoadLocation("Asia/Bangkok"); err == nil {
		return loc
	}
	return time.FixedZone("ICT", 7*60*60)
}

// Bangkok returns the location used for member-facing dates.
func Bangkok() *time.Location { return bangkok }

// FormatNumber renders an integer with thousands separators.
func FormatNumber(n int64) string {
	return numberPrinter.Sprintf("%d", n)
}

// FormatDecimal renders a decimal value with grouping and without trailing zeros.
func FormatDecimal(v float64) string {
	text := strconv.FormatFloat(v, 'f', 2, 64)
	wholeText, fracText, _ := strings.Cut(text, ".")
	whole, err := strconv.ParseInt(wholeText, 10, 64)
	if err != nil {
		return text
	}
	fracText = strings.TrimRight(fracText, "0")
	if fracText == "" {
		return FormatNumber(whole)
	}
	return FormatNumber(whole) + "." + fracText
}

// ParseDecimal parses a decimal string such as "20", "20.00" or "1,500".
func ParseDecimal(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("loyalty: empty decimal")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("loyalty: parse decimal %q: %w", raw, err)
	}
	return v, nil
}

// FormatThaiDate renders t as "30 พ.ย. 2568" in Bangkok time.
func FormatThaiDate(t time.Time) string {
	local := t.In(bangkok)
	return fmt.Sprintf("%d %s %d", local.Day(), thaiMonthsShort[local.Month()-1], local.Year()+buddhistEraOffset)
}
