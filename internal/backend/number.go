package backend

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// flexNumber decodes a numeric field sent as a number, a quoted number, a
// comma-grouped string, "" or null. Anything unparseable is treated as absent.
type flexNumber struct {
	text  string // Canonical decimal text, empty when absent.
	value float64
}

// UnmarshalJSON never fails so one odd field cannot drop the whole payload.
func (n *flexNumber) UnmarshalJSON(data []byte) error {
	*n = flexNumber{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if errUnquote := json.Unmarshal(data, &s); errUnquote != nil {
			return nil
		}
		raw = s
	}
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return nil
	}
	v, errParse := strconv.ParseFloat(raw, 64)
	if errParse != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n.text = raw
	n.value = v
	return nil
}

// Present reports whether the field carried a usable number.
func (n flexNumber) Present() bool { return n.text != "" }

// Int64 floors the value; absent yields 0.
func (n flexNumber) Int64() int64 {
	if !n.Present() {
		return 0
	}
	return int64(math.Floor(n.value))
}

// Float64 returns the value; absent yields 0.
func (n flexNumber) Float64() float64 { return n.value }

// String returns the decimal text as sent, without grouping. Absent yields "".
func (n flexNumber) String() string { return n.text }
