package settings

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

// snapshot is one immutable view of the settings table.
type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var current atomic.Value // snapshot

func init() {
	current.Store(snapshot{values: map[string]json.RawMessage{}})
}

// StoreDBConfig replaces the in-memory snapshot.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		next[key] = append(json.RawMessage(nil), v...)
	}
	current.Store(snapshot{updatedAt: updatedAt.UTC(), values: next})
}

// DBConfigUpdatedAt returns the newest UpdatedAt seen in the last refresh.
func DBConfigUpdatedAt() time.Time {
	return load().updatedAt
}

// DBConfigValue returns a copy of the raw value for key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	val, ok := load().values[strings.TrimSpace(key)]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), val...), true
}

func load() snapshot {
	snap, ok := current.Load().(snapshot)
	if !ok || snap.values == nil {
		return snapshot{values: map[string]json.RawMessage{}}
	}
	return snap
}

// SiteName returns SITE_NAME or its default.
func SiteName() string {
	if raw, ok := DBConfigValue(SiteNameKey); ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return DefaultSiteName
}

// Int returns an integer setting, falling back to fallback when unset, malformed or out of range.
func Int(key string, fallback int64) int64 {
	raw, ok := DBConfigValue(key)
	if !ok {
		return fallback
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fallback
	}
	v, err := n.Int64()
	if err != nil {
		return fallback
	}
	if def, found := Lookup(key); found && def.Kind == KindInt && (v < def.Min || v > def.Max) {
		return fallback
	}
	return v
}

// BahtPerPoint returns the receipt earning rate.
func BahtPerPoint() int64 {
	return Int(BahtPerPointKey, DefaultBahtPerPoint)
}

// ProfileCacheTTL returns how long profiles stay fresh.
func ProfileCacheTTL() time.Duration {
	return time.Duration(Int(ProfileCacheTTLSecondsKey, DefaultProfileCacheTTLSeconds)) * time.Second
}

// ReceiptMaxImageBytes returns the receipt upload cap in bytes.
func ReceiptMaxImageBytes() int64 {
	return Int(ReceiptMaxImageMBKey, DefaultReceiptMaxImageMB) << 20
}

// Effective returns every defined key with its current value, defaults filled in.
func Effective() map[string]any {
	out := make(map[string]any, len(Definitions))
	for _, def := range Definitions {
		switch def.Kind {
		case KindString:
			if def.Key == SiteNameKey {
				out[def.Key] = SiteName()
				continue
			}
			out[def.Key] = def.Default
		case KindInt:
			out[def.Key] = Int(def.Key, int64(def.Default.(int)))
		}
	}
	return out
}
