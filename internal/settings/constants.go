package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Runtime setting keys and defaults.
const (
	// SiteNameKey is the brand name shown on member screens.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is used until an admin sets SITE_NAME.
	DefaultSiteName = "Amsel Member"

	// BahtPerPointKey is how many baht of an approved receipt earn one point.
	BahtPerPointKey = "BAHT_PER_POINT"
	// DefaultBahtPerPoint is the earning rate when unset.
	DefaultBahtPerPoint = 10

	// ProfileCacheTTLSecondsKey controls how long a fetched profile is served from cache.
	ProfileCacheTTLSecondsKey = "PROFILE_CACHE_TTL_SECONDS"
	// DefaultProfileCacheTTLSeconds is five minutes.
	DefaultProfileCacheTTLSeconds = 300

	// ReceiptMaxImageMBKey caps receipt image uploads.
	ReceiptMaxImageMBKey = "RECEIPT_MAX_IMAGE_MB"
	// DefaultReceiptMaxImageMB is the upload cap when unset.
	DefaultReceiptMaxImageMB = 10
)

// ErrUnknownKey is returned for keys outside the catalogue.
var ErrUnknownKey = errors.New("settings: unknown key")

// Kind is the JSON type a setting holds.
type Kind string

// Setting kinds.
const (
	KindString Kind = "string"
	KindInt    Kind = "int"
)

// Definition describes one admin-editable setting.
type Definition struct {
	Key         string `json:"key"`
	Kind        Kind   `json:"kind"`
	Default     any    `json:"default"`
	Min         int64  `json:"min,omitempty"`
	Max         int64  `json:"max,omitempty"`
	Description string `json:"description"`
}

// Definitions lists every runtime setting.
var Definitions = []Definition{
	{Key: SiteNameKey, Kind: KindString, Default: DefaultSiteName, Description: "Brand name shown on member screens"},
	{Key: BahtPerPointKey, Kind: KindInt, Default: DefaultBahtPerPoint, Min: 1, Max: 100000, Description: "Baht spent per point earned"},
	{Key: ProfileCacheTTLSecondsKey, Kind: KindInt, Default: DefaultProfileCacheTTLSeconds, Min: 0, Max: 3600, Description: "Seconds a member profile is served from cache (0 disables)"},
	{Key: ReceiptMaxImageMBKey, Kind: KindInt, Default: DefaultReceiptMaxImageMB, Min: 1, Max: 50, Description: "Largest accepted receipt image in MB"},
}

// Lookup returns the definition for key.
func Lookup(key string) (Definition, bool) {
	key = strings.TrimSpace(key)
	for _, def := range Definitions {
		if def.Key == key {
			return def, true
		}
	}
	return Definition{}, false
}

// Validate checks raw against the definition of key and returns the canonical JSON to store.
func Validate(key string, raw json.RawMessage) (json.RawMessage, error) {
	def, ok := Lookup(key)
	if !ok {
		return nil, ErrUnknownKey
	}
	switch def.Kind {
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("settings: %s must be a string", def.Key)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("settings: %s must not be empty", def.Key)
		}
		return json.Marshal(s)
	case KindInt:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("settings: %s must be an integer", def.Key)
		}
		v, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("settings: %s must be an integer", def.Key)
		}
		if v < def.Min || v > def.Max {
			return nil, fmt.Errorf("settings: %s must be between %d and %d", def.Key, def.Min, def.Max)
		}
		return json.Marshal(v)
	}
	return nil, ErrUnknownKey
}
