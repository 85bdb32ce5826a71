// Package permissions is the catalogue of admin permission keys.
package permissions

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gorm.io/datatypes"
)

// Definition describes one guarded admin route.
type Definition struct {
	Key    string `json:"key"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Label  string `json:"label"`
	Module string `json:"module"`
}

const prefix = "/v0/admin"

var definitions = []Definition{
	def("GET", "/permissions", "List permissions", "Admins"),
	def("GET", "/admins", "List admins", "Admins"),
	def("POST", "/admins", "Create admin", "Admins"),
	def("PUT", "/admins/:id", "Update admin", "Admins"),

	def("GET", "/dashboard", "View dashboard", "Dashboard"),

	def("GET", "/receipts", "List receipts", "Receipts"),
	def("GET", "/receipts/:id", "View receipt", "Receipts"),
	def("GET", "/receipts/:id/image", "View receipt image", "Receipts"),
	def("POST", "/receipts/:id/approve", "Approve receipt", "Receipts"),
	def("POST", "/receipts/:id/reject", "Reject receipt", "Receipts"),

	def("GET", "/members", "List members", "Members"),

	def("GET", "/settings", "View settings", "Settings"),
	def("PUT", "/settings/:key", "Update setting", "Settings"),
}

func def(method, path, label, module string) Definition {
	full := prefix + path
	return Definition{Key: Key(method, full), Method: method, Path: full, Label: label, Module: module}
}

// Key builds the "METHOD /path" permission key for a gin route pattern.
func Key(method, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

// Definitions returns a copy of the catalogue.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// DefinitionMap indexes the catalogue by key.
func DefinitionMap() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, d := range definitions {
		out[d.Key] = d
	}
	return out
}

// ParsePermissions decodes a stored permission list, ignoring malformed data.
func ParsePermissions(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return []string{}
	}
	return NormalizePermissions(list)
}

// NormalizePermissions trims, dedupes and sorts keys.
func NormalizePermissions(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, item := range list {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// ValidatePermissions rejects keys missing from the catalogue.
func ValidatePermissions(list []string) error {
	known := DefinitionMap()
	for _, item := range list {
		if _, ok := known[item]; !ok {
			return fmt.Errorf("permissions: unknown key %q", item)
		}
	}
	return nil
}

// MarshalPermissions encodes a permission list for storage.
func MarshalPermissions(list []string) ([]byte, error) {
	if list == nil {
		list = []string{}
	}
	return json.Marshal(list)
}

// HasPermission reports whether key is granted.
func HasPermission(granted []string, key string) bool {
	for _, item := range granted {
		if item == key {
			return true
		}
	}
	return false
}
