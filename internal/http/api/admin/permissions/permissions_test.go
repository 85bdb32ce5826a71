package permissions

import (
	"testing"

	"gorm.io/datatypes"
)

func TestDefinitionMapIncludesReceiptReviewPermissions(t *testing.T) {
	t.Parallel()

	definitionMap := DefinitionMap()
	requiredKeys := []string{
		"GET /v0/admin/receipts",
		"POST /v0/admin/receipts/:id/approve",
		"POST /v0/admin/receipts/:id/reject",
		"PUT /v0/admin/settings/:key",
	}

	for _, key := range requiredKeys {
		key := key
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			if _, ok := definitionMap[key]; !ok {
				t.Fatalf("DefinitionMap() missing permission key %q", key)
			}
		})
	}
}

func TestDefinitionKeysAreUnique(t *testing.T) {
	t.Parallel()

	if len(DefinitionMap()) != len(Definitions()) {
		t.Fatalf("duplicate permission keys in catalogue")
	}
}

func TestParseAndNormalizePermissions(t *testing.T) {
	t.Parallel()

	got := ParsePermissions(datatypes.JSON(`[" GET /v0/admin/receipts ","GET /v0/admin/dashboard","GET /v0/admin/receipts",""]`))
	want := []string{"GET /v0/admin/dashboard", "GET /v0/admin/receipts"}
	if len(got) != len(want) {
		t.Fatalf("ParsePermissions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ParsePermissions = %v, want %v", got, want)
		}
	}

	if got := ParsePermissions(datatypes.JSON(`{"bad":true}`)); len(got) != 0 {
		t.Fatalf("malformed permissions parsed as %v", got)
	}
}

func TestValidatePermissions(t *testing.T) {
	t.Parallel()

	if errValidate := ValidatePermissions([]string{"GET /v0/admin/members"}); errValidate != nil {
		t.Fatalf("ValidatePermissions: %v", errValidate)
	}
	if errValidate := ValidatePermissions([]string{"DELETE /v0/admin/members"}); errValidate == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestHasPermission(t *testing.T) {
	t.Parallel()

	granted := []string{Key("get", "/v0/admin/members")}
	if !HasPermission(granted, "GET /v0/admin/members") {
		t.Fatalf("expected permission")
	}
	if HasPermission(granted, "GET /v0/admin/receipts") {
		t.Fatalf("unexpected permission")
	}
}
