package settings

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/amsel-crm/memberportal/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openSettingsDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	t.Cleanup(func() { StoreDBConfig(time.Time{}, nil) })
	return conn
}

func TestAccessorsFallBackToDefaults(t *testing.T) {
	StoreDBConfig(time.Time{}, nil)

	if got := SiteName(); got != DefaultSiteName {
		t.Fatalf("SiteName = %q", got)
	}
	if got := BahtPerPoint(); got != DefaultBahtPerPoint {
		t.Fatalf("BahtPerPoint = %d", got)
	}
	if got := ProfileCacheTTL(); got != 5*time.Minute {
		t.Fatalf("ProfileCacheTTL = %v", got)
	}
	if got := ReceiptMaxImageBytes(); got != 10<<20 {
		t.Fatalf("ReceiptMaxImageBytes = %d", got)
	}
}

func TestAccessorsIgnoreOutOfRangeValues(t *testing.T) {
	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		BahtPerPointKey:           json.RawMessage(`0`),
		ProfileCacheTTLSecondsKey: json.RawMessage(`"abc"`),
	})
	t.Cleanup(func() { StoreDBConfig(time.Time{}, nil) })

	if got := BahtPerPoint(); got != DefaultBahtPerPoint {
		t.Fatalf("BahtPerPoint = %d, want default", got)
	}
	if got := ProfileCacheTTL(); got != 5*time.Minute {
		t.Fatalf("ProfileCacheTTL = %v, want default", got)
	}
}

func TestSaveValidatesAndRefreshes(t *testing.T) {
	conn := openSettingsDB(t)
	ctx := context.Background()

	if _, errSave := Save(ctx, conn, BahtPerPointKey, json.RawMessage(`25`), 1); errSave != nil {
		t.Fatalf("Save: %v", errSave)
	}
	if got := BahtPerPoint(); got != 25 {
		t.Fatalf("BahtPerPoint = %d, want 25", got)
	}

	if _, errSave := Save(ctx, conn, BahtPerPointKey, json.RawMessage(`40`), 2); errSave != nil {
		t.Fatalf("Save update: %v", errSave)
	}
	var row models.Setting
	if errFind := conn.First(&row, "key = ?", BahtPerPointKey).Error; errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	if string(row.Value) != "40" || row.UpdatedBy == nil || *row.UpdatedBy != 2 {
		t.Fatalf("row = %+v", row)
	}

	if _, errSave := Save(ctx, conn, SiteNameKey, json.RawMessage(`"  Amsel Club "`), 1); errSave != nil {
		t.Fatalf("Save site name: %v", errSave)
	}
	if got := SiteName(); got != "Amsel Club" {
		t.Fatalf("SiteName = %q", got)
	}
}

func TestSaveRejectsInvalidValues(t *testing.T) {
	conn := openSettingsDB(t)
	ctx := context.Background()

	if _, errSave := Save(ctx, conn, "NOT_A_KEY", json.RawMessage(`1`), 1); !errors.Is(errSave, ErrUnknownKey) {
		t.Fatalf("unknown key error = %v", errSave)
	}
	for _, raw := range []string{`0`, `"ten"`, `1.5`, `-3`} {
		if _, errSave := Save(ctx, conn, BahtPerPointKey, json.RawMessage(raw), 1); errSave == nil {
			t.Fatalf("Save(%s) should fail", raw)
		}
	}
	if _, errSave := Save(ctx, conn, SiteNameKey, json.RawMessage(`"   "`), 1); errSave == nil {
		t.Fatalf("blank site name should fail")
	}
}

func TestRefreshDBConfigSnapshotTracksNewestUpdate(t *testing.T) {
	conn := openSettingsDB(t)
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.Setting{
		{Key: SiteNameKey, Value: json.RawMessage(`"A"`), UpdatedAt: older},
		{Key: BahtPerPointKey, Value: json.RawMessage(`5`), UpdatedAt: newer},
	}
	if errCreate := conn.Create(&rows).Error; errCreate != nil {
		t.Fatalf("seed: %v", errCreate)
	}

	if errRefresh := RefreshDBConfigSnapshot(context.Background(), conn); errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}
	if got := BahtPerPoint(); got != 5 {
		t.Fatalf("BahtPerPoint = %d", got)
	}
	if !DBConfigUpdatedAt().Equal(newer) {
		t.Fatalf("DBConfigUpdatedAt = %v, want %v", DBConfigUpdatedAt(), newer)
	}
	effective := Effective()
	if effective[SiteNameKey] != "A" || effective[BahtPerPointKey] != int64(5) {
		t.Fatalf("Effective = %v", effective)
	}
}
