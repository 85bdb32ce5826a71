package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amsel-crm/memberportal/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RefreshDBConfigSnapshot reloads every row of the settings table into memory.
// Call it at startup; accessors return defaults until the first refresh.
func RefreshDBConfigSnapshot(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}

	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return fmt.Errorf("settings: load: %w", errFind)
	}

	values := make(map[string]json.RawMessage, len(rows))
	var newest time.Time
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = row.Value
		if row.UpdatedAt.After(newest) {
			newest = row.UpdatedAt
		}
	}

	StoreDBConfig(newest, values)
	return nil
}

// Save validates and upserts one setting, then refreshes the snapshot.
func Save(ctx context.Context, db *gorm.DB, key string, raw json.RawMessage, adminID uint64) (json.RawMessage, error) {
	if db == nil {
		return nil, errors.New("settings: nil db")
	}
	key = strings.TrimSpace(key)
	canonical, errValidate := Validate(key, raw)
	if errValidate != nil {
		return nil, errValidate
	}

	row := models.Setting{Key: key, Value: canonical, UpdatedAt: time.Now().UTC()}
	if adminID != 0 {
		row.UpdatedBy = &adminID
	}
	if errSave := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(&row).Error; errSave != nil {
		return nil, fmt.Errorf("settings: save %s: %w", key, errSave)
	}

	if errRefresh := RefreshDBConfigSnapshot(ctx, db); errRefresh != nil {
		return nil, errRefresh
	}
	return canonical, nil
}
