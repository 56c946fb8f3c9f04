package settings

import (
	"context"
	stderrors "errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/postersmith/postersmith/pkg/errors"
)

// Repository persists settings and presets through GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates the repository and migrates its tables.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&SettingRecord{}, &PresetRecord{}); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInternal, "migrating settings tables", err)
	}
	return &Repository{db: db}, nil
}

// LoadSettings returns all persisted setting rows as a key→value map.
func (r *Repository) LoadSettings(ctx context.Context) (map[string]string, error) {
	var rows []SettingRecord
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInternal, "loading settings", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// ReplaceSettings replaces the whole settings table in one transaction so a
// failed save never leaves a partial mix of old and new values.
func (r *Repository) ReplaceSettings(ctx context.Context, kv map[string]string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&SettingRecord{}).Error; err != nil {
			return err
		}
		for key, value := range kv {
			rec := SettingRecord{
				Key:      key,
				Value:    value,
				Category: categoryOf(key),
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeInternal, "saving settings", err)
	}
	return nil
}

// ListPresets returns the presets of one template. An unknown template yields
// an empty list, not an error.
func (r *Repository) ListPresets(ctx context.Context, templateID string) ([]PresetRecord, error) {
	var rows []PresetRecord
	err := r.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("preset_id").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInternal, "loading presets", err)
	}
	return rows, nil
}

// AllPresets returns every stored preset grouped later by template.
func (r *Repository) AllPresets(ctx context.Context) ([]PresetRecord, error) {
	var rows []PresetRecord
	err := r.db.WithContext(ctx).
		Order("template_id, preset_id").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInternal, "loading presets", err)
	}
	return rows, nil
}

// UpsertPreset creates or overwrites the preset keyed by
// (template_id, preset_id).
func (r *Repository) UpsertPreset(ctx context.Context, rec PresetRecord) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "template_id"}, {Name: "preset_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "options_json", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return errors.Wrap(errors.ErrorTypeInternal, "saving preset", err)
	}
	return nil
}

// DeletePreset removes one preset; it reports whether anything was deleted.
func (r *Repository) DeletePreset(ctx context.Context, templateID, presetID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("template_id = ? AND preset_id = ?", templateID, presetID).
		Delete(&PresetRecord{})
	if res.Error != nil {
		if stderrors.Is(res.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, errors.Wrap(errors.ErrorTypeInternal, "deleting preset", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func categoryOf(key string) string {
	if i := strings.IndexByte(key, '.'); i > 0 {
		return key[:i]
	}
	return ""
}
