package settings

import "time"

// SettingRecord is the normalized key-value row backing Settings. Keys are
// dotted paths such as "plex.url"; values are JSON-encoded leaves.
type SettingRecord struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value;not null"`
	Category  string    `gorm:"column:category;index"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName overrides the table name.
func (SettingRecord) TableName() string {
	return "settings"
}

// PresetRecord stores one preset; (template_id, preset_id) is the upsert key.
type PresetRecord struct {
	TemplateID  string    `gorm:"column:template_id;not null;uniqueIndex:idx_presets_template_preset"`
	PresetID    string    `gorm:"column:preset_id;not null;uniqueIndex:idx_presets_template_preset"`
	Name        string    `gorm:"column:name;not null"`
	OptionsJSON string    `gorm:"column:options_json;not null"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName overrides the table name.
func (PresetRecord) TableName() string {
	return "presets"
}
