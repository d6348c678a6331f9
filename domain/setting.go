package domain

import "time"

// Setting is a single keyed configuration value persisted in the database.
type Setting struct {
	Key       string    `json:"key" gorm:"primaryKey"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

const SettingAlertThreshold = "alert_threshold"
