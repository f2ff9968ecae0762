package models

import "time"

// ConfigSet represents one named connection profile
type ConfigSet struct {
	ID      uint   `gorm:"primaryKey"`
	Name    string `gorm:"type:text;not null;uniqueIndex"` // Empty name is the default configuration
	Label   string `gorm:"type:text"`
	Current bool   `gorm:"column:is_current;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	Properties []ConfigProperty `gorm:"foreignKey:ConfigSetID;constraint:OnDelete:CASCADE"`
}

// ConfigProperty is a single key/value pair of a ConfigSet
type ConfigProperty struct {
	ID          uint   `gorm:"primaryKey"`
	ConfigSetID uint   `gorm:"not null;index:idx_config_property"`
	Key         string `gorm:"type:text;not null;index:idx_config_property"`
	Value       string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
