package models

import "time"

// TransferRecord stores the outcome of one upload, download or delete batch
type TransferRecord struct {
	ID        string `gorm:"primaryKey;type:text"`
	Operation string `gorm:"type:text;not null;index"`
	Profile   string `gorm:"type:text"`

	StartedAt time.Time `gorm:"index"`
	RuntimeMs int64

	Transferred     int `gorm:"default:0"`
	Failed          int `gorm:"default:0"`
	PartiallyFailed int `gorm:"default:0"`
	Ignored         int `gorm:"default:0"`

	CreatedAt time.Time

	// Relationships
	Entries []TransferEntry `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE"`
}

// TransferEntry is the disposition of a single path within a TransferRecord
type TransferEntry struct {
	ID       uint   `gorm:"primaryKey"`
	RecordID string `gorm:"type:text;not null;index"`
	Path     string `gorm:"type:text;not null"`
	Outcome  string `gorm:"type:text;not null"` // "transferred", "failed", "partially_failed", "ignored"
	Reason   string `gorm:"type:text"`
}
