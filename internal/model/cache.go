package model

import "time"

// CachedRecord is the device-local copy of a domain document, kept so reads
// keep working while offline. Dirty marks an optimistic local write that the
// central store has not yet confirmed.
type CachedRecord struct {
	RecordKind string    `json:"record_kind" gorm:"primaryKey;size:64"`
	RecordID   string    `json:"record_id" gorm:"primaryKey;size:64"`
	Payload    string    `json:"payload" gorm:"type:text"`
	Dirty      bool      `json:"dirty" gorm:"index"`
	UpdatedAt  time.Time `json:"updated_at"`
}
