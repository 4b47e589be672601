package model

import "time"

// IDLink records the server id assigned to a locally-created record once its
// create has been acknowledged. Later intents and cached copies keyed by the
// local id are resolved through this table, including across drain cycles and
// process restarts.
type IDLink struct {
	LocalID    string    `json:"local_id" gorm:"primaryKey;size:64"`
	RemoteID   string    `json:"remote_id" gorm:"size:64;index"`
	RecordKind string    `json:"record_kind" gorm:"size:64"`
	LinkedAt   time.Time `json:"linked_at"`
}
