package resp

import (
	"encoding/json"
	"time"
)

type EnqueueResponse struct {
	IntentID string `json:"intent_id"`
	TargetID string `json:"target_id"`
}

type PendingItem struct {
	ID         string    `json:"id"`
	RecordKind string    `json:"record_kind"`
	Operation  string    `json:"operation"`
	TargetID   string    `json:"target_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	RetryCount int       `json:"retry_count"`
	Operator   string    `json:"operator"`
}

type FailedItem struct {
	ID         string    `json:"id"`
	RecordKind string    `json:"record_kind"`
	Operation  string    `json:"operation"`
	TargetID   string    `json:"target_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	FailedAt   time.Time `json:"failed_at"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error"`
	Operator   string    `json:"operator"`
}

type SyncStatusResponse struct {
	Online   bool  `json:"online"`
	Draining bool  `json:"draining"`
	Pending  int64 `json:"pending"`
}

type RecordItem struct {
	Kind      string          `json:"kind"`
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	Dirty     bool            `json:"dirty"`
	UpdatedAt time.Time       `json:"updated_at"`
}
