package model

import (
	"time"

	"github.com/ECGOPS/OPSOMS-sub004/pkg/constraints"
)

// PendingIntent is one queued mutation that has not yet been confirmed as
// applied to the central store. RecordKind and Payload are opaque to the
// queue; only RetryCount changes after creation.
type PendingIntent struct {
	ID         string                `json:"id" gorm:"primaryKey;size:64"`
	RecordKind string                `json:"record_kind" gorm:"size:64;index"`
	Operation  constraints.Operation `json:"operation" gorm:"size:16"`
	TargetID   string                `json:"target_id" gorm:"size:64;index"`
	Payload    string                `json:"payload" gorm:"type:text"`
	EnqueuedAt time.Time             `json:"enqueued_at" gorm:"index"`
	RetryCount int                   `json:"retry_count" gorm:"default:0"`
	TraceID    string                `json:"trace_id" gorm:"size:64"`
	Operator   string                `json:"operator" gorm:"size:64"`
}

// WithRetry returns a copy with the retry counter advanced. Stored intents are
// never mutated in place.
func (p PendingIntent) WithRetry() PendingIntent {
	p.RetryCount++
	return p
}
