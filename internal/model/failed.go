package model

import (
	"time"

	"github.com/ECGOPS/OPSOMS-sub004/pkg/constraints"
)

// FailedIntent preserves a mutation dropped from the queue after exhausting
// its retries, so the operator can inspect, discard, or re-queue it.
type FailedIntent struct {
	ID         string                `json:"id" gorm:"primaryKey;size:64"`
	RecordKind string                `json:"record_kind" gorm:"size:64;index"`
	Operation  constraints.Operation `json:"operation" gorm:"size:16"`
	TargetID   string                `json:"target_id" gorm:"size:64"`
	Payload    string                `json:"payload" gorm:"type:text"`
	EnqueuedAt time.Time             `json:"enqueued_at"`
	FailedAt   time.Time             `json:"failed_at" gorm:"index"`
	Attempts   int                   `json:"attempts"`
	LastError  string                `json:"last_error" gorm:"type:text"`
	Operator   string                `json:"operator" gorm:"size:64"`
}
