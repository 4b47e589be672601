package v1

import (
	"encoding/json"

	"github.com/ECGOPS/OPSOMS-sub004/pkg/constraints"
)

// Message is one sync lifecycle event pushed to stream subscribers.
type Message struct {
	Seq        int64                 `json:"seq"`
	RecordKind string                `json:"record_kind"`
	Operation  constraints.Operation `json:"operation"`
	IntentID   string                `json:"intent_id"`
	TargetID   string                `json:"target_id"`
	RemoteID   string                `json:"remote_id,omitempty"`
	Status     string                `json:"status"`
	Record     json.RawMessage       `json:"record,omitempty"`
	Error      string                `json:"error,omitempty"`
	Type       string                `json:"type,omitempty"` // "ping" for heartbeats
}

// Record is a domain document as held by the central store or the local cache.
type Record struct {
	Kind      string          `json:"kind"`
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt int64           `json:"updated_at,omitempty"`
}

func (r *Record) ToJSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		panic("record serialization failed: " + err.Error())
	}
	return string(b)
}
