package req

import "encoding/json"

type EnqueueRequest struct {
	RecordKind string          `json:"record_kind" binding:"required"`
	Operation  string          `json:"operation" binding:"required"`
	TargetID   string          `json:"target_id"`
	Payload    json.RawMessage `json:"payload"`
}

type GetRecordRequest struct {
	Kind string `uri:"kind" binding:"required"`
	ID   string `uri:"id" binding:"required"`
}
