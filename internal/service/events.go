package service

import (
	"sync/atomic"

	"github.com/ECGOPS/OPSOMS-sub004/internal/buffer"
	v1 "github.com/ECGOPS/OPSOMS-sub004/pkg/api/v1"
)

// EventBus assigns each sync event a monotonically increasing sequence,
// records it in the replay buffer, and hands it to the hub. It is the one
// notification channel between the queue machinery and the UI.
type EventBus struct {
	hub    *Hub
	replay *buffer.ReplayBuffer
	seq    atomic.Int64
}

func NewEventBus(hub *Hub, replay *buffer.ReplayBuffer) *EventBus {
	return &EventBus{hub: hub, replay: replay}
}

func (b *EventBus) Publish(msg v1.Message) int64 {
	msg.Seq = b.seq.Add(1)
	b.replay.Add(msg)
	if b.hub != nil {
		b.hub.Broadcast <- msg
	}
	return msg.Seq
}

// GetCompensation returns events missed since lastSeq, or ok=false when the
// client is too far behind and must resnapshot.
func (b *EventBus) GetCompensation(lastSeq int64) ([]v1.Message, bool) {
	return b.replay.GetSince(lastSeq)
}
