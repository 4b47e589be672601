package buffer

import (
	"sort"
	"sync"

	v1 "github.com/ECGOPS/OPSOMS-sub004/pkg/api/v1"
)

// ReplayBuffer keeps a ring of recent sync messages so a stream client that
// reconnects with its last seen sequence can be caught up without a full
// resync.
type ReplayBuffer struct {
	mu       sync.RWMutex
	messages []v1.Message
	size     int
	head     int
	isFull   bool
}

func NewReplayBuffer(size int) *ReplayBuffer {
	if size <= 0 {
		size = 1000
	}
	return &ReplayBuffer{
		messages: make([]v1.Message, size),
		size:     size,
	}
}

func (b *ReplayBuffer) Add(msg v1.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.messages[b.head] = msg
	b.head = (b.head + 1) % b.size
	if b.head == 0 {
		b.isFull = true
	}
}

// GetSince returns the messages with sequence greater than lastSeq. The
// second return is false when lastSeq has already been evicted and the client
// must take a fresh snapshot instead.
func (b *ReplayBuffer) GetSince(lastSeq int64) ([]v1.Message, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := b.head
	start := 0
	if b.isFull {
		count = b.size
		start = b.head
	}

	if count == 0 {
		return nil, true
	}

	oldestSeq := b.messages[start].Seq
	if lastSeq < oldestSeq-1 {
		return nil, false
	}

	// ring is ordered by insertion, logical index i maps to (start+i)%size
	idx := sort.Search(count, func(i int) bool {
		return b.messages[(start+i)%b.size].Seq > lastSeq
	})

	if idx == count {
		return nil, true
	}

	result := make([]v1.Message, 0, count-idx)
	for i := idx; i < count; i++ {
		result = append(result, b.messages[(start+i)%b.size])
	}
	return result, true
}
