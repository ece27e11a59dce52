package broker

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

// localBuffer holds messages published while the broker is unreachable. It
// lives in process memory only.
type localBuffer struct {
	mu       sync.Mutex
	items    []kafka.Message
	capacity int
}

func newLocalBuffer(capacity int) *localBuffer {
	return &localBuffer{capacity: capacity}
}

func (b *localBuffer) push(msg kafka.Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) >= b.capacity {
		return false
	}
	b.items = append(b.items, msg)
	return true
}

func (b *localBuffer) drain() []kafka.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.items
	b.items = nil
	return items
}

// restore puts msgs back in front of anything buffered since drain, dropping
// the newest entries past capacity.
func (b *localBuffer) restore(msgs []kafka.Message) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	merged := append(msgs, b.items...)
	dropped := 0
	if len(merged) > b.capacity {
		dropped = len(merged) - b.capacity
		merged = merged[:b.capacity]
	}
	b.items = merged
	return dropped
}

func (b *localBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
