package chat

import (
	"sync"

	"github.com/tea-analyzer/client/internal/model"
)

// messageRing is a thread-safe ring that keeps the most recent messages
// up to a fixed capacity. When full, the oldest message is discarded to
// make room, so long-running sessions never grow without bound.
type messageRing struct {
	mu       sync.RWMutex
	data     []model.ChatMessage
	capacity int
}

// newMessageRing creates a ring with the given capacity. The capacity
// must be greater than 0; if not, it defaults to 1.
func newMessageRing(capacity int) *messageRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &messageRing{
		data:     make([]model.ChatMessage, 0, capacity),
		capacity: capacity,
	}
}

// append adds a message, discarding the oldest when at capacity.
func (r *messageRing) append(msg model.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.data) >= r.capacity {
		discard := len(r.data) - r.capacity + 1
		r.data = append(r.data[:0], r.data[discard:]...)
	}
	r.data = append(r.data, msg)
}

// all returns a copy of the retained messages, oldest first.
func (r *messageRing) all() []model.ChatMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.data) == 0 {
		return nil
	}
	out := make([]model.ChatMessage, len(r.data))
	copy(out, r.data)
	return out
}

// clear removes all messages.
func (r *messageRing) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = r.data[:0]
}

// length returns the current number of retained messages.
func (r *messageRing) length() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
