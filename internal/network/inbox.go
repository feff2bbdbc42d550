package network

import (
	"sync"

	"github.com/Faultbox/midgard-world/internal/network/packets"
)

// Inbox queues decoded messages from network goroutines until the
// simulation drains them at a fixed-update boundary.
type Inbox struct {
	mu    sync.Mutex
	queue []packets.Message
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{}
}

// Push appends messages in order.
func (i *Inbox) Push(msgs ...packets.Message) {
	i.mu.Lock()
	i.queue = append(i.queue, msgs...)
	i.mu.Unlock()
}

// Drain returns everything queued so far and empties the inbox.
func (i *Inbox) Drain() []packets.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.queue
	i.queue = nil
	return out
}

// Len returns the number of queued messages.
func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.queue)
}
