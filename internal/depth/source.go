package depth

import (
	"sync"
	"sync/atomic"
)

// Source is the frame gate consulted once per tick. IsFrameNew reports
// whether a frame has arrived since the last Frame call; when it returns
// false the tick does no further work.
type Source interface {
	IsFrameNew() bool
	Frame() *Frame
}

// Mailbox is a single-slot latest-frame Source. A driver publishes from its
// own goroutine; frames that arrive before the previous one was consumed
// overwrite it and are counted as dropped. Frames are never queued.
type Mailbox struct {
	mu    sync.Mutex
	frame *Frame
	fresh bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Publish replaces the pending frame. It never blocks on the consumer.
// The caller must not modify the frame after publishing it.
func (m *Mailbox) Publish(f *Frame) {
	if f == nil {
		return
	}
	m.mu.Lock()
	if m.fresh {
		m.dropped.Add(1)
	}
	m.frame = f
	m.fresh = true
	m.mu.Unlock()
	m.published.Add(1)
}

// IsFrameNew reports whether an unconsumed frame is pending.
func (m *Mailbox) IsFrameNew() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fresh
}

// Frame consumes and returns the most recent frame. It returns the last
// frame again (still marked consumed) when nothing new arrived, and nil
// before the first publish.
func (m *Mailbox) Frame() *Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fresh = false
	return m.frame
}

// MailboxStats is a point-in-time copy of the mailbox counters.
type MailboxStats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// Stats returns the publish and drop counters.
func (m *Mailbox) Stats() MailboxStats {
	return MailboxStats{
		Published: m.published.Load(),
		Dropped:   m.dropped.Load(),
	}
}
