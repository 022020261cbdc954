package signal

import (
	"sync"
	"sync/atomic"
)

// mutexChannel guards the buffer with a real lock. Required when the
// capture context is an OS-managed thread (the Windows console control
// handler) that can race a drain for real. The pending flag is still
// atomic so the fast path never takes the lock.
type mutexChannel struct {
	mu      sync.Mutex
	buf     []Record
	n       int
	pending atomic.Bool
}

func newMutexChannel(capacity int) *mutexChannel {
	return &mutexChannel{buf: make([]Record, capacity)}
}

func (c *mutexChannel) TryPush(r Record) bool {
	c.mu.Lock()
	if c.n == len(c.buf) {
		c.mu.Unlock()
		return false // full, drop newest
	}
	c.buf[c.n] = r
	c.n++
	c.pending.Store(true)
	c.mu.Unlock()
	return true
}

func (c *mutexChannel) Drain(buf []Record) []Record {
	c.mu.Lock()
	buf = append(buf, c.buf[:c.n]...)
	c.n = 0
	c.pending.Store(false)
	c.mu.Unlock()
	return buf
}

func (c *mutexChannel) Pending() bool {
	return c.pending.Load()
}

func (c *mutexChannel) Cap() int {
	return len(c.buf)
}
