package signal

import "sync/atomic"

// lockFreeChannel is a single-writer/single-reader ring. The writer owns
// tail, the reader owns head; both are monotonically increasing so a slot
// is never reused until the reader has passed it. Correct only under the
// SPSC contract; a second concurrent writer would tear the ring.
type lockFreeChannel struct {
	buf     []Record
	head    atomic.Uint64 // next slot to read, advanced only by Drain
	tail    atomic.Uint64 // next slot to write, advanced only by TryPush
	pending atomic.Bool
}

func newLockFreeChannel(capacity int) *lockFreeChannel {
	return &lockFreeChannel{buf: make([]Record, capacity)}
}

func (c *lockFreeChannel) TryPush(r Record) bool {
	t := c.tail.Load()
	h := c.head.Load()
	if t-h >= uint64(len(c.buf)) {
		return false // full, drop newest
	}
	c.buf[t%uint64(len(c.buf))] = r
	c.tail.Store(t + 1)
	c.pending.Store(true)
	return true
}

func (c *lockFreeChannel) Drain(buf []Record) []Record {
	h := c.head.Load()
	t := c.tail.Load()
	for i := h; i < t; i++ {
		buf = append(buf, c.buf[i%uint64(len(c.buf))])
	}
	c.head.Store(t)
	c.pending.Store(false)
	// A push between the tail snapshot and the flag clear must not be
	// masked; re-arm the flag for the next generation.
	if c.tail.Load() != t {
		c.pending.Store(true)
	}
	return buf
}

func (c *lockFreeChannel) Pending() bool {
	return c.pending.Load()
}

func (c *lockFreeChannel) Cap() int {
	return len(c.buf)
}
