package signal

// DefaultCapacity is the default bound of a Channel.
const DefaultCapacity = 25

// Kind selects a Channel implementation.
type Kind string

// Available channel kinds.
const (
	// KindAuto picks the implementation suited to the build platform.
	KindAuto Kind = "auto"
	// KindLockFree is the single-writer/single-reader atomic ring.
	// Valid only when the capture context cannot be re-entered.
	KindLockFree Kind = "lockfree"
	// KindMutex is the mutex-guarded variant, required when capture
	// runs on a genuine concurrent thread.
	KindMutex Kind = "mutex"
)

// Channel is a bounded buffer of pending signal records shared between
// exactly one capture context (writer) and one dispatcher (reader).
//
// TryPush must complete in bounded, allocation-free time: it may run with
// arbitrary other code interrupted. Drain atomically snapshots and clears
// all queued records; a record pushed concurrently with a drain lands in
// the next generation, never lost and never double-dispatched.
type Channel interface {
	// TryPush appends a record. It reports false when the channel is
	// full and the record was dropped.
	TryPush(Record) bool

	// Drain removes all queued records and appends them to buf in FIFO
	// order. It returns the extended buffer.
	Drain(buf []Record) []Record

	// Pending reports whether at least one record is queued. It is a
	// cheap check intended to gate Drain; a stale result only delays
	// a drain, it never mis-dispatches.
	Pending() bool

	// Cap returns the fixed capacity.
	Cap() int
}

// NewChannel creates a Channel of the given kind and capacity. A capacity
// of zero or less selects DefaultCapacity. KindAuto defers to the build
// platform.
func NewChannel(kind Kind, capacity int) Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	switch kind {
	case KindLockFree:
		return newLockFreeChannel(capacity)
	case KindMutex:
		return newMutexChannel(capacity)
	default:
		return newPlatformChannel(capacity)
	}
}
