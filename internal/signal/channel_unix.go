//go:build !windows

package signal

// On POSIX platforms capture is the single os/signal forwarder goroutine,
// so the SPSC lock-free ring is safe.
func newPlatformChannel(capacity int) Channel {
	return newLockFreeChannel(capacity)
}
