//go:build windows

package signal

// On Windows the console control handler runs on an OS-spawned thread that
// can overlap both the os/signal forwarder and a drain, so a real lock is
// required.
func newPlatformChannel(capacity int) Channel {
	return newMutexChannel(capacity)
}
