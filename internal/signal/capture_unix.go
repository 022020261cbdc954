//go:build !windows

package signal

import (
	"os"
	ossignal "os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// Capture installs OS signal dispositions and forwards deliveries to the
// dispatcher. On POSIX the asynchronous half is a single forwarder
// goroutine fed by os/signal, which makes it the sole channel writer.
type Capture struct {
	d  *Dispatcher
	ch chan os.Signal

	mu      sync.Mutex
	watched map[int]struct{}
	closed  bool

	// Default SIGINT disposition: when no script handler is registered
	// the first SIGINT interrupts the running chunk and restores the
	// OS default, so a second one terminates the process.
	onInterrupt   func()
	interruptByDf atomic.Bool

	done chan struct{}
}

// NewCapture creates a Capture feeding d. onInterrupt, if non-nil, is
// invoked from the forwarder when SIGINT arrives under the default
// disposition; it must be async-safe (set a flag, nothing more).
func NewCapture(d *Dispatcher, onInterrupt func()) *Capture {
	c := &Capture{
		d:           d,
		ch:          make(chan os.Signal, DefaultCapacity),
		watched:     make(map[int]struct{}),
		onInterrupt: onInterrupt,
		done:        make(chan struct{}),
	}
	if onInterrupt != nil {
		c.armDefaultInterrupt()
	}
	go c.forward()
	return c
}

// forward is the capture context: it translates os.Signal values into
// records and returns to waiting. It never calls into the interpreter.
func (c *Capture) forward() {
	for {
		select {
		case s := <-c.ch:
			sig, ok := s.(syscall.Signal)
			if !ok {
				continue
			}
			n := int(sig)
			if n == SIGINT && c.interruptByDf.Load() {
				c.interruptByDf.Store(false)
				ossignal.Reset(syscall.SIGINT)
				c.onInterrupt()
				continue
			}
			c.d.Deliver(Record{Signum: n, Origin: OriginNative})
		case <-c.done:
			return
		}
	}
}

// armDefaultInterrupt routes SIGINT to the interrupt path.
func (c *Capture) armDefaultInterrupt() {
	c.interruptByDf.Store(true)
	ossignal.Notify(c.ch, syscall.SIGINT)
}

// Subscribe installs the capture disposition for signum. Subsequent
// deliveries of signum are queued for dispatch.
func (c *Capture) Subscribe(signum int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCaptureClosed
	}
	if !ValidSignum(signum) {
		return ErrInvalidSignal
	}
	if signum == SIGKILL || signum == int(unix.SIGSTOP) {
		return &DispositionError{Op: "handle", Signum: signum, Err: ErrUncatchable}
	}
	if signum == SIGINT {
		c.interruptByDf.Store(false)
	}
	ossignal.Notify(c.ch, syscall.Signal(signum))
	c.watched[signum] = struct{}{}
	return nil
}

// Ignore sets the OS disposition for signum to "ignore".
func (c *Capture) Ignore(signum int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCaptureClosed
	}
	if !ValidSignum(signum) {
		return ErrInvalidSignal
	}
	if signum == SIGKILL || signum == int(unix.SIGSTOP) {
		return &DispositionError{Op: "ignore", Signum: signum, Err: ErrUncatchable}
	}
	if signum == SIGINT {
		c.interruptByDf.Store(false)
	}
	ossignal.Ignore(syscall.Signal(signum))
	delete(c.watched, signum)
	return nil
}

// Reset restores the default disposition for signum. For SIGINT the
// "default" is the interpreter interrupt described on NewCapture.
// Resetting an unsubscribed signal succeeds.
func (c *Capture) Reset(signum int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCaptureClosed
	}
	if !ValidSignum(signum) {
		return ErrInvalidSignal
	}
	ossignal.Reset(syscall.Signal(signum))
	delete(c.watched, signum)
	if signum == SIGINT && c.onInterrupt != nil {
		c.armDefaultInterrupt()
	}
	return nil
}

// Raise synchronously delivers signum to the current process.
func (c *Capture) Raise(signum int) error {
	if !ValidSignum(signum) {
		return ErrInvalidSignal
	}
	return unix.Kill(unix.Getpid(), syscall.Signal(signum))
}

// Watched returns the signal numbers with an installed capture
// disposition, for diagnostics.
func (c *Capture) Watched() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.watched))
	for n := range c.watched {
		out = append(out, n)
	}
	return out
}

// Close stops forwarding and detaches from os/signal. Dispositions
// already installed are reset to their OS defaults.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	ossignal.Stop(c.ch)
	for n := range c.watched {
		ossignal.Reset(syscall.Signal(n))
		delete(c.watched, n)
	}
	close(c.done)
	return nil
}
