//go:build windows

package signal

import (
	"errors"
	"os"
	ossignal "os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Console control event codes (wincon.h).
const (
	ctrlCEvent        = 0
	ctrlBreakEvent    = 1
	ctrlCloseEvent    = 2
	ctrlLogoffEvent   = 5
	ctrlShutdownEvent = 6
)

var (
	kernel32              = syscall.NewLazyDLL("kernel32.dll")
	procSetConsoleCtrlHdl = kernel32.NewProc("SetConsoleCtrlHandler")
	procGenerateCtrlEvent = kernel32.NewProc("GenerateConsoleCtrlEvent")
)

// consoleCallback is created once: syscall.NewCallback slots are a finite
// process resource and can never be released.
var (
	consoleCallbackOnce sync.Once
	consoleCallback     uintptr
	activeCapture       atomic.Pointer[Capture]
)

// signalToCtrlEvent maps a canonical signal number to the console event
// that carries it, or -1 when the signal has no console analogue.
func signalToCtrlEvent(signum int) int {
	switch signum {
	case SIGINT:
		return ctrlCEvent
	case SIGBREAK, SIGTERM:
		return ctrlBreakEvent
	default:
		return -1
	}
}

// ctrlEventToSignal translates a console event code to the canonical
// signal number scripts observe.
func ctrlEventToSignal(event uintptr) int {
	switch event {
	case ctrlCEvent:
		return SIGINT
	case ctrlBreakEvent:
		return SIGBREAK
	case ctrlCloseEvent, ctrlLogoffEvent, ctrlShutdownEvent:
		return SIGTERM
	default:
		return 0
	}
}

// Capture installs OS signal dispositions and forwards deliveries to the
// dispatcher. On Windows console-borne signals arrive through a shared
// console control handler running on an OS-spawned thread; the handler is
// installed once and reference-counted through a bitmask of subscribed
// event kinds. Everything else falls back to os/signal.
type Capture struct {
	d  *Dispatcher
	ch chan os.Signal

	mu        sync.Mutex
	watched   map[int]struct{}
	eventMask int // bit n set = console event n subscribed
	installed bool
	closed    bool

	onInterrupt   func()
	interruptByDf atomic.Bool

	done chan struct{}
}

// NewCapture creates a Capture feeding d. onInterrupt, if non-nil, is
// invoked when Ctrl+C arrives under the default disposition; it must be
// async-safe (set a flag, nothing more).
func NewCapture(d *Dispatcher, onInterrupt func()) *Capture {
	c := &Capture{
		d:           d,
		ch:          make(chan os.Signal, DefaultCapacity),
		watched:     make(map[int]struct{}),
		onInterrupt: onInterrupt,
		done:        make(chan struct{}),
	}
	activeCapture.Store(c)
	if onInterrupt != nil {
		c.interruptByDf.Store(true)
		ossignal.Notify(c.ch, os.Interrupt)
	}
	go c.forward()
	return c
}

// forward handles the os/signal fallback path.
func (c *Capture) forward() {
	for {
		select {
		case s := <-c.ch:
			n := SIGINT
			if sig, ok := s.(syscall.Signal); ok {
				n = int(sig)
			}
			if n == SIGINT && c.interruptByDf.Load() {
				c.interruptByDf.Store(false)
				ossignal.Reset(os.Interrupt)
				c.onInterrupt()
				continue
			}
			c.d.Deliver(Record{Signum: n, Origin: OriginNative})
		case <-c.done:
			return
		}
	}
}

// handleConsoleEvent runs on the console handler thread. It records the
// event and returns; the channel's mutex is the only synchronization it
// may take.
func (c *Capture) handleConsoleEvent(event uintptr) uintptr {
	signum := ctrlEventToSignal(event)
	if signum == 0 {
		return 0 // not handled, let the next handler run
	}
	if signum == SIGINT && c.interruptByDf.Load() {
		c.interruptByDf.Store(false)
		c.onInterrupt()
		return 1
	}
	c.mu.Lock()
	subscribed := c.eventMask&(1<<uint(event)) != 0 || event >= ctrlCloseEvent
	c.mu.Unlock()
	if !subscribed && !c.interruptByDf.Load() {
		return 0
	}
	c.d.Deliver(Record{Signum: signum, Origin: OriginConsole})
	return 1
}

// installHandler registers the shared console handler. Caller holds c.mu.
func (c *Capture) installHandler() error {
	if c.installed {
		return nil
	}
	consoleCallbackOnce.Do(func() {
		consoleCallback = syscall.NewCallback(func(event uintptr) uintptr {
			if cap := activeCapture.Load(); cap != nil {
				return cap.handleConsoleEvent(event)
			}
			return 0
		})
	})
	ret, _, err := procSetConsoleCtrlHdl.Call(consoleCallback, 1)
	if ret == 0 {
		return err
	}
	c.installed = true
	return nil
}

// removeHandler unregisters the shared console handler. Caller holds c.mu.
func (c *Capture) removeHandler() error {
	if !c.installed {
		return nil
	}
	ret, _, err := procSetConsoleCtrlHdl.Call(consoleCallback, 0)
	if ret == 0 {
		return err
	}
	c.installed = false
	return nil
}

// Subscribe installs the capture disposition for signum. Console-capable
// signals increment the event bitmask and install the shared handler on
// the first subscription; others fall back to os/signal.
func (c *Capture) Subscribe(signum int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCaptureClosed
	}
	if !ValidSignum(signum) {
		return ErrInvalidSignal
	}
	if signum == SIGKILL {
		return &DispositionError{Op: "handle", Signum: signum, Err: ErrUncatchable}
	}
	if signum == SIGINT {
		c.interruptByDf.Store(false)
	}
	if event := signalToCtrlEvent(signum); event >= 0 {
		if c.eventMask == 0 {
			if err := c.installHandler(); err != nil {
				return &DispositionError{Op: "handle", Signum: signum, Err: err}
			}
		}
		c.eventMask |= 1 << uint(event)
	} else {
		ossignal.Notify(c.ch, syscall.Signal(signum))
	}
	c.watched[signum] = struct{}{}
	return nil
}

// Ignore sets the disposition for signum to "ignore": console events for
// it are swallowed, nothing is queued.
func (c *Capture) Ignore(signum int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCaptureClosed
	}
	if !ValidSignum(signum) {
		return ErrInvalidSignal
	}
	if signum == SIGKILL {
		return &DispositionError{Op: "ignore", Signum: signum, Err: ErrUncatchable}
	}
	if signum == SIGINT {
		c.interruptByDf.Store(false)
	}
	if err := c.dropSubscription(signum, "ignore"); err != nil {
		return err
	}
	ossignal.Ignore(syscall.Signal(signum))
	return nil
}

// Reset restores the default disposition for signum.
func (c *Capture) Reset(signum int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCaptureClosed
	}
	if !ValidSignum(signum) {
		return ErrInvalidSignal
	}
	if err := c.dropSubscription(signum, "reset"); err != nil {
		return err
	}
	ossignal.Reset(syscall.Signal(signum))
	if signum == SIGINT && c.onInterrupt != nil {
		c.interruptByDf.Store(true)
		ossignal.Notify(c.ch, os.Interrupt)
	}
	return nil
}

// dropSubscription clears the event bit for signum and uninstalls the
// shared handler when no subscriptions remain. Caller holds c.mu.
func (c *Capture) dropSubscription(signum int, op string) error {
	delete(c.watched, signum)
	event := signalToCtrlEvent(signum)
	if event < 0 || c.eventMask == 0 {
		return nil
	}
	c.eventMask &^= 1 << uint(event)
	if c.eventMask == 0 {
		if err := c.removeHandler(); err != nil {
			return &DispositionError{Op: op, Signum: signum, Err: err}
		}
	}
	return nil
}

// Raise synchronously delivers signum to the current process. Console
// events are generated through the OS; signals without a console
// analogue are queued directly, which is as close as Windows gets.
func (c *Capture) Raise(signum int) error {
	if !ValidSignum(signum) {
		return ErrInvalidSignal
	}
	switch signum {
	case SIGINT:
		return generateCtrlEvent(ctrlCEvent)
	case SIGBREAK:
		return generateCtrlEvent(ctrlBreakEvent)
	case SIGKILL:
		return errors.New("cannot raise SIGKILL on windows")
	default:
		c.d.Deliver(Record{Signum: signum, Origin: OriginNative})
		return nil
	}
}

func generateCtrlEvent(event uintptr) error {
	ret, _, err := procGenerateCtrlEvent.Call(event, 0)
	if ret == 0 {
		return err
	}
	return nil
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

// Close stops forwarding, removes the console handler and detaches from
// os/signal.
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
	c.eventMask = 0
	_ = c.removeHandler()
	activeCapture.CompareAndSwap(c, nil)
	close(c.done)
	return nil
}
