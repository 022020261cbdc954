package signal

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
)

// Handle is an opaque stored-callback reference. The dispatcher never
// inspects it; only signal numbers cross the capture/interpreter boundary
// and only the Invoker knows how to execute a handle.
type Handle any

// Invoker executes a stored callback at a safe point. Implementations run
// on the interpreter thread; the dispatcher recovers panics and turns them
// into logged failures.
type Invoker interface {
	Invoke(h Handle, signum int, origin Origin) error
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(h Handle, signum int, origin Origin) error

// Invoke calls f.
func (f InvokerFunc) Invoke(h Handle, signum int, origin Origin) error {
	return f(h, signum, origin)
}

// Dispatcher owns the dispatch table and the drain loop. Deliver is the
// only method safe to call from a capture context; everything else must
// run on the interpreter thread.
type Dispatcher struct {
	ch      Channel
	invoker Invoker
	log     *slog.Logger

	table    map[int]Handle
	scratch  []Record
	draining bool

	dropped atomic.Uint64
}

// NewDispatcher creates a Dispatcher draining ch through invoker.
// A nil log discards diagnostics.
func NewDispatcher(ch Channel, invoker Invoker, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		ch:      ch,
		invoker: invoker,
		log:     log,
		table:   make(map[int]Handle),
		scratch: make([]Record, 0, ch.Cap()),
	}
}

// Deliver records an incoming signal. Safe to call from the capture
// context: it only touches the channel and a drop counter.
func (d *Dispatcher) Deliver(r Record) {
	if !d.ch.TryPush(r) {
		d.dropped.Add(1)
	}
}

// Dropped returns how many records were discarded because the channel
// was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Register stores the callback handle for signum. One callback per
// signal; the last registration wins.
func (d *Dispatcher) Register(signum int, h Handle) {
	d.table[signum] = h
}

// Remove deletes the stored callback for signum and reports whether one
// was registered.
func (d *Dispatcher) Remove(signum int) bool {
	_, ok := d.table[signum]
	delete(d.table, signum)
	return ok
}

// Registered reports whether signum has a stored callback.
func (d *Dispatcher) Registered(signum int) bool {
	_, ok := d.table[signum]
	return ok
}

// Snapshot returns a copy of the dispatch table. Mutating the copy does
// not affect the live table.
func (d *Dispatcher) Snapshot() map[int]Handle {
	out := make(map[int]Handle, len(d.table))
	for k, v := range d.table {
		out[k] = v
	}
	return out
}

// Pending reports whether a drain would find work. Cheap enough to call
// on every safe point.
func (d *Dispatcher) Pending() bool {
	return d.ch.Pending()
}

// Tick drains the channel and dispatches every snapshotted record in
// FIFO order. Records without a registered callback are skipped. A
// callback failure is logged and does not stop the remaining records.
// Records arriving while dispatch runs stay queued for the next tick.
func (d *Dispatcher) Tick() {
	if d.draining || !d.ch.Pending() {
		return
	}
	d.draining = true
	defer func() { d.draining = false }()

	d.scratch = d.ch.Drain(d.scratch[:0])
	for _, r := range d.scratch {
		h, ok := d.table[r.Signum]
		if !ok {
			continue
		}
		if err := d.safeInvoke(h, r); err != nil {
			d.log.Error("error calling signal handler",
				"signal", Name(r.Signum),
				"origin", r.Origin.String(),
				"error", err)
		}
	}
}

// safeInvoke runs one callback with panic recovery.
func (d *Dispatcher) safeInvoke(h Handle, r Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("signal handler panic: %v", p)
		}
	}()
	return d.invoker.Invoke(h, r.Signum, r.Origin)
}
