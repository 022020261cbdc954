package luart

import (
	"fmt"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultCadence is the default number of steps between safe-point hook
// invocations.
const DefaultCadence = 2000

// hook is one registered safe-point callback.
type hook struct {
	fn      func()
	every   int
	left    int
	removed bool
}

// Runtime wraps a gopher-lua state with safe-point hooks and cooperative
// interruption.
type Runtime struct {
	L *lua.LState

	mu     sync.Mutex
	closed bool

	hooks []*hook

	// interrupted is the only field touched from other goroutines.
	interrupted  atomic.Bool
	sawInterrupt bool
}

// Option configures a Runtime.
type Option func(*options)

type options struct {
	skipStdLibs bool
}

// WithoutStdLibs creates the state without opening the Lua standard
// libraries; callers open what they need.
func WithoutStdLibs() Option {
	return func(o *options) {
		o.skipStdLibs = true
	}
}

// NewRuntime creates a Runtime owning a fresh Lua state.
func NewRuntime(opts ...Option) *Runtime {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Runtime{
		L: lua.NewState(lua.Options{SkipOpenLibs: o.skipStdLibs}),
	}
}

// AddHook registers a safe-point callback invoked at chunk boundaries
// and after every `every` steps. An every of zero or less selects
// DefaultCadence. It returns an id for SetHookEvery/RemoveHook.
// Hooks are independent: registering one never displaces another.
func (r *Runtime) AddHook(fn func(), every int) int {
	if every <= 0 {
		every = DefaultCadence
	}
	r.hooks = append(r.hooks, &hook{fn: fn, every: every, left: every})
	return len(r.hooks) - 1
}

// SetHookEvery reconfigures the cadence of a registered hook. An every
// of zero or less resets to DefaultCadence.
func (r *Runtime) SetHookEvery(id, every int) {
	if id < 0 || id >= len(r.hooks) || r.hooks[id].removed {
		return
	}
	if every <= 0 {
		every = DefaultCadence
	}
	r.hooks[id].every = every
	r.hooks[id].left = every
}

// HookEvery returns the cadence of a registered hook, or zero for an
// unknown id.
func (r *Runtime) HookEvery(id int) int {
	if id < 0 || id >= len(r.hooks) || r.hooks[id].removed {
		return 0
	}
	return r.hooks[id].every
}

// RemoveHook unregisters a hook.
func (r *Runtime) RemoveHook(id int) {
	if id < 0 || id >= len(r.hooks) {
		return
	}
	r.hooks[id].removed = true
}

// Step reports n abstract execution steps from a Lua-to-Go boundary
// crossing. Due hooks fire here; a pending interrupt cancels the running
// chunk by raising a Lua error. Must be called from inside a protected
// Lua call.
func (r *Runtime) Step(n int) {
	for _, h := range r.hooks {
		if h.removed {
			continue
		}
		h.left -= n
		if h.left <= 0 {
			h.left = h.every
			h.fn()
		}
	}
	r.checkInterrupt()
}

// Checkpoint fires every hook immediately. Called between chunks, where
// re-entrant execution is always permitted.
func (r *Runtime) Checkpoint() {
	for _, h := range r.hooks {
		if h.removed {
			continue
		}
		h.left = h.every
		h.fn()
	}
}

// Safepoint fires every hook and honors a pending interrupt. Blocking
// native calls invoke it while they wait, so dispatch latency does not
// degrade to the step cadence. Must be called from inside a protected
// Lua call.
func (r *Runtime) Safepoint() {
	r.Checkpoint()
	r.checkInterrupt()
}

// checkInterrupt cancels the running chunk when an interrupt is pending.
func (r *Runtime) checkInterrupt() {
	if r.interrupted.CompareAndSwap(true, false) {
		r.sawInterrupt = true
		r.L.RaiseError("interrupted!")
	}
}

// Interrupt requests cancellation of the running chunk at the next safe
// point. Safe to call from any goroutine.
func (r *Runtime) Interrupt() {
	r.interrupted.Store(true)
}

// DoString executes a Lua chunk. Hooks run before and after the chunk;
// ErrInterrupted is returned when the chunk was cancelled.
func (r *Runtime) DoString(code string) error {
	return r.run(func() error { return r.L.DoString(code) })
}

// DoFile executes a Lua file, with the same safe-point behavior as
// DoString.
func (r *Runtime) DoFile(path string) error {
	return r.run(func() error { return r.L.DoFile(path) })
}

func (r *Runtime) run(exec func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRuntimeClosed
	}
	if r.interrupted.CompareAndSwap(true, false) {
		return ErrInterrupted
	}

	r.sawInterrupt = false
	r.Checkpoint()
	err := r.protect(exec)
	if r.sawInterrupt {
		r.sawInterrupt = false
		return ErrInterrupted
	}
	if err != nil {
		return err
	}
	r.Checkpoint()
	return nil
}

// protect runs fn with panic recovery, matching the guarantees of a
// protected Lua call.
func (r *Runtime) protect(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("lua panic: %v", p)
		}
	}()
	return fn()
}

// CallFunction invokes a Lua function with the given arguments,
// discarding results. It does not lock: it is meant to be called from
// hook context on the interpreter goroutine, where the runtime lock is
// already held by the surrounding chunk.
func (r *Runtime) CallFunction(fn *lua.LFunction, args ...lua.LValue) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("lua panic: %v", p)
		}
	}()
	r.L.Push(fn)
	for _, a := range args {
		r.L.Push(a)
	}
	return r.L.PCall(len(args), 0, nil)
}

// PreloadModule registers a module loader under name, available to Lua
// through require(name).
func (r *Runtime) PreloadModule(name string, loader lua.LGFunction) {
	r.L.PreloadModule(name, loader)
}

// KeepAliveTable creates a table stored under a hidden global so values
// placed in it survive Lua garbage collection for the life of the state.
func (r *Runtime) KeepAliveTable(name string) *lua.LTable {
	t := r.L.NewTable()
	r.L.SetGlobal(name, t)
	return t
}

// IsClosed reports whether the runtime has been closed.
func (r *Runtime) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close releases the Lua state. Subsequent operations return
// ErrRuntimeClosed.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.L.Close()
	r.closed = true
	return nil
}
