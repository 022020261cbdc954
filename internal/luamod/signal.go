package luamod

import (
	"log/slog"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/alis-is/eli-os-extra/internal/luart"
	"github.com/alis-is/eli-os-extra/internal/signal"
)

// handlerStoreGlobal is the hidden global keeping registered callbacks
// alive across calls. Only signal numbers ever cross the capture
// boundary; the Lua functions stay referenced here.
const handlerStoreGlobal = "_eli_signal_handlers"

// SignalModule exposes deferred signal handling to Lua as os.signal.
// It owns the process-wide dispatcher and capture and implements
// signal.Invoker: stored callbacks are invoked with
// (signal_number, from_console_event) at safe points only.
type SignalModule struct {
	rt  *luart.Runtime
	d   *signal.Dispatcher
	cap *signal.Capture
	log *slog.Logger

	store  *lua.LTable    // signum -> callback, keepalive
	ignore *lua.LUserData // the IGNORE sentinel

	hookID  int
	armed   bool
	cadence int

	wantCadence atomic.Int64
}

// NewSignalModule creates the module and its dispatcher/capture pair.
// A nil log discards diagnostics.
func NewSignalModule(rt *luart.Runtime, ch signal.Channel, log *slog.Logger) *SignalModule {
	m := &SignalModule{
		rt:      rt,
		log:     log,
		cadence: luart.DefaultCadence,
	}
	m.d = signal.NewDispatcher(ch, m, log)
	m.cap = signal.NewCapture(m.d, rt.Interrupt)
	return m
}

// Name returns the module name.
func (m *SignalModule) Name() string {
	return "os.signal"
}

// Dispatcher returns the dispatcher, for hosts that want to tick it
// outside Lua execution.
func (m *SignalModule) Dispatcher() *signal.Dispatcher {
	return m.d
}

// Install preloads the module and, when the os table exists, attaches it
// as os.signal.
func (m *SignalModule) Install() {
	L := m.rt.L
	m.store = m.rt.KeepAliveTable(handlerStoreGlobal)
	m.ignore = L.NewUserData()
	m.store.RawSetString("__ignore", m.ignore) // keep the sentinel alive

	m.rt.PreloadModule(m.Name(), m.loader)
	if osTbl, ok := L.GetGlobal("os").(*lua.LTable); ok {
		L.SetField(osTbl, "signal", m.buildTable(L))
	}
}

// Close releases OS dispositions and stops capture.
func (m *SignalModule) Close() error {
	return m.cap.Close()
}

func (m *SignalModule) loader(L *lua.LState) int {
	L.Push(m.buildTable(L))
	return 1
}

func (m *SignalModule) buildTable(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "handle", L.NewFunction(m.luaHandle))
	L.SetField(mod, "reset", L.NewFunction(m.luaReset))
	L.SetField(mod, "handlers", L.NewFunction(m.luaHandlers))
	L.SetField(mod, "raise", L.NewFunction(m.luaRaise))
	L.SetField(mod, "poll", L.NewFunction(m.luaPoll))

	L.SetField(mod, "SIGINT", lua.LNumber(signal.SIGINT))
	L.SetField(mod, "SIGKILL", lua.LNumber(signal.SIGKILL))
	L.SetField(mod, "SIGPIPE", lua.LNumber(signal.SIGPIPE))
	L.SetField(mod, "SIGTERM", lua.LNumber(signal.SIGTERM))
	L.SetField(mod, "SIGBREAK", lua.LNumber(signal.SIGBREAK))
	L.SetField(mod, "IGNORE", m.ignore)
	return mod
}

// Invoke executes a stored callback with (signum, from_console_event).
// Runs at safe points only; the dispatcher guards failures.
func (m *SignalModule) Invoke(h signal.Handle, signum int, origin signal.Origin) error {
	fn, ok := h.(*lua.LFunction)
	if !ok {
		return nil
	}
	return m.rt.CallFunction(fn,
		lua.LNumber(signum),
		lua.LBool(origin == signal.OriginConsole))
}

// SetCadence changes the safe-point cadence immediately. Call only
// while the interpreter is idle; use RequestCadence from other
// goroutines. Values of zero or less reset to the default.
func (m *SignalModule) SetCadence(interval int) {
	if interval <= 0 {
		interval = luart.DefaultCadence
	}
	m.cadence = interval
	if m.armed {
		m.rt.SetHookEvery(m.hookID, interval)
	}
}

// RequestCadence records a cadence change to be applied at the next
// safe point. Safe to call from any goroutine (config hot reload).
func (m *SignalModule) RequestCadence(interval int) {
	if interval <= 0 {
		interval = luart.DefaultCadence
	}
	m.wantCadence.Store(int64(interval))
}

// arm registers the safe-point hook on first use. Re-arming is
// idempotent; the hook belongs to this module alone.
func (m *SignalModule) arm() {
	if m.armed {
		return
	}
	m.hookID = m.rt.AddHook(m.tick, m.cadence)
	m.armed = true
}

// tick runs at each safe point: applies any pending cadence request and
// drains the queue.
func (m *SignalModule) tick() {
	if want := m.wantCadence.Swap(0); want != 0 && int(want) != m.cadence {
		m.cadence = int(want)
		m.rt.SetHookEvery(m.hookID, int(want))
	}
	m.d.Tick()
}

// handle(signum, callback | IGNORE)
//
// With a callback: installs the capture disposition, stores the callback
// (one per signal, last wins) and arms the safe-point hook. With the
// IGNORE sentinel: sets the OS disposition to ignore and removes any
// stored callback so no reference is retained. Returns nothing on
// success, (nil, message) on an OS disposition failure.
func (m *SignalModule) luaHandle(L *lua.LState) int {
	m.rt.Step(1)
	signum := L.CheckInt(1)
	arg := L.Get(2)

	if arg == lua.LValue(m.ignore) {
		if err := m.cap.Ignore(signum); err != nil {
			return pushError(L, err)
		}
		m.store.RawSetInt(signum, lua.LNil)
		m.d.Remove(signum)
		return 0
	}

	fn, ok := arg.(*lua.LFunction)
	if !ok {
		L.ArgError(2, "function or IGNORE expected")
		return 0
	}
	if err := m.cap.Subscribe(signum); err != nil {
		return pushError(L, err)
	}
	m.store.RawSetInt(signum, fn)
	m.d.Register(signum, fn)
	m.arm()
	return 0
}

// reset(signum)
//
// Restores the default OS disposition and removes the stored callback.
// Calling reset for a signal that was never handled succeeds.
func (m *SignalModule) luaReset(L *lua.LState) int {
	m.rt.Step(1)
	signum := L.CheckInt(1)

	if err := m.cap.Reset(signum); err != nil {
		return pushError(L, err)
	}
	m.store.RawSetInt(signum, lua.LNil)
	m.d.Remove(signum)
	return 0
}

// handlers() -> table
//
// Returns a copy of the signum -> callback mapping. Mutating the copy
// does not affect the registered handlers.
func (m *SignalModule) luaHandlers(L *lua.LState) int {
	m.rt.Step(1)
	out := L.NewTable()
	m.store.ForEach(func(k, v lua.LValue) {
		if _, ok := k.(lua.LNumber); ok {
			out.RawSet(k, v)
		}
	})
	L.Push(out)
	return 1
}

// raise(signum) -> bool[, message]
//
// Synchronously delivers the signal to the current process.
func (m *SignalModule) luaRaise(L *lua.LState) int {
	m.rt.Step(1)
	signum := L.CheckInt(1)

	if err := m.cap.Raise(signum); err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// poll(interval)
//
// Reconfigures the safe-point cadence. An interval of zero or less
// resets to the default.
func (m *SignalModule) luaPoll(L *lua.LState) int {
	m.rt.Step(1)
	interval := L.OptInt(1, 0)
	if interval <= 0 {
		interval = luart.DefaultCadence
	}
	m.cadence = interval
	if m.armed {
		m.rt.SetHookEvery(m.hookID, interval)
	}
	return 0
}

// pushError reports a recoverable failure in the (nil, message) pair
// convention.
func pushError(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}
