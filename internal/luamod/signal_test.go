package luamod

import (
	"bytes"
	"log/slog"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/alis-is/eli-os-extra/internal/luart"
	"github.com/alis-is/eli-os-extra/internal/signal"
)

func newTestModule(t *testing.T) (*luart.Runtime, *SignalModule, *bytes.Buffer) {
	t.Helper()

	rt := luart.NewRuntime()
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	m := NewSignalModule(rt, signal.NewChannel(signal.KindMutex, 8), log)
	m.Install()

	t.Cleanup(func() {
		m.Close()
		rt.Close()
	})
	return rt, m, &buf
}

// simulate queues a signal record as capture would, bypassing the OS.
func simulate(m *SignalModule, signum int, origin signal.Origin) {
	m.Dispatcher().Deliver(signal.Record{Signum: signum, Origin: origin})
}

func TestHandleRoundTrip(t *testing.T) {
	rt, m, _ := newTestModule(t)

	err := rt.DoString(`
		sig = require("os.signal")
		sig.handle(sig.SIGTERM, function(signum, from_console)
			got = signum
			console = from_console
		end)
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	simulate(m, signal.SIGTERM, signal.OriginNative)
	m.Dispatcher().Tick()

	if v := rt.L.GetGlobal("got"); v != lua.LNumber(15) {
		t.Errorf("handler got signum %v, want 15", v)
	}
	if v := rt.L.GetGlobal("console"); v != lua.LFalse {
		t.Errorf("handler got from_console %v, want false", v)
	}

	// handlers() reflects the registration.
	if err := rt.DoString(`registered = sig.handlers()[sig.SIGTERM] ~= nil`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if rt.L.GetGlobal("registered") != lua.LTrue {
		t.Error("handlers() does not contain SIGTERM after handle()")
	}
}

func TestInterruptHandlerLifecycle(t *testing.T) {
	rt, m, _ := newTestModule(t)

	err := rt.DoString(`
		sig = require("os.signal")
		count = 0
		sig.handle(sig.SIGINT, function(signum, from_console)
			count = count + 1
			last = signum
			last_console = from_console
		end)
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	simulate(m, signal.SIGINT, signal.OriginNative)
	m.Dispatcher().Tick()

	if v := rt.L.GetGlobal("count"); v != lua.LNumber(1) {
		t.Fatalf("count = %v after one tick, want 1", v)
	}
	if rt.L.GetGlobal("last") != lua.LNumber(2) || rt.L.GetGlobal("last_console") != lua.LFalse {
		t.Error("handler arguments mismatch, want (2, false)")
	}

	// After reset the callback must not fire again.
	if err := rt.DoString(`sig.reset(sig.SIGINT)`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	simulate(m, signal.SIGINT, signal.OriginNative)
	m.Dispatcher().Tick()

	if v := rt.L.GetGlobal("count"); v != lua.LNumber(1) {
		t.Errorf("count = %v after reset, want still 1", v)
	}
	if m.Dispatcher().Pending() {
		t.Error("Pending() = true after tick")
	}
}

func TestIgnoreRemovesHandler(t *testing.T) {
	rt, m, _ := newTestModule(t)

	err := rt.DoString(`
		sig = require("os.signal")
		fired = false
		sig.handle(sig.SIGTERM, function() fired = true end)
		sig.handle(sig.SIGTERM, sig.IGNORE)
		still_registered = sig.handlers()[sig.SIGTERM] ~= nil
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if rt.L.GetGlobal("still_registered") != lua.LFalse {
		t.Error("handlers() still contains SIGTERM after IGNORE")
	}

	simulate(m, signal.SIGTERM, signal.OriginNative)
	m.Dispatcher().Tick()
	if rt.L.GetGlobal("fired") != lua.LFalse {
		t.Error("callback fired for ignored signal")
	}
}

func TestResetTwiceSucceeds(t *testing.T) {
	rt, _, _ := newTestModule(t)

	err := rt.DoString(`
		sig = require("os.signal")
		ok1 = select("#", sig.reset(sig.SIGTERM)) == 0
		ok2 = select("#", sig.reset(sig.SIGTERM)) == 0
		none = sig.handlers()[sig.SIGTERM] == nil
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	for _, g := range []string{"ok1", "ok2", "none"} {
		if rt.L.GetGlobal(g) != lua.LTrue {
			t.Errorf("%s = false, want true", g)
		}
	}
}

func TestHandlersSnapshotIsCopy(t *testing.T) {
	rt, _, _ := newTestModule(t)

	err := rt.DoString(`
		sig = require("os.signal")
		sig.handle(sig.SIGTERM, function() end)
		local copy = sig.handlers()
		copy[sig.SIGTERM] = nil
		live = sig.handlers()[sig.SIGTERM] ~= nil
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if rt.L.GetGlobal("live") != lua.LTrue {
		t.Error("mutating the handlers() copy affected the live table")
	}
}

func TestHandleArgumentErrors(t *testing.T) {
	rt, _, _ := newTestModule(t)

	err := rt.DoString(`
		sig = require("os.signal")
		bad_signum = not pcall(sig.handle, "two", function() end)
		bad_callback = not pcall(sig.handle, sig.SIGTERM, "not a function")
		after = sig.handlers()[sig.SIGTERM] == nil
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	for _, g := range []string{"bad_signum", "bad_callback", "after"} {
		if rt.L.GetGlobal(g) != lua.LTrue {
			t.Errorf("%s = false, want true", g)
		}
	}
}

func TestHandleDispositionFailure(t *testing.T) {
	rt, _, _ := newTestModule(t)

	// SIGKILL cannot be caught; the failure is recoverable and leaves
	// no registration behind.
	err := rt.DoString(`
		sig = require("os.signal")
		res, msg = sig.handle(sig.SIGKILL, function() end)
		unregistered = sig.handlers()[sig.SIGKILL] == nil
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if rt.L.GetGlobal("res") != lua.LNil {
		t.Error("handle(SIGKILL) first result is not nil")
	}
	if _, ok := rt.L.GetGlobal("msg").(lua.LString); !ok {
		t.Error("handle(SIGKILL) second result is not a message")
	}
	if rt.L.GetGlobal("unregistered") != lua.LTrue {
		t.Error("failed handle() left a registered callback")
	}
}

func TestCallbackErrorsAreLoggedAndDrainContinues(t *testing.T) {
	rt, m, buf := newTestModule(t)

	err := rt.DoString(`
		sig = require("os.signal")
		attempts = 0
		sig.handle(sig.SIGTERM, function()
			attempts = attempts + 1
			error("handler failed")
		end)
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	simulate(m, signal.SIGTERM, signal.OriginNative)
	simulate(m, signal.SIGTERM, signal.OriginNative)
	m.Dispatcher().Tick()

	if v := rt.L.GetGlobal("attempts"); v != lua.LNumber(2) {
		t.Errorf("attempts = %v, want 2 (both invocations tried)", v)
	}
	if n := bytes.Count(buf.Bytes(), []byte("error calling signal handler")); n != 2 {
		t.Errorf("logged %d failures, want 2; log:\n%s", n, buf.String())
	}
	if m.Dispatcher().Pending() {
		t.Error("Pending() = true after tick")
	}
}

func TestConsoleOriginReachesCallback(t *testing.T) {
	rt, m, _ := newTestModule(t)

	err := rt.DoString(`
		sig = require("os.signal")
		sig.handle(sig.SIGBREAK, function(_, from_console) console = from_console end)
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	simulate(m, signal.SIGBREAK, signal.OriginConsole)
	m.Dispatcher().Tick()

	if rt.L.GetGlobal("console") != lua.LTrue {
		t.Error("handler got from_console = false for a console event")
	}
}

func TestPollReconfiguresCadence(t *testing.T) {
	rt, m, _ := newTestModule(t)

	err := rt.DoString(`
		sig = require("os.signal")
		count = 0
		sig.handle(sig.SIGTERM, function() count = count + 1 end)
		sig.poll(5)
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	simulate(m, signal.SIGTERM, signal.OriginNative)
	rt.Step(5)
	if v := rt.L.GetGlobal("count"); v != lua.LNumber(1) {
		t.Fatalf("count = %v after 5 steps at cadence 5, want 1", v)
	}

	// poll(0) resets to the default cadence, far above 100 steps.
	if err := rt.DoString(`sig.poll(0)`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	simulate(m, signal.SIGTERM, signal.OriginNative)
	rt.Step(100)
	if v := rt.L.GetGlobal("count"); v != lua.LNumber(1) {
		t.Fatalf("count = %v, want still 1 (default cadence not reached)", v)
	}
	rt.Checkpoint()
	if v := rt.L.GetGlobal("count"); v != lua.LNumber(2) {
		t.Errorf("count = %v after checkpoint, want 2", v)
	}
}

func TestRequestCadenceAppliedAtSafePoint(t *testing.T) {
	rt, m, _ := newTestModule(t)

	err := rt.DoString(`
		sig = require("os.signal")
		count = 0
		sig.handle(sig.SIGTERM, function() count = count + 1 end)
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	// The request is staged; the next safe point applies it.
	m.RequestCadence(5)
	rt.Checkpoint()

	simulate(m, signal.SIGTERM, signal.OriginNative)
	rt.Step(5)
	if v := rt.L.GetGlobal("count"); v != lua.LNumber(1) {
		t.Errorf("count = %v after 5 steps at requested cadence 5, want 1", v)
	}
}

func TestDispatchHappensAtChunkBoundary(t *testing.T) {
	rt, m, _ := newTestModule(t)

	err := rt.DoString(`
		sig = require("os.signal")
		fired = false
		sig.handle(sig.SIGTERM, function() fired = true end)
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	simulate(m, signal.SIGTERM, signal.OriginNative)

	// Any chunk execution passes a safe point, no explicit tick needed.
	if err := rt.DoString(`x = 1`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if rt.L.GetGlobal("fired") != lua.LTrue {
		t.Error("queued signal not dispatched at chunk boundary")
	}
}
